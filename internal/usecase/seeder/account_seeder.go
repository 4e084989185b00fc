package seeder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/simaogato/minefund-backend/internal/domain"
)

// AccountSpec is one account entry of an accounts file
type AccountSpec struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Currency        string `yaml:"currency"`
	Balance         string `yaml:"balance"`
	IsFundingSource bool   `yaml:"funding_source"`
	Priority        int    `yaml:"priority"`
}

type accountsFile struct {
	Accounts []AccountSpec `yaml:"accounts"`
}

// LoadAccounts decodes an accounts file:
//
//	accounts:
//	  - id: 00000000-0000-0000-0000-0000000000a1
//	    name: Pool A
//	    currency: USDT
//	    balance: "5000"
//	    funding_source: true
//	    priority: 1
func LoadAccounts(r io.Reader) ([]*domain.Account, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file accountsFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode accounts file: %w", err)
	}

	accounts := make([]*domain.Account, 0, len(file.Accounts))
	seen := make(map[uuid.UUID]bool, len(file.Accounts))
	for i, entry := range file.Accounts {
		a, err := entry.toAccount()
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("account %d: duplicate id %s", i, a.ID)
		}
		seen[a.ID] = true
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (s AccountSpec) toAccount() (*domain.Account, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", s.ID, err)
	}

	balance := decimal.Zero
	if s.Balance != "" {
		balance, err = decimal.NewFromString(s.Balance)
		if err != nil {
			return nil, fmt.Errorf("invalid balance %q: %w", s.Balance, err)
		}
	}

	a := &domain.Account{
		ID:              id,
		Name:            s.Name,
		Currency:        strings.ToUpper(strings.TrimSpace(s.Currency)),
		Balance:         balance,
		IsFundingSource: s.IsFundingSource,
		Priority:        s.Priority,
	}
	if a.Currency == "" {
		return nil, errors.New("currency cannot be empty")
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// AccountSeeder creates the configured accounts that do not exist yet
type AccountSeeder struct {
	repo domain.AccountRepository
}

// NewAccountSeeder creates a new AccountSeeder instance
func NewAccountSeeder(repo domain.AccountRepository) *AccountSeeder {
	return &AccountSeeder{
		repo: repo,
	}
}

// Seed ensures every account exists
// Existing accounts keep their stored balance; returns the number created
func (s *AccountSeeder) Seed(ctx context.Context, accounts []*domain.Account) (int, error) {
	created := 0
	for _, a := range accounts {
		_, err := s.repo.GetByID(ctx, a.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return created, fmt.Errorf("failed to look up account %s: %w", a.ID, err)
		}

		if err := a.Validate(); err != nil {
			return created, err
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return created, fmt.Errorf("failed to create account %s: %w", a.ID, err)
		}
		created++
	}
	return created, nil
}
