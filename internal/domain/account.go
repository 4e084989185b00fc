package domain

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account represents a balance-holding account in the domain layer
// Funding sources pay profit out; wallets receive it
type Account struct {
	ID              uuid.UUID
	Name            string
	Currency        string
	Balance         decimal.Decimal
	IsFundingSource bool
	Priority        int // Lower number = drained first
}

// Validate ensures the account adheres to domain rules
func (a *Account) Validate() error {
	if a.Name == "" {
		return errors.New("account name cannot be empty")
	}

	if a.Balance.LessThan(decimal.Zero) {
		return errors.New("account balance cannot be negative")
	}

	return nil
}
