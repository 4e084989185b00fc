package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/minefund-backend/internal/domain"
)

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	var balanceStr string

	if err := row.Scan(&a.ID, &a.Name, &a.Currency, &balanceStr, &a.IsFundingSource, &a.Priority); err != nil {
		return nil, err
	}

	// Parse balance (NUMERIC)
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	a.Balance = balance

	return &a, nil
}

// GetByID retrieves an account by its ID
func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, name, currency, balance, is_funding_source, priority
		FROM accounts
		WHERE id = $1
	`

	a, err := scanAccount(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}
	return a, nil
}

// Create creates a new account
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, name, currency, balance, is_funding_source, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.Currency,
		account.Balance.String(),
		account.IsFundingSource,
		account.Priority,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// LockFundingSources retrieves the funding accounts of a currency in drain order
// Rows are locked FOR UPDATE until the surrounding transaction ends
func (r *accountRepository) LockFundingSources(ctx context.Context, currency string) ([]*domain.Account, error) {
	query := `
		SELECT id, name, currency, balance, is_funding_source, priority
		FROM accounts
		WHERE is_funding_source AND ($1 = '' OR currency = $1)
		ORDER BY priority, id
		FOR UPDATE
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to lock funding accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// Debit subtracts amount from an account only if its balance covers it
func (r *accountRepository) Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = balance - $2
		WHERE id = $1 AND balance >= $2
	`

	res, err := r.db.conn(ctx).ExecContext(ctx, query, id, amount.String())
	if err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Distinguish a missing account from a balance that changed under us
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: account %s balance below %s", domain.ErrConcurrencyConflict, id, amount)
}

// Credit adds amount to an account
func (r *accountRepository) Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	query := `UPDATE accounts SET balance = balance + $2 WHERE id = $1`

	res, err := r.db.conn(ctx).ExecContext(ctx, query, id, amount.String())
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}

	return nil
}
