package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/minefund-backend/internal/domain"
)

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

// Create creates a new transaction with all its entries
// Joins the caller's database transaction, or opens its own
func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		q := r.db.conn(ctx)

		// Insert the transaction header
		insertTxQuery := `
			INSERT INTO transactions (id, description, date, investment_id)
			VALUES ($1, $2, $3, $4)
		`

		var investmentID any
		if tx.InvestmentID != nil {
			investmentID = *tx.InvestmentID
		}

		if _, err := q.ExecContext(ctx, insertTxQuery, tx.ID, tx.Description, tx.Date.UTC(), investmentID); err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}

		// Insert all transaction entries
		insertEntryQuery := `
			INSERT INTO transaction_entries (id, transaction_id, account_id, amount, type)
			VALUES ($1, $2, $3, $4, $5)
		`

		for _, entry := range tx.Entries {
			_, err := q.ExecContext(ctx, insertEntryQuery,
				entry.ID,
				entry.TransactionID,
				entry.AccountID,
				entry.Amount.String(),
				string(entry.Type),
			)
			if err != nil {
				return fmt.Errorf("failed to insert transaction entry: %w", err)
			}
		}

		return nil
	})
}

// ListByInvestment retrieves the transactions of an investment, newest first
func (r *transactionRepository) ListByInvestment(ctx context.Context, investmentID uuid.UUID) ([]*domain.Transaction, error) {
	query := `
		SELECT t.id, t.description, t.date, e.id, e.account_id, e.amount, e.type
		FROM transactions t
		JOIN transaction_entries e ON e.transaction_id = t.id
		WHERE t.investment_id = $1
		ORDER BY t.date DESC, t.id, e.type DESC, e.id
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, investmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	var current *domain.Transaction
	for rows.Next() {
		var txID, entryID, accountID uuid.UUID
		var description, amountStr, entryType string
		var date time.Time

		if err := rows.Scan(&txID, &description, &date, &entryID, &accountID, &amountStr, &entryType); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse entry amount: %w", err)
		}

		if current == nil || current.ID != txID {
			invID := investmentID
			current = &domain.Transaction{
				ID:           txID,
				Description:  description,
				Date:         date.UTC(),
				InvestmentID: &invID,
			}
			transactions = append(transactions, current)
		}

		current.Entries = append(current.Entries, domain.TransactionEntry{
			ID:            entryID,
			TransactionID: txID,
			AccountID:     accountID,
			Amount:        amount,
			Type:          domain.EntryType(entryType),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}
