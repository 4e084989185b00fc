package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType represents the type of transaction entry
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// Transaction is a ledger record of money moving between accounts
// A profit payout has one CREDIT per drained funding account and one DEBIT to the wallet
type Transaction struct {
	ID           uuid.UUID
	Description  string
	Date         time.Time
	InvestmentID *uuid.UUID // NULL for transactions not tied to an investment
	Entries      []TransactionEntry
}

// TransactionEntry represents a single entry in a transaction
type TransactionEntry struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	Amount        decimal.Decimal // ABSOLUTE VALUE (Always Positive)
	Type          EntryType       // 'DEBIT' or 'CREDIT'
}

// Validate ensures the transaction adheres to domain rules
// CRITICAL: Ensures sum of debits equals sum of credits
func (t *Transaction) Validate() error {
	if len(t.Entries) == 0 {
		return errors.New("transaction must have at least one entry")
	}

	var totalDebits decimal.Decimal
	var totalCredits decimal.Decimal

	for _, entry := range t.Entries {
		// Validate entry amount is positive (absolute value)
		if entry.Amount.LessThanOrEqual(decimal.Zero) {
			return errors.New("entry amount must be positive (absolute value)")
		}

		switch entry.Type {
		case EntryTypeDebit:
			totalDebits = totalDebits.Add(entry.Amount)
		case EntryTypeCredit:
			totalCredits = totalCredits.Add(entry.Amount)
		default:
			return errors.New("entry type must be DEBIT or CREDIT")
		}
	}

	if !totalDebits.Equal(totalCredits) {
		return errors.New("sum of debits must equal sum of credits")
	}

	return nil
}

// Credits returns the CREDIT entries in their recorded order
func (t *Transaction) Credits() []TransactionEntry {
	credits := make([]TransactionEntry, 0, len(t.Entries))
	for _, entry := range t.Entries {
		if entry.Type == EntryTypeCredit {
			credits = append(credits, entry)
		}
	}
	return credits
}
