package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func entry(amount int64, entryType EntryType) TransactionEntry {
	return TransactionEntry{
		ID:            uuid.New(),
		TransactionID: uuid.New(),
		AccountID:     uuid.New(),
		Amount:        decimal.NewFromInt(amount),
		Type:          entryType,
	}
}

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		entries []TransactionEntry
		wantErr bool
		errMsg  string
	}{
		{
			name: "Waterfall payout with three funding credits should pass",
			entries: []TransactionEntry{
				entry(40, EntryTypeCredit),
				entry(30, EntryTypeCredit),
				entry(30, EntryTypeCredit),
				entry(100, EntryTypeDebit),
			},
			wantErr: false,
		},
		{
			name: "Unbalanced transaction should fail",
			entries: []TransactionEntry{
				entry(40, EntryTypeCredit),
				entry(100, EntryTypeDebit),
			},
			wantErr: true,
			errMsg:  "sum of debits must equal sum of credits",
		},
		{
			name:    "Transaction with no entries should fail",
			entries: []TransactionEntry{},
			wantErr: true,
			errMsg:  "transaction must have at least one entry",
		},
		{
			name: "Entry with zero amount should fail",
			entries: []TransactionEntry{
				entry(0, EntryTypeDebit),
			},
			wantErr: true,
			errMsg:  "entry amount must be positive (absolute value)",
		},
		{
			name: "Entry with negative amount should fail",
			entries: []TransactionEntry{
				entry(-10, EntryTypeDebit),
				entry(-10, EntryTypeCredit),
			},
			wantErr: true,
			errMsg:  "entry amount must be positive (absolute value)",
		},
		{
			name: "Entry with invalid type should fail",
			entries: []TransactionEntry{
				entry(10, EntryType("TRANSFER")),
			},
			wantErr: true,
			errMsg:  "entry type must be DEBIT or CREDIT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := Transaction{
				ID:          uuid.New(),
				Description: tt.name,
				Date:        time.Now(),
				Entries:     tt.entries,
			}
			err := tx.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTransaction_Credits(t *testing.T) {
	first := entry(40, EntryTypeCredit)
	second := entry(60, EntryTypeCredit)
	tx := Transaction{
		Entries: []TransactionEntry{first, entry(100, EntryTypeDebit), second},
	}

	credits := tx.Credits()
	assert.Len(t, credits, 2)
	assert.Equal(t, first.ID, credits[0].ID)
	assert.Equal(t, second.ID, credits[1].ID)
}

func TestAccount_Validate(t *testing.T) {
	ok := Account{ID: uuid.New(), Name: "Pool A", Balance: decimal.NewFromInt(10), IsFundingSource: true}
	assert.NoError(t, ok.Validate())

	noName := Account{ID: uuid.New(), Balance: decimal.Zero}
	assert.EqualError(t, noName.Validate(), "account name cannot be empty")

	negative := Account{ID: uuid.New(), Name: "Pool B", Balance: decimal.NewFromInt(-1)}
	assert.EqualError(t, negative.Validate(), "account balance cannot be negative")
}
