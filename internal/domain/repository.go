package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvestmentRepository defines the interface for investment persistence operations
type InvestmentRepository interface {
	// GetByID retrieves an investment by its ID
	// Returns an error wrapping ErrInvestmentNotFound if it does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*Investment, error)

	// Create creates a new investment
	Create(ctx context.Context, inv *Investment) error
}

// ProfitBucketRepository defines persistence for the Month -> Day -> Hour bucket tree
// Every level is unique on (investment, period start, period end)
type ProfitBucketRepository interface {
	// FindMonth returns the monthly bucket with exactly this period, or nil if none exists
	FindMonth(ctx context.Context, investmentID uuid.UUID, period Period) (*MonthlyBucket, error)

	// InsertMonth inserts the bucket unless its period already exists
	// Returns false when a row with the same key was already there
	InsertMonth(ctx context.Context, bucket *MonthlyBucket) (bool, error)

	// ListMonths returns the investment's monthly buckets starting at or before startAtOrBefore,
	// ordered by period start ascending
	ListMonths(ctx context.Context, investmentID uuid.UUID, startAtOrBefore time.Time) ([]*MonthlyBucket, error)

	// ConsumeMonths marks Available buckets as Consumed
	// Returns an error wrapping ErrConcurrencyConflict if any of them was no longer Available
	ConsumeMonths(ctx context.Context, ids []uuid.UUID) error

	// FindDay returns the daily bucket with exactly this period, or nil if none exists
	FindDay(ctx context.Context, monthlyBucketID uuid.UUID, period Period) (*DailyBucket, error)

	// InsertDay inserts the bucket unless its period already exists
	InsertDay(ctx context.Context, bucket *DailyBucket) (bool, error)

	// ListDays returns the daily buckets of a month ordered by period start
	ListDays(ctx context.Context, monthlyBucketID uuid.UUID) ([]*DailyBucket, error)

	// ListHours returns the hourly buckets of a day ordered by period start
	ListHours(ctx context.Context, dailyBucketID uuid.UUID) ([]*HourlyBucket, error)

	// InsertHours batch-inserts hourly buckets, skipping periods that already exist
	// Returns the number of rows actually inserted
	InsertHours(ctx context.Context, buckets []*HourlyBucket) (int, error)
}

// AccountRepository defines the interface for account persistence operations
type AccountRepository interface {
	// GetByID retrieves an account by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// Create creates a new account
	Create(ctx context.Context, account *Account) error

	// LockFundingSources returns every funding source ordered by priority, then ID
	// Inside a transaction the rows stay locked until commit
	LockFundingSources(ctx context.Context, currency string) ([]*Account, error)

	// Debit subtracts amount from the balance
	// Returns an error wrapping ErrConcurrencyConflict if the balance no longer covers it
	Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error

	// Credit adds amount to the balance
	Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

// TransactionRepository defines the interface for ledger persistence operations
type TransactionRepository interface {
	// Create creates a new transaction with all its entries
	Create(ctx context.Context, tx *Transaction) error

	// ListByInvestment returns the transactions recorded for an investment, newest first
	ListByInvestment(ctx context.Context, investmentID uuid.UUID) ([]*Transaction, error)
}

// TxManager runs a unit of work atomically
// Repositories called with the context passed to fn join the transaction
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
