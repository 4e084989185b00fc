package domain

import "errors"

// Business outcomes shared by the mining and transfer use cases.
// Callers compare with errors.Is; repositories wrap them with context.
var (
	// ErrInvalidInput marks an investment or request the engine refuses to act on
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvestmentNotFound is returned when no investment exists for an ID
	ErrInvestmentNotFound = errors.New("investment not found")

	// ErrAccountNotFound is returned when no account exists for an ID
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds means the funding sources cannot cover a payout
	ErrInsufficientFunds = errors.New("insufficient balance in funding accounts")

	// ErrNothingToTransfer means no monthly bucket is currently transferable
	ErrNothingToTransfer = errors.New("nothing to transfer")

	// ErrConcurrencyConflict means a concurrent run already consumed a bucket,
	// seeded a period or moved a balance this run depended on
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrInvariantViolation means generated amounts do not add up
	ErrInvariantViolation = errors.New("bucket sum invariant violated")

	// ErrBucketNotAvailable is returned when consuming a bucket that is not Available
	ErrBucketNotAvailable = errors.New("bucket is not available for transfer")
)
