package allocator

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/minefund-backend/internal/domain"
)

// ErrInvalidAmount is returned for a zero or negative amount to distribute
var ErrInvalidAmount = fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)

// AccountTransfer is the amount taken from one funding account
type AccountTransfer struct {
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// Distribution is the result of a waterfall over funding accounts
type Distribution struct {
	Disbursed decimal.Decimal
	Transfers []AccountTransfer
}

// Distribute takes amount from sources in the given order
// Logic:
//  1. Reject the request up front if the positive balances cannot cover it
//  2. Walk the sources, taking min(balance, remaining) from each positive balance
//  3. Stop as soon as nothing remains
//
// Safety: Disbursed always equals amount; no partial distribution is ever returned
func Distribute(amount decimal.Decimal, sources []*domain.Account) (Distribution, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return Distribution{}, ErrInvalidAmount
	}

	available := decimal.Zero
	for _, src := range sources {
		if src.Balance.IsPositive() {
			available = available.Add(src.Balance)
		}
	}
	if available.LessThan(amount) {
		return Distribution{}, fmt.Errorf("%w: need %s, have %s", domain.ErrInsufficientFunds, amount, available)
	}

	result := Distribution{Disbursed: decimal.Zero}
	remaining := amount
	for _, src := range sources {
		if !remaining.IsPositive() {
			break
		}
		if !src.Balance.IsPositive() {
			continue
		}

		take := decimal.Min(src.Balance, remaining)
		result.Transfers = append(result.Transfers, AccountTransfer{AccountID: src.ID, Amount: take})
		result.Disbursed = result.Disbursed.Add(take)
		remaining = remaining.Sub(take)
	}

	// Safety check: Ensure the waterfall covered the full amount
	if !result.Disbursed.Equal(amount) {
		return Distribution{}, fmt.Errorf("%w: disbursed %s of %s", domain.ErrInvariantViolation, result.Disbursed, amount)
	}

	return result, nil
}
