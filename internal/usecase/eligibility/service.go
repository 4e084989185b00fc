package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/minefund-backend/internal/domain"
)

// Eligibility is the transferable profit of an investment at a reference date
type Eligibility struct {
	Total     decimal.Decimal
	BucketIDs []uuid.UUID
}

// Aggregator sums the monthly buckets that can be paid out
type Aggregator struct {
	BucketRepo domain.ProfitBucketRepository
}

// NewAggregator creates a new Aggregator instance
func NewAggregator(bucketRepo domain.ProfitBucketRepository) *Aggregator {
	return &Aggregator{BucketRepo: bucketRepo}
}

// Eligible returns the Available monthly buckets started at or before reference
// Logic:
//   - List monthly buckets with period start <= reference, ordered by start
//   - Keep only Available ones (withdrawable, not locked, not transferred)
//   - Total is their amount sum; no buckets means a zero total, not an error
func (a *Aggregator) Eligible(ctx context.Context, investmentID uuid.UUID, reference time.Time) (Eligibility, error) {
	months, err := a.BucketRepo.ListMonths(ctx, investmentID, reference)
	if err != nil {
		return Eligibility{}, fmt.Errorf("failed to list monthly buckets: %w", err)
	}

	result := Eligibility{Total: decimal.Zero}
	for _, m := range months {
		state, err := m.State()
		if err != nil {
			return Eligibility{}, fmt.Errorf("monthly bucket %s: %w", m.ID, err)
		}
		if state != domain.StateAvailable {
			continue
		}
		result.Total = result.Total.Add(m.Amount)
		result.BucketIDs = append(result.BucketIDs, m.ID)
	}

	return result, nil
}

// EndOfPreviousMonth returns the last instant of the calendar month before now, in UTC
func EndOfPreviousMonth(now time.Time) time.Time {
	now = now.UTC()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.Add(-time.Nanosecond)
}
