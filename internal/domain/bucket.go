package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Granularity names the level of a profit bucket in the Month -> Day -> Hour tree
type Granularity string

const (
	GranularityMonth Granularity = "MONTH"
	GranularityDay   Granularity = "DAY"
	GranularityHour  Granularity = "HOUR"
)

// HoursPerDay is the number of hourly buckets under every daily bucket
const HoursPerDay = 24

// SumTolerance bounds the accepted difference between a parent amount and the sum of its children
var SumTolerance = decimal.New(1, -6)

// Period is a half-open [Start, End) interval
type Period struct {
	Start time.Time
	End   time.Time
}

// Validate ensures the period is non-empty
func (p Period) Validate() error {
	if !p.End.After(p.Start) {
		return errors.New("period end must be after period start")
	}
	return nil
}

// Equal reports whether both boundaries match exactly
func (p Period) Equal(other Period) bool {
	return p.Start.Equal(other.Start) && p.End.Equal(other.End)
}

// Overlaps reports whether the two half-open intervals share any instant
func (p Period) Overlaps(other Period) bool {
	return p.Start.Before(other.End) && other.Start.Before(p.End)
}

// Contains reports whether other lies entirely within p
func (p Period) Contains(other Period) bool {
	return !other.Start.Before(p.Start) && !other.End.After(p.End)
}

// MonthlyBucket is the top-level profit record of an investment
// Only its flags change after insertion, never the amount
type MonthlyBucket struct {
	ID           uuid.UUID
	InvestmentID uuid.UUID
	MonthIndex   int
	Period       Period
	Currency     string
	Amount       decimal.Decimal
	Flags        Flags
}

// State returns the lifecycle state encoded by the bucket flags
func (b *MonthlyBucket) State() (BucketState, error) {
	return StateOf(b.Flags)
}

// DailyBucket belongs to exactly one MonthlyBucket
type DailyBucket struct {
	ID              uuid.UUID
	MonthlyBucketID uuid.UUID
	InvestmentID    uuid.UUID
	Period          Period
	Currency        string
	Amount          decimal.Decimal
}

// HourlyBucket belongs to exactly one DailyBucket
type HourlyBucket struct {
	ID            uuid.UUID
	DailyBucketID uuid.UUID
	InvestmentID  uuid.UUID
	HourOfDay     int
	Period        Period
	Currency      string
	Amount        decimal.Decimal
}

// WithinTolerance reports whether sum matches parent up to SumTolerance
func WithinTolerance(parent, sum decimal.Decimal) bool {
	return parent.Sub(sum).Abs().LessThanOrEqual(SumTolerance)
}

// SumAmounts adds up a list of amounts
func SumAmounts(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
