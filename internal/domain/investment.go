package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Investment represents an approved mining investment in the domain layer
// It is created once at approval and never modified by the profit engine
type Investment struct {
	ID              uuid.UUID
	Deposit         decimal.Decimal
	DurationMonths  int
	StartTime       time.Time
	Currency        string
	ProductionRate  decimal.Decimal // Sum of the constituent mining unit rates
	VariationFactor decimal.Decimal // Sum of the constituent mining unit fractions
}

// MiningUnit is one rented mining unit backing an investment
type MiningUnit struct {
	Rate     decimal.Decimal
	Fraction decimal.Decimal
}

// AggregateUnits sums the rates and fractions of the units an investment is built from
func AggregateUnits(units []MiningUnit) (rate decimal.Decimal, variation decimal.Decimal) {
	for _, u := range units {
		rate = rate.Add(u.Rate)
		variation = variation.Add(u.Fraction)
	}
	return rate, variation
}

// Validate ensures the investment can be mined
// Returns an error wrapping ErrInvalidInput if validation fails
func (i *Investment) Validate() error {
	if i.ID == uuid.Nil {
		return fmt.Errorf("%w: investment ID cannot be empty", ErrInvalidInput)
	}

	if i.Deposit.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: deposit must be positive", ErrInvalidInput)
	}

	if i.DurationMonths <= 0 {
		return fmt.Errorf("%w: duration must be at least one month", ErrInvalidInput)
	}

	if i.StartTime.IsZero() {
		return fmt.Errorf("%w: start time must be set", ErrInvalidInput)
	}

	if i.ProductionRate.LessThan(decimal.Zero) || i.VariationFactor.LessThan(decimal.Zero) {
		return fmt.Errorf("%w: production rate and variation factor cannot be negative", ErrInvalidInput)
	}

	return nil
}
