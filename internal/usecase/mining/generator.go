package mining

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/minefund-backend/internal/domain"
	"github.com/simaogato/minefund-backend/internal/usecase/partition"
	"github.com/simaogato/minefund-backend/internal/usecase/seeder"
)

const (
	// AccrualOffset delays the first profit period after the investment is recorded
	AccrualOffset = time.Hour

	// maxJitter bounds the negligible term added to the first month payout
	maxJitter = 1e-6
)

// FirstMonthMultiplier is applied to the deposit for month 1
var FirstMonthMultiplier = decimal.RequireFromString("1.8")

// MonthPlan describes one month of an investment before any amount is drawn
type MonthPlan struct {
	Index  int
	Period domain.Period
	Days   int
}

// PlanMonths derives the contiguous month periods of an investment
// Every boundary is computed from the same offset start so months never drift or overlap
func PlanMonths(inv *domain.Investment) []MonthPlan {
	if inv.DurationMonths <= 0 {
		return nil
	}

	offsetStart := inv.StartTime.UTC().Add(AccrualOffset)
	plans := make([]MonthPlan, 0, inv.DurationMonths)

	for idx := 1; idx <= inv.DurationMonths; idx++ {
		period := domain.Period{
			Start: offsetStart.AddDate(0, idx-1, 0),
			End:   offsetStart.AddDate(0, idx, 0),
		}
		plans = append(plans, MonthPlan{
			Index:  idx,
			Period: period,
			Days:   daysBetween(period.Start, period.End),
		})
	}

	return plans
}

// DayPeriods splits a month into consecutive 24h periods; the last one ends at the month end
func DayPeriods(plan MonthPlan) []domain.Period {
	periods := make([]domain.Period, 0, plan.Days)
	for d := 0; d < plan.Days; d++ {
		start := plan.Period.Start.Add(time.Duration(d) * 24 * time.Hour)
		end := start.Add(24 * time.Hour)
		if d == plan.Days-1 {
			end = plan.Period.End
		}
		periods = append(periods, domain.Period{Start: start, End: end})
	}
	return periods
}

// HourPeriods splits a day into HoursPerDay one-hour periods, hour offsets 0-23
func HourPeriods(day domain.Period) []domain.Period {
	periods := make([]domain.Period, 0, domain.HoursPerDay)
	for h := 0; h < domain.HoursPerDay; h++ {
		start := day.Start.Add(time.Duration(h) * time.Hour)
		end := start.Add(time.Hour)
		if h == domain.HoursPerDay-1 {
			end = day.End
		}
		periods = append(periods, domain.Period{Start: start, End: end})
	}
	return periods
}

func daysBetween(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Hours() / 24))
}

// Generator draws the profit amounts of the bucket tree
type Generator struct {
	partitioner *partition.Partitioner
}

// NewGenerator creates a new Generator instance
func NewGenerator(partitioner *partition.Partitioner) *Generator {
	return &Generator{partitioner: partitioner}
}

// MonthTarget computes the raw profit of a month
// Logic:
//   - Month 1: deposit * 1.8 plus a negligible jitter below 1e-6
//   - Month n > 1: deposit * (1 + (2u-1) * variation) * productionRate, never below zero
//
// Targets are rounded to ShareScale places.
func (g *Generator) MonthTarget(inv *domain.Investment, monthIndex int) decimal.Decimal {
	if monthIndex == 1 {
		jitter := decimal.NewFromFloat(g.partitioner.Uniform() * maxJitter)
		return inv.Deposit.Mul(FirstMonthMultiplier).Add(jitter).Round(partition.ShareScale)
	}

	noise := decimal.NewFromFloat(2*g.partitioner.Uniform() - 1).Mul(inv.VariationFactor)
	target := inv.Deposit.Mul(decimal.NewFromInt(1).Add(noise)).Mul(inv.ProductionRate)
	if target.IsNegative() {
		return decimal.Zero
	}
	return target.Round(partition.ShareScale)
}

// NewMonth builds the candidate monthly bucket for plan
func (g *Generator) NewMonth(inv *domain.Investment, plan MonthPlan) *domain.MonthlyBucket {
	return &domain.MonthlyBucket{
		ID:           uuid.New(),
		InvestmentID: inv.ID,
		MonthIndex:   plan.Index,
		Period:       plan.Period,
		Currency:     inv.Currency,
		Amount:       g.MonthTarget(inv, plan.Index),
		Flags:        domain.InitialState(plan.Index).Flags(),
	}
}

// DayShares splits what is left of a month over its missing days
func (g *Generator) DayShares(inv *domain.Investment, plan MonthPlan, remaining decimal.Decimal, missing int) []decimal.Decimal {
	intensity := inv.VariationFactor.InexactFloat64() / float64(plan.Days)
	return g.partitioner.Partition(remaining, missing, intensity)
}

// HourShares splits what is left of a day over its missing hours
func (g *Generator) HourShares(inv *domain.Investment, plan MonthPlan, remaining decimal.Decimal, missing int) []decimal.Decimal {
	intensity := inv.VariationFactor.InexactFloat64() / float64(plan.Days*domain.HoursPerDay)
	return g.partitioner.Partition(remaining, missing, intensity)
}

// PlanHours returns the HourPlanner used for the days of plan
// Missing hours split the day amount left after the hours already stored
func (g *Generator) PlanHours(inv *domain.Investment, plan MonthPlan) seeder.HourPlanner {
	return func(day *domain.DailyBucket, existing []*domain.HourlyBucket) ([]*domain.HourlyBucket, error) {
		stored := make(map[int64]bool, len(existing))
		storedSum := decimal.Zero
		for _, h := range existing {
			stored[h.Period.Start.Unix()] = true
			storedSum = storedSum.Add(h.Amount)
		}

		var missing []domain.Period
		var missingHours []int
		for h, p := range HourPeriods(day.Period) {
			if !stored[p.Start.Unix()] {
				missing = append(missing, p)
				missingHours = append(missingHours, h)
			}
		}
		if len(missing) == 0 {
			return nil, nil
		}

		remaining := day.Amount.Sub(storedSum)
		shares := g.HourShares(inv, plan, remaining, len(missing))
		if !domain.WithinTolerance(day.Amount, storedSum.Add(domain.SumAmounts(shares))) {
			return nil, fmt.Errorf("%w: hours of day %s sum to %s, want %s",
				domain.ErrInvariantViolation, day.Period.Start.Format(time.RFC3339),
				storedSum.Add(domain.SumAmounts(shares)), day.Amount)
		}

		hours := make([]*domain.HourlyBucket, 0, len(missing))
		for i, p := range missing {
			hours = append(hours, &domain.HourlyBucket{
				ID:            uuid.New(),
				DailyBucketID: day.ID,
				InvestmentID:  day.InvestmentID,
				HourOfDay:     missingHours[i],
				Period:        p,
				Currency:      day.Currency,
				Amount:        shares[i],
			})
		}
		return hours, nil
	}
}
