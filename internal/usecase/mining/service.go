package mining

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/minefund-backend/internal/domain"
	"github.com/simaogato/minefund-backend/internal/metrics"
	"github.com/simaogato/minefund-backend/internal/usecase/seeder"
)

// SeedReport counts what one StartMining run wrote and skipped
type SeedReport struct {
	InvestmentID  uuid.UUID
	MonthsCreated int
	MonthsSkipped int
	MonthsFailed  int
	DaysCreated   int
	DaysSkipped   int
	DaysFailed    int
	HoursInserted int
	HoursSkipped  int
}

// MiningService handles the "start mining" operation
type MiningService struct {
	InvestmentRepo domain.InvestmentRepository
	BucketRepo     domain.ProfitBucketRepository
	Seeder         *seeder.BucketSeeder
	Generator      *Generator
	Log            *slog.Logger

	locks sync.Map // investment ID -> *sync.Mutex
}

// NewMiningService creates a new MiningService instance
func NewMiningService(
	investmentRepo domain.InvestmentRepository,
	bucketRepo domain.ProfitBucketRepository,
	bucketSeeder *seeder.BucketSeeder,
	generator *Generator,
	log *slog.Logger,
) *MiningService {
	return &MiningService{
		InvestmentRepo: investmentRepo,
		BucketRepo:     bucketRepo,
		Seeder:         bucketSeeder,
		Generator:      generator,
		Log:            log,
	}
}

// StartMining generates and persists the full Month -> Day -> Hour bucket tree of an investment
// It never fails: invalid input is a logged no-op, and a failing month or day is
// logged and skipped so a later run can fill it in.
func (s *MiningService) StartMining(ctx context.Context, investmentID uuid.UUID) SeedReport {
	report := SeedReport{InvestmentID: investmentID}
	log := s.Log.With("investment_id", investmentID)

	unlock := s.lock(investmentID)
	defer unlock()

	inv, err := s.InvestmentRepo.GetByID(ctx, investmentID)
	if err != nil {
		log.Warn("start mining skipped: investment unavailable", "error", err)
		metrics.SeedRunsTotal.WithLabelValues("skipped").Inc()
		return report
	}
	if err := inv.Validate(); err != nil {
		log.Warn("start mining skipped: invalid investment", "error", err)
		metrics.SeedRunsTotal.WithLabelValues("skipped").Inc()
		return report
	}

	// Months are processed in order; each one is an independent unit of work
	for _, plan := range PlanMonths(inv) {
		if ctx.Err() != nil {
			log.Warn("start mining interrupted", "month_index", plan.Index, "error", ctx.Err())
			break
		}
		if err := s.seedMonth(ctx, log, inv, plan, &report); err != nil {
			report.MonthsFailed++
			metrics.SeedFailuresTotal.WithLabelValues(string(domain.GranularityMonth)).Inc()
			log.Warn("month seeding failed, continuing",
				"month_index", plan.Index,
				"period_start", plan.Period.Start,
				"error", err,
			)
		}
	}

	result := "ok"
	if report.MonthsFailed > 0 || report.DaysFailed > 0 {
		result = "partial"
	}
	metrics.SeedRunsTotal.WithLabelValues(result).Inc()

	log.Info("start mining finished",
		"months_created", report.MonthsCreated,
		"months_skipped", report.MonthsSkipped,
		"months_failed", report.MonthsFailed,
		"days_created", report.DaysCreated,
		"days_failed", report.DaysFailed,
		"hours_inserted", report.HoursInserted,
	)

	return report
}

// seedMonth seeds one month row, then each of its days with their hours
func (s *MiningService) seedMonth(ctx context.Context, log *slog.Logger, inv *domain.Investment, plan MonthPlan, report *SeedReport) error {
	month, created, err := s.Seeder.SeedMonth(ctx, s.Generator.NewMonth(inv, plan))
	if err != nil {
		return err
	}
	if created {
		report.MonthsCreated++
		metrics.BucketsInsertedTotal.WithLabelValues(string(domain.GranularityMonth)).Inc()
	} else {
		report.MonthsSkipped++
		metrics.BucketsSkippedTotal.WithLabelValues(string(domain.GranularityMonth)).Inc()
	}

	days, err := s.planDays(ctx, inv, plan, month)
	if err != nil {
		return err
	}

	planHours := s.Generator.PlanHours(inv, plan)
	for _, day := range days {
		result, err := s.Seeder.SeedDay(ctx, day, planHours)
		if err != nil {
			report.DaysFailed++
			metrics.SeedFailuresTotal.WithLabelValues(string(domain.GranularityDay)).Inc()
			log.Warn("day seeding failed, continuing",
				"month_index", plan.Index,
				"period_start", day.Period.Start,
				"error", err,
			)
			continue
		}

		if result.DayCreated {
			report.DaysCreated++
			metrics.BucketsInsertedTotal.WithLabelValues(string(domain.GranularityDay)).Inc()
		} else {
			report.DaysSkipped++
			metrics.BucketsSkippedTotal.WithLabelValues(string(domain.GranularityDay)).Inc()
		}
		report.HoursInserted += result.HoursInserted
		report.HoursSkipped += result.HoursSkipped
		metrics.BucketsInsertedTotal.WithLabelValues(string(domain.GranularityHour)).Add(float64(result.HoursInserted))
		metrics.BucketsSkippedTotal.WithLabelValues(string(domain.GranularityHour)).Add(float64(result.HoursSkipped))
	}

	return nil
}

// planDays returns one daily bucket per day of the month, in order
// Stored days are returned as-is; missing days split the month amount they left over
func (s *MiningService) planDays(ctx context.Context, inv *domain.Investment, plan MonthPlan, month *domain.MonthlyBucket) ([]*domain.DailyBucket, error) {
	existing, err := s.BucketRepo.ListDays(ctx, month.ID)
	if err != nil {
		return nil, err
	}

	stored := make(map[int64]*domain.DailyBucket, len(existing))
	storedSum := decimal.Zero
	for _, d := range existing {
		stored[d.Period.Start.Unix()] = d
		storedSum = storedSum.Add(d.Amount)
	}

	periods := DayPeriods(plan)
	missing := 0
	for _, p := range periods {
		if stored[p.Start.Unix()] == nil {
			missing++
		}
	}

	shares := s.Generator.DayShares(inv, plan, month.Amount.Sub(storedSum), missing)
	if missing > 0 && !domain.WithinTolerance(month.Amount, storedSum.Add(domain.SumAmounts(shares))) {
		return nil, fmt.Errorf("%w: days of month %d sum to %s, want %s",
			domain.ErrInvariantViolation, plan.Index, storedSum.Add(domain.SumAmounts(shares)), month.Amount)
	}

	days := make([]*domain.DailyBucket, 0, len(periods))
	next := 0
	for _, p := range periods {
		if d := stored[p.Start.Unix()]; d != nil {
			days = append(days, d)
			continue
		}
		days = append(days, &domain.DailyBucket{
			ID:              uuid.New(),
			MonthlyBucketID: month.ID,
			InvestmentID:    inv.ID,
			Period:          p,
			Currency:        month.Currency,
			Amount:          shares[next],
		})
		next++
	}

	return days, nil
}

// lock serializes runs for the same investment inside this process
// The store's unique keys still guard against other processes
func (s *MiningService) lock(investmentID uuid.UUID) func() {
	mu, _ := s.locks.LoadOrStore(investmentID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
