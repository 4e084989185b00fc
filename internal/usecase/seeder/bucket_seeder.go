package seeder

import (
	"context"
	"fmt"

	"github.com/simaogato/minefund-backend/internal/domain"
)

// HourPlanner returns the hourly buckets still missing under day
// existing holds the hours already stored for that day, ordered by start
type HourPlanner func(day *domain.DailyBucket, existing []*domain.HourlyBucket) ([]*domain.HourlyBucket, error)

// DayResult reports what SeedDay wrote
type DayResult struct {
	Day           *domain.DailyBucket
	DayCreated    bool
	HoursInserted int
	HoursSkipped  int
}

// BucketSeeder inserts profit buckets only for periods that are not stored yet
// Existing rows are never modified, so seeding can be repeated safely
type BucketSeeder struct {
	repo domain.ProfitBucketRepository
	tx   domain.TxManager
}

// NewBucketSeeder creates a new BucketSeeder instance
func NewBucketSeeder(repo domain.ProfitBucketRepository, tx domain.TxManager) *BucketSeeder {
	return &BucketSeeder{
		repo: repo,
		tx:   tx,
	}
}

// SeedMonth ensures a monthly bucket exists for candidate's exact period
// Returns the stored bucket, which is the pre-existing one if the period was already seeded
func (s *BucketSeeder) SeedMonth(ctx context.Context, candidate *domain.MonthlyBucket) (*domain.MonthlyBucket, bool, error) {
	if err := candidate.Period.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	var stored *domain.MonthlyBucket
	var created bool

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Try to find the month by its period
		existing, err := s.repo.FindMonth(ctx, candidate.InvestmentID, candidate.Period)
		if err != nil {
			return err
		}
		if existing != nil {
			// Month exists, leave it untouched
			stored = existing
			return nil
		}

		inserted, err := s.repo.InsertMonth(ctx, candidate)
		if err != nil {
			return err
		}
		if inserted {
			stored, created = candidate, true
			return nil
		}

		// A concurrent run won the unique key; adopt its row
		stored, err = s.repo.FindMonth(ctx, candidate.InvestmentID, candidate.Period)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("%w: month %s vanished after conflict", domain.ErrConcurrencyConflict, candidate.Period.Start)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return stored, created, nil
}

// SeedDay ensures a daily bucket and its 24 hourly buckets exist
// The day row and the batch of missing hours are written in one transaction
func (s *BucketSeeder) SeedDay(ctx context.Context, candidate *domain.DailyBucket, planHours HourPlanner) (DayResult, error) {
	if err := candidate.Period.Validate(); err != nil {
		return DayResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	var result DayResult

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		result = DayResult{}

		day, err := s.repo.FindDay(ctx, candidate.MonthlyBucketID, candidate.Period)
		if err != nil {
			return err
		}
		if day == nil {
			inserted, err := s.repo.InsertDay(ctx, candidate)
			if err != nil {
				return err
			}
			if inserted {
				day, result.DayCreated = candidate, true
			} else {
				day, err = s.repo.FindDay(ctx, candidate.MonthlyBucketID, candidate.Period)
				if err != nil {
					return err
				}
				if day == nil {
					return fmt.Errorf("%w: day %s vanished after conflict", domain.ErrConcurrencyConflict, candidate.Period.Start)
				}
			}
		}
		result.Day = day

		existing, err := s.repo.ListHours(ctx, day.ID)
		if err != nil {
			return err
		}
		result.HoursSkipped = len(existing)

		missing, err := planHours(day, existing)
		if err != nil {
			return err
		}
		if len(missing) == 0 {
			return nil
		}

		inserted, err := s.repo.InsertHours(ctx, missing)
		if err != nil {
			return err
		}
		result.HoursInserted = inserted
		result.HoursSkipped += len(missing) - inserted
		return nil
	})
	if err != nil {
		return DayResult{}, err
	}

	return result, nil
}
