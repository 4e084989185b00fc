package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/simaogato/minefund-backend/internal/domain"
)

// bucketRepository implements domain.ProfitBucketRepository
type bucketRepository struct {
	db *DB
}

// NewBucketRepository creates a new profit bucket repository
func NewBucketRepository(db *DB) domain.ProfitBucketRepository {
	return &bucketRepository{db: db}
}

const monthColumns = `id, investment_id, month_index, period_start, period_end, currency, amount, withdrawable, locked, is_transferred`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMonth(row rowScanner) (*domain.MonthlyBucket, error) {
	var m domain.MonthlyBucket
	var amountStr string

	err := row.Scan(
		&m.ID,
		&m.InvestmentID,
		&m.MonthIndex,
		&m.Period.Start,
		&m.Period.End,
		&m.Currency,
		&amountStr,
		&m.Flags.Withdrawable,
		&m.Flags.Locked,
		&m.Flags.IsTransferred,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	m.Amount = amount
	m.Period = utcPeriod(m.Period)

	return &m, nil
}

// FindMonth retrieves the monthly bucket with exactly this period, or nil
func (r *bucketRepository) FindMonth(ctx context.Context, investmentID uuid.UUID, period domain.Period) (*domain.MonthlyBucket, error) {
	query := `SELECT ` + monthColumns + `
		FROM monthly_buckets
		WHERE investment_id = $1 AND period_start = $2 AND period_end = $3
	`

	m, err := scanMonth(r.db.conn(ctx).QueryRowContext(ctx, query, investmentID, period.Start, period.End))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find monthly bucket: %w", err)
	}
	return m, nil
}

// InsertMonth inserts a monthly bucket unless its period is already stored
func (r *bucketRepository) InsertMonth(ctx context.Context, bucket *domain.MonthlyBucket) (bool, error) {
	query := `
		INSERT INTO monthly_buckets (` + monthColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (investment_id, period_start, period_end) DO NOTHING
	`

	res, err := r.db.conn(ctx).ExecContext(ctx, query,
		bucket.ID,
		bucket.InvestmentID,
		bucket.MonthIndex,
		bucket.Period.Start.UTC(),
		bucket.Period.End.UTC(),
		bucket.Currency,
		bucket.Amount.String(),
		bucket.Flags.Withdrawable,
		bucket.Flags.Locked,
		bucket.Flags.IsTransferred,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert monthly bucket: %w", err)
	}
	return inserted(res)
}

// ListMonths retrieves monthly buckets started at or before the given instant, ordered by start
func (r *bucketRepository) ListMonths(ctx context.Context, investmentID uuid.UUID, startAtOrBefore time.Time) ([]*domain.MonthlyBucket, error) {
	query := `SELECT ` + monthColumns + `
		FROM monthly_buckets
		WHERE investment_id = $1 AND period_start <= $2
		ORDER BY period_start
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, investmentID, startAtOrBefore.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list monthly buckets: %w", err)
	}
	defer rows.Close()

	var months []*domain.MonthlyBucket
	for rows.Next() {
		m, err := scanMonth(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan monthly bucket: %w", err)
		}
		months = append(months, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monthly buckets: %w", err)
	}

	return months, nil
}

// ConsumeMonths marks Available monthly buckets as transferred
// Every id must still be Available; otherwise nothing is changed and ErrConcurrencyConflict is returned
func (r *bucketRepository) ConsumeMonths(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	// Consumed flags: withdrawable, locked, transferred
	query := `
		UPDATE monthly_buckets
		SET locked = TRUE, is_transferred = TRUE
		WHERE id = ANY($1::uuid[]) AND withdrawable AND NOT locked AND NOT is_transferred
	`

	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		res, err := r.db.conn(ctx).ExecContext(ctx, query, pq.Array(uuidStrings(ids)))
		if err != nil {
			return fmt.Errorf("failed to consume monthly buckets: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected != int64(len(ids)) {
			// Returning the error rolls the partial update back
			return fmt.Errorf("%w: consumed %d of %d monthly buckets", domain.ErrConcurrencyConflict, affected, len(ids))
		}
		return nil
	})
}

const dayColumns = `id, monthly_bucket_id, investment_id, period_start, period_end, currency, amount`

func scanDay(row rowScanner) (*domain.DailyBucket, error) {
	var d domain.DailyBucket
	var amountStr string

	err := row.Scan(
		&d.ID,
		&d.MonthlyBucketID,
		&d.InvestmentID,
		&d.Period.Start,
		&d.Period.End,
		&d.Currency,
		&amountStr,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	d.Amount = amount
	d.Period = utcPeriod(d.Period)

	return &d, nil
}

// FindDay retrieves the daily bucket of a month with exactly this period, or nil
func (r *bucketRepository) FindDay(ctx context.Context, monthlyBucketID uuid.UUID, period domain.Period) (*domain.DailyBucket, error) {
	query := `SELECT ` + dayColumns + `
		FROM daily_buckets
		WHERE monthly_bucket_id = $1 AND period_start = $2 AND period_end = $3
	`

	d, err := scanDay(r.db.conn(ctx).QueryRowContext(ctx, query, monthlyBucketID, period.Start, period.End))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find daily bucket: %w", err)
	}
	return d, nil
}

// InsertDay inserts a daily bucket unless its period is already stored
func (r *bucketRepository) InsertDay(ctx context.Context, bucket *domain.DailyBucket) (bool, error) {
	query := `
		INSERT INTO daily_buckets (` + dayColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (investment_id, period_start, period_end) DO NOTHING
	`

	res, err := r.db.conn(ctx).ExecContext(ctx, query,
		bucket.ID,
		bucket.MonthlyBucketID,
		bucket.InvestmentID,
		bucket.Period.Start.UTC(),
		bucket.Period.End.UTC(),
		bucket.Currency,
		bucket.Amount.String(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert daily bucket: %w", err)
	}
	return inserted(res)
}

// ListDays retrieves the daily buckets of a month ordered by start
func (r *bucketRepository) ListDays(ctx context.Context, monthlyBucketID uuid.UUID) ([]*domain.DailyBucket, error) {
	query := `SELECT ` + dayColumns + `
		FROM daily_buckets
		WHERE monthly_bucket_id = $1
		ORDER BY period_start
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, monthlyBucketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily buckets: %w", err)
	}
	defer rows.Close()

	var days []*domain.DailyBucket
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily bucket: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily buckets: %w", err)
	}

	return days, nil
}

const hourColumns = `id, daily_bucket_id, investment_id, hour_of_day, period_start, period_end, currency, amount`

// ListHours retrieves the hourly buckets of a day ordered by start
func (r *bucketRepository) ListHours(ctx context.Context, dailyBucketID uuid.UUID) ([]*domain.HourlyBucket, error) {
	query := `SELECT ` + hourColumns + `
		FROM hourly_buckets
		WHERE daily_bucket_id = $1
		ORDER BY period_start
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, dailyBucketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list hourly buckets: %w", err)
	}
	defer rows.Close()

	var hours []*domain.HourlyBucket
	for rows.Next() {
		var h domain.HourlyBucket
		var amountStr string

		if err := rows.Scan(
			&h.ID,
			&h.DailyBucketID,
			&h.InvestmentID,
			&h.HourOfDay,
			&h.Period.Start,
			&h.Period.End,
			&h.Currency,
			&amountStr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan hourly bucket: %w", err)
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		h.Amount = amount
		h.Period = utcPeriod(h.Period)

		hours = append(hours, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hourly buckets: %w", err)
	}

	return hours, nil
}

// InsertHours batch-inserts hourly buckets, skipping periods already stored
// Returns the number of rows actually inserted
func (r *bucketRepository) InsertHours(ctx context.Context, buckets []*domain.HourlyBucket) (int, error) {
	if len(buckets) == 0 {
		return 0, nil
	}

	const cols = 8
	placeholders := make([]string, 0, len(buckets))
	args := make([]any, 0, len(buckets)*cols)
	for i, h := range buckets {
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args,
			h.ID,
			h.DailyBucketID,
			h.InvestmentID,
			h.HourOfDay,
			h.Period.Start.UTC(),
			h.Period.End.UTC(),
			h.Currency,
			h.Amount.String(),
		)
	}

	query := `INSERT INTO hourly_buckets (` + hourColumns + `) VALUES ` +
		strings.Join(placeholders, ", ") +
		` ON CONFLICT (investment_id, period_start, period_end) DO NOTHING`

	res, err := r.db.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert hourly buckets: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(affected), nil
}

func inserted(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

func utcPeriod(p domain.Period) domain.Period {
	return domain.Period{Start: p.Start.UTC(), End: p.End.UTC()}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
