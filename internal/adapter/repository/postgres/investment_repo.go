package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/minefund-backend/internal/domain"
)

// investmentRepository implements domain.InvestmentRepository
type investmentRepository struct {
	db *DB
}

// NewInvestmentRepository creates a new investment repository
func NewInvestmentRepository(db *DB) domain.InvestmentRepository {
	return &investmentRepository{db: db}
}

// GetByID retrieves an investment by its ID
func (r *investmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	query := `
		SELECT id, deposit, duration_months, start_time, currency, production_rate, variation_factor
		FROM investments
		WHERE id = $1
	`

	var inv domain.Investment
	var depositStr, rateStr, variationStr string

	err := r.db.conn(ctx).QueryRowContext(ctx, query, id).Scan(
		&inv.ID,
		&depositStr,
		&inv.DurationMonths,
		&inv.StartTime,
		&inv.Currency,
		&rateStr,
		&variationStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvestmentNotFound, id)
		}
		return nil, fmt.Errorf("failed to get investment by ID: %w", err)
	}

	// Parse NUMERIC columns
	if inv.Deposit, err = decimal.NewFromString(depositStr); err != nil {
		return nil, fmt.Errorf("failed to parse deposit: %w", err)
	}
	if inv.ProductionRate, err = decimal.NewFromString(rateStr); err != nil {
		return nil, fmt.Errorf("failed to parse production_rate: %w", err)
	}
	if inv.VariationFactor, err = decimal.NewFromString(variationStr); err != nil {
		return nil, fmt.Errorf("failed to parse variation_factor: %w", err)
	}
	inv.StartTime = inv.StartTime.UTC()

	return &inv, nil
}

// Create creates a new investment
func (r *investmentRepository) Create(ctx context.Context, inv *domain.Investment) error {
	query := `
		INSERT INTO investments (id, deposit, duration_months, start_time, currency, production_rate, variation_factor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		inv.ID,
		inv.Deposit.String(),
		inv.DurationMonths,
		inv.StartTime.UTC(),
		inv.Currency,
		inv.ProductionRate.String(),
		inv.VariationFactor.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to create investment: %w", err)
	}

	return nil
}
