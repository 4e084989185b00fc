package investment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/simaogato/minefund-backend/internal/domain"
)

// CreateInvestmentInput represents the input for recording an approved investment
type CreateInvestmentInput struct {
	Deposit        decimal.Decimal
	DurationMonths int
	StartTime      time.Time // zero means now
	Currency       string

	// Units take precedence over the explicit rate and variation
	Units           []domain.MiningUnit
	ProductionRate  decimal.Decimal
	VariationFactor decimal.Decimal
}

// InvestmentService handles investment-related operations
type InvestmentService struct {
	InvestmentRepo domain.InvestmentRepository
	Clock          clockwork.Clock
}

// NewInvestmentService creates a new InvestmentService instance
func NewInvestmentService(investmentRepo domain.InvestmentRepository, clock clockwork.Clock) *InvestmentService {
	return &InvestmentService{
		InvestmentRepo: investmentRepo,
		Clock:          clock,
	}
}

// CreateInvestment records an approved investment
// Logic:
//   - Production rate and variation factor are the sums over the mining units, when given
//   - Start time defaults to now and is stored in UTC
//   - The investment is validated before it is saved
func (s *InvestmentService) CreateInvestment(ctx context.Context, input CreateInvestmentInput) (*domain.Investment, error) {
	rate, variation := input.ProductionRate, input.VariationFactor
	if len(input.Units) > 0 {
		for _, u := range input.Units {
			if u.Rate.IsNegative() || u.Fraction.IsNegative() {
				return nil, fmt.Errorf("%w: mining unit rate and fraction cannot be negative", domain.ErrInvalidInput)
			}
		}
		rate, variation = domain.AggregateUnits(input.Units)
	}

	start := input.StartTime
	if start.IsZero() {
		start = s.Clock.Now()
	}

	inv := &domain.Investment{
		ID:              uuid.New(),
		Deposit:         input.Deposit,
		DurationMonths:  input.DurationMonths,
		StartTime:       start.UTC(),
		Currency:        strings.ToUpper(strings.TrimSpace(input.Currency)),
		ProductionRate:  rate,
		VariationFactor: variation,
	}

	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if inv.Currency == "" {
		return nil, fmt.Errorf("%w: currency cannot be empty", domain.ErrInvalidInput)
	}

	if err := s.InvestmentRepo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create investment: %w", err)
	}

	return inv, nil
}

// GetInvestment retrieves an investment by its ID
func (s *InvestmentService) GetInvestment(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	return s.InvestmentRepo.GetByID(ctx, id)
}
