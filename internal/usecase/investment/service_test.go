package investment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/minefund-backend/internal/domain"
)

// MockInvestmentRepository is a mock implementation of InvestmentRepository for testing
type MockInvestmentRepository struct {
	mock.Mock
}

func (m *MockInvestmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Investment), args.Error(1)
}

func (m *MockInvestmentRepository) Create(ctx context.Context, inv *domain.Investment) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

var now = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func TestCreateInvestment_AggregatesUnits(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockInvestmentRepository)
	service := NewInvestmentService(mockRepo, clockwork.NewFakeClockAt(now))

	mockRepo.On("Create", ctx, mock.AnythingOfType("*domain.Investment")).Return(nil)

	inv, err := service.CreateInvestment(ctx, CreateInvestmentInput{
		Deposit:        decimal.NewFromInt(5000),
		DurationMonths: 12,
		Currency:       " usdt ",
		Units: []domain.MiningUnit{
			{Rate: decimal.RequireFromString("0.02"), Fraction: decimal.RequireFromString("0.05")},
			{Rate: decimal.RequireFromString("0.03"), Fraction: decimal.RequireFromString("0.10")},
		},
		// Ignored because units are given
		ProductionRate: decimal.NewFromInt(9),
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.05").Equal(inv.ProductionRate))
	assert.True(t, decimal.RequireFromString("0.15").Equal(inv.VariationFactor))
	assert.Equal(t, "USDT", inv.Currency)
	assert.Equal(t, now, inv.StartTime)
	assert.NotEqual(t, uuid.Nil, inv.ID)
	mockRepo.AssertExpectations(t)
}

func TestCreateInvestment_ExplicitRateAndStart(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockInvestmentRepository)
	service := NewInvestmentService(mockRepo, clockwork.NewFakeClockAt(now))

	mockRepo.On("Create", ctx, mock.AnythingOfType("*domain.Investment")).Return(nil)

	start := time.Date(2025, 1, 1, 3, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))
	inv, err := service.CreateInvestment(ctx, CreateInvestmentInput{
		Deposit:         decimal.NewFromInt(1000),
		DurationMonths:  3,
		StartTime:       start,
		Currency:        "BTC",
		ProductionRate:  decimal.RequireFromString("0.04"),
		VariationFactor: decimal.RequireFromString("0.1"),
	})

	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), inv.StartTime)
	assert.True(t, decimal.RequireFromString("0.04").Equal(inv.ProductionRate))
}

func TestCreateInvestment_Validation(t *testing.T) {
	valid := CreateInvestmentInput{
		Deposit:        decimal.NewFromInt(1000),
		DurationMonths: 3,
		Currency:       "USDT",
	}

	tests := []struct {
		name   string
		modify func(in *CreateInvestmentInput)
	}{
		{"zero deposit", func(in *CreateInvestmentInput) { in.Deposit = decimal.Zero }},
		{"no duration", func(in *CreateInvestmentInput) { in.DurationMonths = 0 }},
		{"missing currency", func(in *CreateInvestmentInput) { in.Currency = "  " }},
		{"negative rate", func(in *CreateInvestmentInput) { in.ProductionRate = decimal.NewFromInt(-1) }},
		{"negative unit fraction", func(in *CreateInvestmentInput) {
			in.Units = []domain.MiningUnit{{Rate: decimal.NewFromInt(1), Fraction: decimal.NewFromInt(-1)}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockInvestmentRepository)
			service := NewInvestmentService(mockRepo, clockwork.NewFakeClockAt(now))

			input := valid
			tt.modify(&input)

			inv, err := service.CreateInvestment(context.Background(), input)

			assert.Nil(t, inv)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateInvestment_RepositoryError(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockInvestmentRepository)
	service := NewInvestmentService(mockRepo, clockwork.NewFakeClockAt(now))

	storeErr := errors.New("database connection error")
	mockRepo.On("Create", ctx, mock.Anything).Return(storeErr)

	_, err := service.CreateInvestment(ctx, CreateInvestmentInput{
		Deposit:        decimal.NewFromInt(1000),
		DurationMonths: 1,
		Currency:       "USDT",
	})

	assert.ErrorIs(t, err, storeErr)
}

func TestGetInvestment_NotFound(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockInvestmentRepository)
	service := NewInvestmentService(mockRepo, clockwork.NewFakeClockAt(now))

	id := uuid.New()
	mockRepo.On("GetByID", ctx, id).Return(nil, domain.ErrInvestmentNotFound)

	_, err := service.GetInvestment(ctx, id)

	assert.ErrorIs(t, err, domain.ErrInvestmentNotFound)
}
