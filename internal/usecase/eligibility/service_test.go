package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/minefund-backend/internal/domain"
)

// MockProfitBucketRepository is a mock implementation of domain.ProfitBucketRepository
type MockProfitBucketRepository struct {
	mock.Mock
}

func (m *MockProfitBucketRepository) FindMonth(ctx context.Context, investmentID uuid.UUID, period domain.Period) (*domain.MonthlyBucket, error) {
	panic("not used")
}

func (m *MockProfitBucketRepository) InsertMonth(ctx context.Context, bucket *domain.MonthlyBucket) (bool, error) {
	panic("not used")
}

func (m *MockProfitBucketRepository) ListMonths(ctx context.Context, investmentID uuid.UUID, startAtOrBefore time.Time) ([]*domain.MonthlyBucket, error) {
	args := m.Called(ctx, investmentID, startAtOrBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.MonthlyBucket), args.Error(1)
}

func (m *MockProfitBucketRepository) ConsumeMonths(ctx context.Context, ids []uuid.UUID) error {
	panic("not used")
}

func (m *MockProfitBucketRepository) FindDay(ctx context.Context, monthlyBucketID uuid.UUID, period domain.Period) (*domain.DailyBucket, error) {
	panic("not used")
}

func (m *MockProfitBucketRepository) InsertDay(ctx context.Context, bucket *domain.DailyBucket) (bool, error) {
	panic("not used")
}

func (m *MockProfitBucketRepository) ListDays(ctx context.Context, monthlyBucketID uuid.UUID) ([]*domain.DailyBucket, error) {
	panic("not used")
}

func (m *MockProfitBucketRepository) ListHours(ctx context.Context, dailyBucketID uuid.UUID) ([]*domain.HourlyBucket, error) {
	panic("not used")
}

func (m *MockProfitBucketRepository) InsertHours(ctx context.Context, buckets []*domain.HourlyBucket) (int, error) {
	panic("not used")
}

func month(amount int64, flags domain.Flags) *domain.MonthlyBucket {
	return &domain.MonthlyBucket{ID: uuid.New(), Amount: decimal.NewFromInt(amount), Flags: flags}
}

func TestAggregator_Eligible_FiltersAvailable(t *testing.T) {
	mockRepo := new(MockProfitBucketRepository)
	agg := NewAggregator(mockRepo)

	investmentID := uuid.New()
	ref := time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)

	available := month(100, domain.Flags{Withdrawable: true})
	maturing := month(50, domain.Flags{Locked: true})
	consumed := month(70, domain.Flags{Withdrawable: true, Locked: true, IsTransferred: true})
	alsoAvailable := month(25, domain.Flags{Withdrawable: true})

	mockRepo.On("ListMonths", mock.Anything, investmentID, ref).
		Return([]*domain.MonthlyBucket{available, maturing, consumed, alsoAvailable}, nil)

	got, err := agg.Eligible(context.Background(), investmentID, ref)

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(125).Equal(got.Total), "got %s", got.Total)
	assert.Equal(t, []uuid.UUID{available.ID, alsoAvailable.ID}, got.BucketIDs)
	mockRepo.AssertExpectations(t)
}

func TestAggregator_Eligible_NoBuckets(t *testing.T) {
	mockRepo := new(MockProfitBucketRepository)
	agg := NewAggregator(mockRepo)

	mockRepo.On("ListMonths", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	got, err := agg.Eligible(context.Background(), uuid.New(), time.Now())

	require.NoError(t, err)
	assert.True(t, got.Total.IsZero())
	assert.Empty(t, got.BucketIDs)
}

func TestAggregator_Eligible_Errors(t *testing.T) {
	t.Run("store failure is wrapped", func(t *testing.T) {
		mockRepo := new(MockProfitBucketRepository)
		storeErr := errors.New("connection refused")
		mockRepo.On("ListMonths", mock.Anything, mock.Anything, mock.Anything).Return(nil, storeErr)

		_, err := NewAggregator(mockRepo).Eligible(context.Background(), uuid.New(), time.Now())

		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("unreachable flags are rejected", func(t *testing.T) {
		mockRepo := new(MockProfitBucketRepository)
		broken := month(10, domain.Flags{IsTransferred: true})
		mockRepo.On("ListMonths", mock.Anything, mock.Anything, mock.Anything).
			Return([]*domain.MonthlyBucket{broken}, nil)

		_, err := NewAggregator(mockRepo).Eligible(context.Background(), uuid.New(), time.Now())

		assert.Error(t, err)
	})
}

func TestEndOfPreviousMonth(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid month",
			now:  time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
			want: time.Date(2025, 2, 28, 23, 59, 59, 999999999, time.UTC),
		},
		{
			name: "january rolls back a year",
			now:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 12, 31, 23, 59, 59, 999999999, time.UTC),
		},
		{
			name: "converted to UTC first",
			now:  time.Date(2025, 4, 1, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)),
			want: time.Date(2025, 2, 28, 23, 59, 59, 999999999, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EndOfPreviousMonth(tt.now))
		})
	}
}
