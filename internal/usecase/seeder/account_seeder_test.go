package seeder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/minefund-backend/internal/domain"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) LockFundingSources(ctx context.Context, currency string) ([]*domain.Account, error) {
	panic("not used")
}

func (m *MockAccountRepository) Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	panic("not used")
}

func (m *MockAccountRepository) Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	panic("not used")
}

const accountsYAML = `
accounts:
  - id: 00000000-0000-0000-0000-0000000000a1
    name: Pool A
    currency: usdt
    balance: "5000.25"
    funding_source: true
    priority: 1
  - id: 00000000-0000-0000-0000-0000000000b1
    name: Investor Wallet
    currency: USDT
`

func TestLoadAccounts(t *testing.T) {
	accounts, err := LoadAccounts(strings.NewReader(accountsYAML))

	require.NoError(t, err)
	require.Len(t, accounts, 2)

	pool := accounts[0]
	assert.Equal(t, uuid.MustParse("00000000-0000-0000-0000-0000000000a1"), pool.ID)
	assert.Equal(t, "USDT", pool.Currency)
	assert.True(t, pool.Balance.Equal(decimal.RequireFromString("5000.25")))
	assert.True(t, pool.IsFundingSource)
	assert.Equal(t, 1, pool.Priority)

	wallet := accounts[1]
	assert.False(t, wallet.IsFundingSource)
	assert.True(t, wallet.Balance.IsZero())
}

func TestLoadAccounts_Empty(t *testing.T) {
	accounts, err := LoadAccounts(strings.NewReader(""))

	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestLoadAccounts_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "bad id",
			input:   "accounts:\n  - id: nope\n    name: A\n    currency: USDT\n",
			wantErr: "invalid id",
		},
		{
			name:    "bad balance",
			input:   "accounts:\n  - id: 00000000-0000-0000-0000-000000000001\n    name: A\n    currency: USDT\n    balance: lots\n",
			wantErr: "invalid balance",
		},
		{
			name:    "negative balance",
			input:   "accounts:\n  - id: 00000000-0000-0000-0000-000000000001\n    name: A\n    currency: USDT\n    balance: \"-1\"\n",
			wantErr: "negative",
		},
		{
			name:    "missing currency",
			input:   "accounts:\n  - id: 00000000-0000-0000-0000-000000000001\n    name: A\n",
			wantErr: "currency",
		},
		{
			name:    "unknown field",
			input:   "accounts:\n  - id: 00000000-0000-0000-0000-000000000001\n    name: A\n    currency: USDT\n    colour: red\n",
			wantErr: "colour",
		},
		{
			name: "duplicate id",
			input: "accounts:\n" +
				"  - {id: 00000000-0000-0000-0000-000000000001, name: A, currency: USDT}\n" +
				"  - {id: 00000000-0000-0000-0000-000000000001, name: B, currency: USDT}\n",
			wantErr: "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAccounts(strings.NewReader(tt.input))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAccountSeeder_Seed(t *testing.T) {
	ctx := context.Background()
	existing := &domain.Account{ID: uuid.New(), Name: "Pool A", Currency: "USDT", Balance: decimal.NewFromInt(10)}
	missing := &domain.Account{ID: uuid.New(), Name: "Wallet", Currency: "USDT"}

	repo := new(MockAccountRepository)
	repo.On("GetByID", ctx, existing.ID).Return(existing, nil)
	repo.On("GetByID", ctx, missing.ID).Return(nil, domain.ErrAccountNotFound)
	repo.On("Create", ctx, missing).Return(nil)

	created, err := NewAccountSeeder(repo).Seed(ctx, []*domain.Account{existing, missing})

	require.NoError(t, err)
	assert.Equal(t, 1, created)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "Create", ctx, existing)
}

func TestAccountSeeder_Seed_LookupError(t *testing.T) {
	ctx := context.Background()
	a := &domain.Account{ID: uuid.New(), Name: "Pool", Currency: "USDT"}

	repo := new(MockAccountRepository)
	repo.On("GetByID", ctx, a.ID).Return(nil, errors.New("connection reset"))

	created, err := NewAccountSeeder(repo).Seed(ctx, []*domain.Account{a})

	assert.ErrorContains(t, err, "connection reset")
	assert.Zero(t, created)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
