// Package memory is an in-process implementation of the domain repositories.
// It backs local runs with --store=memory and the use-case tests; transactions
// are serialized behind one mutex and rolled back from a snapshot on error.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/minefund-backend/internal/domain"
)

// FaultFunc lets tests fail an operation; op is the repository method name
type FaultFunc func(op string, arg any) error

type periodKey struct {
	investmentID uuid.UUID
	start        int64
	end          int64
}

func keyOf(investmentID uuid.UUID, p domain.Period) periodKey {
	return periodKey{investmentID: investmentID, start: p.Start.UnixNano(), end: p.End.UnixNano()}
}

type state struct {
	investments  map[uuid.UUID]domain.Investment
	months       map[uuid.UUID]domain.MonthlyBucket
	days         map[uuid.UUID]domain.DailyBucket
	hours        map[uuid.UUID]domain.HourlyBucket
	monthKeys    map[periodKey]uuid.UUID
	dayKeys      map[periodKey]uuid.UUID
	hourKeys     map[periodKey]uuid.UUID
	accounts     map[uuid.UUID]domain.Account
	transactions []domain.Transaction
}

func newState() *state {
	return &state{
		investments: make(map[uuid.UUID]domain.Investment),
		months:      make(map[uuid.UUID]domain.MonthlyBucket),
		days:        make(map[uuid.UUID]domain.DailyBucket),
		hours:       make(map[uuid.UUID]domain.HourlyBucket),
		monthKeys:   make(map[periodKey]uuid.UUID),
		dayKeys:     make(map[periodKey]uuid.UUID),
		hourKeys:    make(map[periodKey]uuid.UUID),
		accounts:    make(map[uuid.UUID]domain.Account),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.investments {
		c.investments[k] = v
	}
	for k, v := range st.months {
		c.months[k] = v
	}
	for k, v := range st.days {
		c.days[k] = v
	}
	for k, v := range st.hours {
		c.hours[k] = v
	}
	for k, v := range st.monthKeys {
		c.monthKeys[k] = v
	}
	for k, v := range st.dayKeys {
		c.dayKeys[k] = v
	}
	for k, v := range st.hourKeys {
		c.hourKeys[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	c.transactions = append([]domain.Transaction(nil), st.transactions...)
	return c
}

// Store holds every table in memory
type Store struct {
	mu    sync.Mutex
	state *state
	fault FaultFunc
}

type txKey struct{}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{state: newState()}
}

// SetFault installs a fault hook; pass nil to clear it
func (s *Store) SetFault(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

// WithinTx implements domain.TxManager
// Nested calls join the outer transaction
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// do runs fn against the state, taking the lock unless ctx belongs to a transaction
func (s *Store) do(ctx context.Context, op string, arg any, fn func(st *state) error) error {
	if owner, ok := ctx.Value(txKey{}).(*Store); !ok || owner != s {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.fault != nil {
		if err := s.fault(op, arg); err != nil {
			return err
		}
	}
	return fn(s.state)
}

// Investments returns the investment repository view
func (s *Store) Investments() domain.InvestmentRepository { return investmentRepo{s} }

// Buckets returns the profit bucket repository view
func (s *Store) Buckets() domain.ProfitBucketRepository { return bucketRepo{s} }

// Accounts returns the account repository view
func (s *Store) Accounts() domain.AccountRepository { return accountRepo{s} }

// Transactions returns the ledger repository view
func (s *Store) Transactions() domain.TransactionRepository { return transactionRepo{s} }

type investmentRepo struct{ s *Store }

func (r investmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	var out *domain.Investment
	err := r.s.do(ctx, "GetInvestment", id, func(st *state) error {
		inv, ok := st.investments[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrInvestmentNotFound, id)
		}
		out = &inv
		return nil
	})
	return out, err
}

func (r investmentRepo) Create(ctx context.Context, inv *domain.Investment) error {
	return r.s.do(ctx, "CreateInvestment", inv, func(st *state) error {
		if _, ok := st.investments[inv.ID]; ok {
			return fmt.Errorf("investment %s already exists", inv.ID)
		}
		st.investments[inv.ID] = *inv
		return nil
	})
}

type bucketRepo struct{ s *Store }

func (r bucketRepo) FindMonth(ctx context.Context, investmentID uuid.UUID, period domain.Period) (*domain.MonthlyBucket, error) {
	var out *domain.MonthlyBucket
	err := r.s.do(ctx, "FindMonth", period, func(st *state) error {
		if id, ok := st.monthKeys[keyOf(investmentID, period)]; ok {
			m := st.months[id]
			out = &m
		}
		return nil
	})
	return out, err
}

func (r bucketRepo) InsertMonth(ctx context.Context, bucket *domain.MonthlyBucket) (bool, error) {
	inserted := false
	err := r.s.do(ctx, "InsertMonth", bucket, func(st *state) error {
		key := keyOf(bucket.InvestmentID, bucket.Period)
		if _, ok := st.monthKeys[key]; ok {
			return nil
		}
		st.monthKeys[key] = bucket.ID
		st.months[bucket.ID] = *bucket
		inserted = true
		return nil
	})
	return inserted, err
}

func (r bucketRepo) ListMonths(ctx context.Context, investmentID uuid.UUID, startAtOrBefore time.Time) ([]*domain.MonthlyBucket, error) {
	var out []*domain.MonthlyBucket
	err := r.s.do(ctx, "ListMonths", investmentID, func(st *state) error {
		for _, m := range st.months {
			if m.InvestmentID == investmentID && !m.Period.Start.After(startAtOrBefore) {
				m := m
				out = append(out, &m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Start.Before(out[j].Period.Start) })
	return out, err
}

func (r bucketRepo) ConsumeMonths(ctx context.Context, ids []uuid.UUID) error {
	return r.s.do(ctx, "ConsumeMonths", ids, func(st *state) error {
		for _, id := range ids {
			m, ok := st.months[id]
			if !ok {
				return fmt.Errorf("%w: monthly bucket %s not found", domain.ErrConcurrencyConflict, id)
			}
			state, err := m.State()
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrConcurrencyConflict, err)
			}
			if _, err := state.Consume(); err != nil {
				return fmt.Errorf("%w: monthly bucket %s: %v", domain.ErrConcurrencyConflict, id, err)
			}
		}
		// Checked all first so a conflict leaves every bucket untouched
		for _, id := range ids {
			m := st.months[id]
			m.Flags = domain.StateConsumed.Flags()
			st.months[id] = m
		}
		return nil
	})
}

func (r bucketRepo) FindDay(ctx context.Context, monthlyBucketID uuid.UUID, period domain.Period) (*domain.DailyBucket, error) {
	var out *domain.DailyBucket
	err := r.s.do(ctx, "FindDay", period, func(st *state) error {
		month, ok := st.months[monthlyBucketID]
		if !ok {
			return nil
		}
		if id, ok := st.dayKeys[keyOf(month.InvestmentID, period)]; ok {
			d := st.days[id]
			out = &d
		}
		return nil
	})
	return out, err
}

func (r bucketRepo) InsertDay(ctx context.Context, bucket *domain.DailyBucket) (bool, error) {
	inserted := false
	err := r.s.do(ctx, "InsertDay", bucket, func(st *state) error {
		if _, ok := st.months[bucket.MonthlyBucketID]; !ok {
			return fmt.Errorf("monthly bucket %s not found", bucket.MonthlyBucketID)
		}
		key := keyOf(bucket.InvestmentID, bucket.Period)
		if _, ok := st.dayKeys[key]; ok {
			return nil
		}
		st.dayKeys[key] = bucket.ID
		st.days[bucket.ID] = *bucket
		inserted = true
		return nil
	})
	return inserted, err
}

func (r bucketRepo) ListDays(ctx context.Context, monthlyBucketID uuid.UUID) ([]*domain.DailyBucket, error) {
	var out []*domain.DailyBucket
	err := r.s.do(ctx, "ListDays", monthlyBucketID, func(st *state) error {
		for _, d := range st.days {
			if d.MonthlyBucketID == monthlyBucketID {
				d := d
				out = append(out, &d)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Start.Before(out[j].Period.Start) })
	return out, err
}

func (r bucketRepo) ListHours(ctx context.Context, dailyBucketID uuid.UUID) ([]*domain.HourlyBucket, error) {
	var out []*domain.HourlyBucket
	err := r.s.do(ctx, "ListHours", dailyBucketID, func(st *state) error {
		for _, h := range st.hours {
			if h.DailyBucketID == dailyBucketID {
				h := h
				out = append(out, &h)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Start.Before(out[j].Period.Start) })
	return out, err
}

func (r bucketRepo) InsertHours(ctx context.Context, buckets []*domain.HourlyBucket) (int, error) {
	inserted := 0
	err := r.s.do(ctx, "InsertHours", buckets, func(st *state) error {
		for _, h := range buckets {
			if _, ok := st.days[h.DailyBucketID]; !ok {
				return fmt.Errorf("daily bucket %s not found", h.DailyBucketID)
			}
		}
		for _, h := range buckets {
			key := keyOf(h.InvestmentID, h.Period)
			if _, ok := st.hourKeys[key]; ok {
				continue
			}
			st.hourKeys[key] = h.ID
			st.hours[h.ID] = *h
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

type accountRepo struct{ s *Store }

func (r accountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var out *domain.Account
	err := r.s.do(ctx, "GetAccount", id, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		out = &a
		return nil
	})
	return out, err
}

func (r accountRepo) Create(ctx context.Context, account *domain.Account) error {
	return r.s.do(ctx, "CreateAccount", account, func(st *state) error {
		if _, ok := st.accounts[account.ID]; ok {
			return fmt.Errorf("account %s already exists", account.ID)
		}
		st.accounts[account.ID] = *account
		return nil
	})
}

func (r accountRepo) LockFundingSources(ctx context.Context, currency string) ([]*domain.Account, error) {
	var out []*domain.Account
	err := r.s.do(ctx, "LockFundingSources", currency, func(st *state) error {
		for _, a := range st.accounts {
			if a.IsFundingSource && (currency == "" || a.Currency == currency) {
				a := a
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, err
}

func (r accountRepo) Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return r.s.do(ctx, "Debit", id, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		if a.Balance.LessThan(amount) {
			return fmt.Errorf("%w: account %s balance %s below %s", domain.ErrConcurrencyConflict, id, a.Balance, amount)
		}
		a.Balance = a.Balance.Sub(amount)
		st.accounts[id] = a
		return nil
	})
}

func (r accountRepo) Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return r.s.do(ctx, "Credit", id, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		a.Balance = a.Balance.Add(amount)
		st.accounts[id] = a
		return nil
	})
}

type transactionRepo struct{ s *Store }

func (r transactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	return r.s.do(ctx, "CreateTransaction", tx, func(st *state) error {
		c := *tx
		c.Entries = append([]domain.TransactionEntry(nil), tx.Entries...)
		st.transactions = append(st.transactions, c)
		return nil
	})
}

func (r transactionRepo) ListByInvestment(ctx context.Context, investmentID uuid.UUID) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	err := r.s.do(ctx, "ListTransactions", investmentID, func(st *state) error {
		for i := len(st.transactions) - 1; i >= 0; i-- {
			tx := st.transactions[i]
			if tx.InvestmentID != nil && *tx.InvestmentID == investmentID {
				out = append(out, &tx)
			}
		}
		return nil
	})
	return out, err
}
