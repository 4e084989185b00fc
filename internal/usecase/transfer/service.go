package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/simaogato/minefund-backend/internal/domain"
	"github.com/simaogato/minefund-backend/internal/metrics"
	"github.com/simaogato/minefund-backend/internal/usecase/allocator"
	"github.com/simaogato/minefund-backend/internal/usecase/eligibility"
)

// TransferCompleted is published once a payout has been committed
type TransferCompleted struct {
	TransactionID   uuid.UUID                   `json:"transaction_id"`
	InvestmentID    uuid.UUID                   `json:"investment_id"`
	WalletAccountID uuid.UUID                   `json:"wallet_account_id"`
	Currency        string                      `json:"currency"`
	Amount          decimal.Decimal             `json:"amount"`
	BucketIDs       []uuid.UUID                 `json:"bucket_ids"`
	Transfers       []allocator.AccountTransfer `json:"transfers"`
	Reference       time.Time                   `json:"reference"`
	CompletedAt     time.Time                   `json:"completed_at"`
}

// Notifier delivers TransferCompleted events
type Notifier interface {
	TransferCompleted(ctx context.Context, event TransferCompleted) error
}

// TransferInput represents the input for a profit transfer
type TransferInput struct {
	InvestmentID    uuid.UUID
	WalletAccountID uuid.UUID
}

// TransferResult describes a committed profit transfer
type TransferResult struct {
	Transaction *domain.Transaction
	Amount      decimal.Decimal
	Reference   time.Time
	BucketIDs   []uuid.UUID
	Transfers   []allocator.AccountTransfer
}

// TransferService pays eligible monthly profit into a wallet account
type TransferService struct {
	InvestmentRepo  domain.InvestmentRepository
	BucketRepo      domain.ProfitBucketRepository
	AccountRepo     domain.AccountRepository
	TransactionRepo domain.TransactionRepository
	Tx              domain.TxManager
	Notifier        Notifier
	Clock           clockwork.Clock
	Log             *slog.Logger
}

// NewTransferService creates a new TransferService instance
func NewTransferService(
	investmentRepo domain.InvestmentRepository,
	bucketRepo domain.ProfitBucketRepository,
	accountRepo domain.AccountRepository,
	transactionRepo domain.TransactionRepository,
	tx domain.TxManager,
	notifier Notifier,
	clock clockwork.Clock,
	log *slog.Logger,
) *TransferService {
	return &TransferService{
		InvestmentRepo:  investmentRepo,
		BucketRepo:      bucketRepo,
		AccountRepo:     accountRepo,
		TransactionRepo: transactionRepo,
		Tx:              tx,
		Notifier:        notifier,
		Clock:           clock,
		Log:             log,
	}
}

// TransferProfit moves the eligible profit of an investment into a wallet
// Logic:
//  1. Reference date is the end of the previous calendar month
//  2. Sum the Available monthly buckets started by then
//  3. Lock the funding accounts in priority order and run the waterfall over them
//  4. Debit each drained account, credit the wallet, record one balanced transaction
//  5. Mark the summed buckets as transferred
//
// All steps run in one transaction; any failure leaves balances and buckets untouched.
func (s *TransferService) TransferProfit(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if input.InvestmentID == uuid.Nil || input.WalletAccountID == uuid.Nil {
		metrics.TransfersTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: investment and wallet IDs are required", domain.ErrInvalidInput)
	}

	log := s.Log.With("investment_id", input.InvestmentID, "wallet_account_id", input.WalletAccountID)
	reference := eligibility.EndOfPreviousMonth(s.Clock.Now())
	aggregator := eligibility.NewAggregator(s.BucketRepo)

	var result *TransferResult
	var currency string

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.InvestmentRepo.GetByID(ctx, input.InvestmentID)
		if err != nil {
			return err
		}
		currency = inv.Currency

		wallet, err := s.AccountRepo.GetByID(ctx, input.WalletAccountID)
		if err != nil {
			return err
		}
		if wallet.IsFundingSource {
			return fmt.Errorf("%w: wallet account cannot be a funding source", domain.ErrInvalidInput)
		}

		eligible, err := aggregator.Eligible(ctx, inv.ID, reference)
		if err != nil {
			return err
		}
		if !eligible.Total.IsPositive() {
			return domain.ErrNothingToTransfer
		}

		sources, err := s.AccountRepo.LockFundingSources(ctx, inv.Currency)
		if err != nil {
			return fmt.Errorf("failed to lock funding accounts: %w", err)
		}

		distribution, err := allocator.Distribute(eligible.Total, sources)
		if err != nil {
			return err
		}

		txID := uuid.New()
		entries := make([]domain.TransactionEntry, 0, len(distribution.Transfers)+1)

		// Funding side: one CREDIT per drained account
		for _, tr := range distribution.Transfers {
			if err := s.AccountRepo.Debit(ctx, tr.AccountID, tr.Amount); err != nil {
				return fmt.Errorf("failed to debit funding account %s: %w", tr.AccountID, err)
			}
			entries = append(entries, domain.TransactionEntry{
				ID:            uuid.New(),
				TransactionID: txID,
				AccountID:     tr.AccountID,
				Amount:        tr.Amount,
				Type:          domain.EntryTypeCredit,
			})
		}

		// Wallet side: a single DEBIT for the whole payout
		if err := s.AccountRepo.Credit(ctx, wallet.ID, distribution.Disbursed); err != nil {
			return fmt.Errorf("failed to credit wallet: %w", err)
		}
		entries = append(entries, domain.TransactionEntry{
			ID:            uuid.New(),
			TransactionID: txID,
			AccountID:     wallet.ID,
			Amount:        distribution.Disbursed,
			Type:          domain.EntryTypeDebit,
		})

		investmentID := inv.ID
		tx := &domain.Transaction{
			ID:           txID,
			Description:  fmt.Sprintf("Mining profit payout through %s", reference.Format("2006-01")),
			Date:         s.Clock.Now().UTC(),
			InvestmentID: &investmentID,
			Entries:      entries,
		}
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvariantViolation, err)
		}
		if err := s.TransactionRepo.Create(ctx, tx); err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}

		if err := s.BucketRepo.ConsumeMonths(ctx, eligible.BucketIDs); err != nil {
			return fmt.Errorf("failed to consume monthly buckets: %w", err)
		}

		result = &TransferResult{
			Transaction: tx,
			Amount:      distribution.Disbursed,
			Reference:   reference,
			BucketIDs:   eligible.BucketIDs,
			Transfers:   distribution.Transfers,
		}
		return nil
	})
	if err != nil {
		metrics.TransfersTotal.WithLabelValues(outcome(err)).Inc()
		log.Warn("profit transfer failed", "reference", reference, "error", err)
		return nil, err
	}

	metrics.TransfersTotal.WithLabelValues("ok").Inc()
	metrics.TransferredAmount.WithLabelValues(currency).Add(result.Amount.InexactFloat64())
	log.Info("profit transferred",
		"transaction_id", result.Transaction.ID,
		"amount", result.Amount.String(),
		"buckets", len(result.BucketIDs),
		"funding_accounts", len(result.Transfers),
	)

	if s.Notifier != nil {
		event := TransferCompleted{
			TransactionID:   result.Transaction.ID,
			InvestmentID:    input.InvestmentID,
			WalletAccountID: input.WalletAccountID,
			Currency:        currency,
			Amount:          result.Amount,
			BucketIDs:       result.BucketIDs,
			Transfers:       result.Transfers,
			Reference:       reference,
			CompletedAt:     s.Clock.Now().UTC(),
		}
		// The payout is committed; a lost notification is only logged
		if err := s.Notifier.TransferCompleted(ctx, event); err != nil {
			log.Warn("transfer notification failed", "transaction_id", result.Transaction.ID, "error", err)
		}
	}

	return result, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrNothingToTransfer):
		return "nothing_to_transfer"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvestmentNotFound),
		errors.Is(err, domain.ErrAccountNotFound):
		return "invalid"
	default:
		return "error"
	}
}
