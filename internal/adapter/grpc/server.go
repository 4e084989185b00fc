package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/minefund-backend/internal/domain"
	"github.com/simaogato/minefund-backend/internal/usecase/eligibility"
	"github.com/simaogato/minefund-backend/internal/usecase/investment"
	"github.com/simaogato/minefund-backend/internal/usecase/mining"
	"github.com/simaogato/minefund-backend/internal/usecase/transfer"
)

// farFuture bounds ListMonthlyBuckets so every month is returned
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// Server implements the MiningService gRPC server
type Server struct {
	InvestmentService *investment.InvestmentService
	MiningService     *mining.MiningService
	TransferService   *transfer.TransferService
	Eligibility       *eligibility.Aggregator
	BucketRepo        domain.ProfitBucketRepository
	Clock             clockwork.Clock
}

// NewServer creates a new gRPC server instance
func NewServer(
	investmentService *investment.InvestmentService,
	miningService *mining.MiningService,
	transferService *transfer.TransferService,
	aggregator *eligibility.Aggregator,
	bucketRepo domain.ProfitBucketRepository,
	clock clockwork.Clock,
) *Server {
	return &Server{
		InvestmentService: investmentService,
		MiningService:     miningService,
		TransferService:   transferService,
		Eligibility:       aggregator,
		BucketRepo:        bucketRepo,
		Clock:             clock,
	}
}

// CreateInvestment handles the CreateInvestment RPC
// Request: deposit, duration_months, currency, optional start_time (RFC3339),
// units [{rate, fraction}] or production_rate and variation_factor, optional start_mining
func (s *Server) CreateInvestment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	deposit, err := decimalField(req, "deposit")
	if err != nil {
		return nil, err
	}

	input := investment.CreateInvestmentInput{
		Deposit:        deposit,
		DurationMonths: int(req.GetFields()["duration_months"].GetNumberValue()),
		Currency:       stringField(req, "currency"),
	}

	if raw := stringField(req, "start_time"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid start_time format: %v", err)
		}
		input.StartTime = start
	}

	for i, v := range req.GetFields()["units"].GetListValue().GetValues() {
		unit := v.GetStructValue()
		r, err := decimalField(unit, "rate")
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "units[%d]: %v", i, status.Convert(err).Message())
		}
		f, err := decimalField(unit, "fraction")
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "units[%d]: %v", i, status.Convert(err).Message())
		}
		input.Units = append(input.Units, domain.MiningUnit{Rate: r, Fraction: f})
	}
	if len(input.Units) == 0 {
		if input.ProductionRate, err = optionalDecimalField(req, "production_rate"); err != nil {
			return nil, err
		}
		if input.VariationFactor, err = optionalDecimalField(req, "variation_factor"); err != nil {
			return nil, err
		}
	}

	inv, err := s.InvestmentService.CreateInvestment(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}

	resp := map[string]any{
		"investment_id":    inv.ID.String(),
		"start_time":       inv.StartTime.Format(time.RFC3339),
		"currency":         inv.Currency,
		"production_rate":  inv.ProductionRate.String(),
		"variation_factor": inv.VariationFactor.String(),
	}
	if req.GetFields()["start_mining"].GetBoolValue() {
		resp["seed_report"] = reportFields(s.MiningService.StartMining(ctx, inv.ID))
	}

	return newStruct(resp)
}

// StartMining handles the StartMining RPC
// Seeding never fails the call; the report says what was written and skipped
func (s *Server) StartMining(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	investmentID, err := uuidField(req, "investment_id")
	if err != nil {
		return nil, err
	}

	report := s.MiningService.StartMining(ctx, investmentID)
	return newStruct(reportFields(report))
}

// GetEligibility handles the GetEligibility RPC
// reference defaults to the end of the previous calendar month
func (s *Server) GetEligibility(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	investmentID, err := uuidField(req, "investment_id")
	if err != nil {
		return nil, err
	}

	reference := eligibility.EndOfPreviousMonth(s.Clock.Now())
	if raw := stringField(req, "reference"); raw != "" {
		reference, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid reference format: %v", err)
		}
	}

	result, err := s.Eligibility.Eligible(ctx, investmentID, reference)
	if err != nil {
		return nil, mapError(err)
	}

	return newStruct(map[string]any{
		"total":      result.Total.String(),
		"bucket_ids": uuidList(result.BucketIDs),
		"reference":  reference.Format(time.RFC3339Nano),
	})
}

// TransferProfit handles the TransferProfit RPC
func (s *Server) TransferProfit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	investmentID, err := uuidField(req, "investment_id")
	if err != nil {
		return nil, err
	}
	walletID, err := uuidField(req, "wallet_account_id")
	if err != nil {
		return nil, err
	}

	result, err := s.TransferService.TransferProfit(ctx, transfer.TransferInput{
		InvestmentID:    investmentID,
		WalletAccountID: walletID,
	})
	if err != nil {
		return nil, mapError(err)
	}

	transfers := make([]any, 0, len(result.Transfers))
	for _, tr := range result.Transfers {
		transfers = append(transfers, map[string]any{
			"account_id": tr.AccountID.String(),
			"amount":     tr.Amount.String(),
		})
	}

	return newStruct(map[string]any{
		"transaction_id": result.Transaction.ID.String(),
		"amount":         result.Amount.String(),
		"reference":      result.Reference.Format(time.RFC3339Nano),
		"bucket_ids":     uuidList(result.BucketIDs),
		"transfers":      transfers,
		"created_at":     result.Transaction.Date.Format(time.RFC3339),
	})
}

// ListMonthlyBuckets handles the ListMonthlyBuckets RPC
func (s *Server) ListMonthlyBuckets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	investmentID, err := uuidField(req, "investment_id")
	if err != nil {
		return nil, err
	}

	months, err := s.BucketRepo.ListMonths(ctx, investmentID, farFuture)
	if err != nil {
		return nil, mapError(err)
	}

	buckets := make([]any, 0, len(months))
	for _, m := range months {
		state := "UNKNOWN"
		if st, err := m.State(); err == nil {
			state = st.String()
		}
		buckets = append(buckets, map[string]any{
			"id":           m.ID.String(),
			"month_index":  m.MonthIndex,
			"period_start": m.Period.Start.Format(time.RFC3339),
			"period_end":   m.Period.End.Format(time.RFC3339),
			"currency":     m.Currency,
			"amount":       m.Amount.String(),
			"state":        state,
		})
	}

	return newStruct(map[string]any{"buckets": buckets})
}

func reportFields(r mining.SeedReport) map[string]any {
	return map[string]any{
		"investment_id":  r.InvestmentID.String(),
		"months_created": r.MonthsCreated,
		"months_skipped": r.MonthsSkipped,
		"months_failed":  r.MonthsFailed,
		"days_created":   r.DaysCreated,
		"days_skipped":   r.DaysSkipped,
		"days_failed":    r.DaysFailed,
		"hours_inserted": r.HoursInserted,
		"hours_skipped":  r.HoursSkipped,
	}
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func uuidField(req *structpb.Struct, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(stringField(req, key))
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", key, err)
	}
	return id, nil
}

// decimalField accepts amounts as strings (preferred) or JSON numbers
func decimalField(req *structpb.Struct, key string) (decimal.Decimal, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "missing %s", key)
	}
	if _, isNumber := v.GetKind().(*structpb.Value_NumberValue); isNumber {
		return decimal.NewFromFloat(v.GetNumberValue()), nil
	}
	d, err := decimal.NewFromString(v.GetStringValue())
	if err != nil {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", key, err)
	}
	return d, nil
}

func optionalDecimalField(req *structpb.Struct, key string) (decimal.Decimal, error) {
	if _, ok := req.GetFields()[key]; !ok {
		return decimal.Zero, nil
	}
	return decimalField(req, key)
}

func uuidList(ids []uuid.UUID) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Errorf(codes.InvalidArgument, "%s", err)
	case errors.Is(err, domain.ErrInvestmentNotFound), errors.Is(err, domain.ErrAccountNotFound):
		return status.Errorf(codes.NotFound, "%s", err)
	case errors.Is(err, domain.ErrNothingToTransfer),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrBucketNotAvailable):
		return status.Errorf(codes.FailedPrecondition, "%s", err)
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return status.Errorf(codes.Aborted, "%s", err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s", err)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s", err)
	}

	// Default to Internal error for unknown errors
	return status.Errorf(codes.Internal, "%s", err)
}
