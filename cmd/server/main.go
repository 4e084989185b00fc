package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcadapter "github.com/simaogato/minefund-backend/internal/adapter/grpc"
	"github.com/simaogato/minefund-backend/internal/adapter/notify"
	"github.com/simaogato/minefund-backend/internal/adapter/repository/memory"
	"github.com/simaogato/minefund-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/minefund-backend/internal/config"
	"github.com/simaogato/minefund-backend/internal/domain"
	"github.com/simaogato/minefund-backend/internal/logger"
	"github.com/simaogato/minefund-backend/internal/metrics"
	"github.com/simaogato/minefund-backend/internal/usecase/eligibility"
	"github.com/simaogato/minefund-backend/internal/usecase/investment"
	"github.com/simaogato/minefund-backend/internal/usecase/mining"
	"github.com/simaogato/minefund-backend/internal/usecase/partition"
	"github.com/simaogato/minefund-backend/internal/usecase/seeder"
	"github.com/simaogato/minefund-backend/internal/usecase/transfer"
)

// Set with -ldflags at build time
var (
	version = "dev"
	commit  = "none"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// stores bundles the repositories of one storage backend
type stores struct {
	investments  domain.InvestmentRepository
	buckets      domain.ProfitBucketRepository
	accounts     domain.AccountRepository
	transactions domain.TransactionRepository
	tx           domain.TxManager
	ping         func(ctx context.Context) error
	close        func() error
}

func run() error {
	cfg, err := config.Load(os.Args[1:], ".env")
	if err != nil {
		return err
	}

	log := logger.New(cfg.Verbose)
	metrics.BuildInfo.WithLabelValues(version, commit).Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 1. Setup storage
	st, err := openStores(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// 2. Create configured accounts
	if cfg.AccountsFile != "" {
		if err := seedAccounts(ctx, log, cfg.AccountsFile, st.accounts); err != nil {
			return err
		}
	}

	// 3. Setup the transfer notifier
	var notifier transfer.Notifier = notify.LogNotifier{Log: log}
	if cfg.NATSURL != "" {
		natsNotifier, err := notify.Connect(cfg.NATSURL, cfg.NATSSubject, log)
		if err != nil {
			return err
		}
		defer natsNotifier.Close()
		if cfg.NATSStream != "" {
			if err := natsNotifier.EnableJetStream(ctx, cfg.NATSStream); err != nil {
				return err
			}
		}
		notifier = natsNotifier
		log.Info("publishing transfer events", "url", cfg.NATSURL, "subject", cfg.NATSSubject, "stream", cfg.NATSStream)
	}

	// 4. Initialize Services (Use Cases)
	clock := clockwork.NewRealClock()
	bucketSeeder := seeder.NewBucketSeeder(st.buckets, st.tx)
	generator := mining.NewGenerator(partition.New(nil))
	miningService := mining.NewMiningService(st.investments, st.buckets, bucketSeeder, generator, log)
	transferService := transfer.NewTransferService(
		st.investments, st.buckets, st.accounts, st.transactions, st.tx, notifier, clock, log,
	)
	investmentService := investment.NewInvestmentService(st.investments, clock)
	aggregator := eligibility.NewAggregator(st.buckets)

	// 5. Setup gRPC server
	interceptors := []grpclib.UnaryServerInterceptor{
		grpcadapter.ObservabilityInterceptor(log),
		grpcadapter.AuthInterceptor(cfg.APIToken),
	}
	if cfg.TransferRateLimit > 0 {
		limiter := rate.NewLimiter(rate.Limit(cfg.TransferRateLimit), cfg.TransferBurst)
		interceptors = append(interceptors, grpcadapter.RateLimitInterceptor(limiter, "TransferProfit"))
	}
	grpcServer := grpclib.NewServer(grpclib.ChainUnaryInterceptor(interceptors...))

	grpcadapter.RegisterMiningServiceServer(grpcServer, grpcadapter.NewServer(
		investmentService, miningService, transferService, aggregator, st.buckets, clock,
	))
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("gRPC server listening", "addr", cfg.GRPCAddr, "store", cfg.Store, "version", version)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpclib.ErrServerStopped) {
			return fmt.Errorf("failed to serve gRPC server: %w", err)
		}
		return nil
	})

	// 6. Metrics and health
	var httpServer *http.Server
	if cfg.MetricsAddr != "" {
		httpServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newHTTPRouter(st.ping),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("metrics server listening", "addr", cfg.MetricsAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve metrics: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("metrics server shutdown", "error", err)
			}
		}

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		log.Info("gRPC server stopped")
		return nil
	})

	return g.Wait()
}

func openStores(ctx context.Context, log *slog.Logger, cfg *config.Config) (*stores, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on exit")
		store := memory.NewStore()
		return &stores{
			investments:  store.Investments(),
			buckets:      store.Buckets(),
			accounts:     store.Accounts(),
			transactions: store.Transactions(),
			tx:           store,
			ping:         func(context.Context) error { return nil },
			close:        func() error { return nil },
		}, nil
	}

	if cfg.RunMigrations {
		if err := postgres.MigrateUp(log, cfg.DBConnStr); err != nil {
			return nil, err
		}
	}

	db, err := connectWithRetry(ctx, log, cfg.DBConnStr)
	if err != nil {
		return nil, err
	}

	return &stores{
		investments:  postgres.NewInvestmentRepository(db),
		buckets:      postgres.NewBucketRepository(db),
		accounts:     postgres.NewAccountRepository(db),
		transactions: postgres.NewTransactionRepository(db),
		tx:           db,
		ping:         db.PingContext,
		close:        db.Close,
	}, nil
}

// connectWithRetry waits for Postgres to come up
func connectWithRetry(ctx context.Context, log *slog.Logger, connStr string) (*postgres.DB, error) {
	const attempts = 10

	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := postgres.NewDB(connStr)
		if err == nil {
			return db, nil
		}
		lastErr = err
		log.Warn("database not ready", "attempt", i, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil, fmt.Errorf("failed to connect to database: %w", lastErr)
}

func seedAccounts(ctx context.Context, log *slog.Logger, path string, repo domain.AccountRepository) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open accounts file: %w", err)
	}
	defer f.Close()

	accounts, err := seeder.LoadAccounts(f)
	if err != nil {
		return err
	}
	created, err := seeder.NewAccountSeeder(repo).Seed(ctx, accounts)
	if err != nil {
		return fmt.Errorf("failed to seed accounts: %w", err)
	}
	log.Info("accounts seeded", "file", path, "configured", len(accounts), "created", created)
	return nil
}

func newHTTPRouter(ping func(ctx context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return r
}
