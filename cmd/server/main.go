package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/config"
	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/db"
	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/events"
	grpcserver "github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/grpc"
	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/jobs"
	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/memstore"
	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/ops"
	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/security"
)

const shutdownTimeout = 10 * time.Second

// repositories is the storage backend the services run on.
type repositories struct {
	users     domain.UserDirectory
	accounts  domain.SavingsAccountRepository
	loans     domain.LoanRepository
	cards     domain.CreditCardRepository
	txManager domain.TransactionManager
	pinger    ops.Pinger
	close     func()
}

func main() {
	log := logrus.New()
	cfg := config.Load(log)
	log.SetLevel(cfg.Log.Level)
	log.SetFormatter(cfg.Log.Formatter())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize storage")
	}
	defer repos.close()

	// Events go to RabbitMQ when configured, to the log otherwise
	var (
		publisher domain.EventPublisher
		notifier  domain.Notifier
	)
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.WithError(err).Fatal("failed to create rabbitmq publisher")
		}
		defer rabbit.Close()
		publisher, notifier = rabbit, rabbit
	} else {
		fallback := events.NewLogNotifier(log)
		publisher, notifier = fallback, fallback
		log.Info("RABBITMQ_URL not set, events are logged only")
	}

	clock := security.SystemClock{}
	numbers := security.RandomDigits{}

	loanService := domain.NewLoanService(domain.LoanServiceDeps{
		Users:     repos.users,
		Accounts:  repos.accounts,
		Loans:     repos.loans,
		TxManager: repos.txManager,
		Clock:     clock,
		Numbers:   numbers,
		Events:    publisher,
		Logger:    log,
	})
	cardService := domain.NewCardService(domain.CardServiceDeps{
		Users:     repos.users,
		Cards:     repos.cards,
		TxManager: repos.txManager,
		Clock:     clock,
		Numbers:   numbers,
		Hasher:    security.SHA256Hasher{},
		Notifier:  notifier,
		Logger:    log,
	})
	savingsService := domain.NewSavingsService(domain.SavingsServiceDeps{
		Users:     repos.users,
		Accounts:  repos.accounts,
		TxManager: repos.txManager,
		Clock:     clock,
		Numbers:   numbers,
		Logger:    log,
	})
	log.Info("domain services initialized")

	grpcSrv, healthSrv := grpcserver.NewServer(
		grpcserver.NewLendingServer(loanService, cardService, savingsService, log), log)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.WithError(err).Fatalf("failed to listen on port %s", cfg.GRPCPort)
	}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           ops.NewRouter(repos.pinger, loanService, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		log.WithField("port", cfg.GRPCPort).Info("lending-service gRPC server starting")
		if err := grpcSrv.Serve(lis); err != nil {
			log.WithError(err).Error("gRPC server failed")
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		log.WithField("port", cfg.HTTPPort).Info("ops HTTP server starting")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("ops HTTP server failed")
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		jobs.NewOverdueJob(loanService, cfg.Jobs.OverdueSweepInterval, log).Run(ctx)
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	healthSrv.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("ops HTTP server shutdown")
	}
	grpcSrv.GracefulStop()
	wg.Wait()
	log.Info("lending-service stopped")
}

// openStorage connects the configured backend. Postgres is migrated on start.
func openStorage(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*repositories, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		store := memstore.New()
		return &repositories{
			users:     store.Users(),
			accounts:  store.Accounts(),
			loans:     store.Loans(),
			cards:     store.Cards(),
			txManager: store,
			pinger:    ops.PingerFunc(func(context.Context) error { return nil }),
			close:     func() {},
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("database connection pool initialized")

	return &repositories{
		users:     db.NewUserRepository(pool.Pool),
		accounts:  db.NewAccountRepository(pool.Pool),
		loans:     db.NewLoanRepository(pool.Pool),
		cards:     db.NewCardRepository(pool.Pool),
		txManager: db.NewTransactionManager(pool.Pool, log),
		pinger:    pool,
		close:     pool.Close,
	}, nil
}
