package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/segyhp/microcredit-engine/internal/allocation"
	"github.com/segyhp/microcredit-engine/internal/config"
	"github.com/segyhp/microcredit-engine/internal/handler"
	"github.com/segyhp/microcredit-engine/internal/repository"
	"github.com/segyhp/microcredit-engine/internal/service"
	"github.com/segyhp/microcredit-engine/pkg/logger"
	"github.com/segyhp/microcredit-engine/pkg/response"
)

func main() {
	boot := zap.NewExample()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal("failed to load configuration", zap.Error(err))
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		boot.Fatal("failed to build logger", zap.Error(err))
	}
	if cfg.IsDevelopment() {
		log = log.WithOptions(zap.Development())
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		log.Fatal("failed to initialize database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis, or fall back to in-process locking and caching
	var (
		redisClient redis.UniversalClient
		locker      repository.Locker
		cache       repository.ScheduleCache
	)
	if cfg.Redis.Enabled {
		client := initRedis(cfg)
		defer client.Close()
		redisClient = client
		locker = repository.NewRedisLocker(client, cfg.Business.LockTTL, cfg.Business.LockTimeout)
		cache = repository.NewRedisScheduleCache(client, cfg.Business.ScheduleCacheTTL)
	} else {
		log.Warn("redis disabled; loan locks only hold within this process")
		locker = repository.NewMemoryLocker(cfg.Business.LockTimeout)
		cache = repository.NewMemoryScheduleCache()
	}

	excess, err := allocation.ParseExcessPolicy(cfg.Business.ExcessPaymentPolicy)
	if err != nil {
		log.Fatal("invalid excess payment policy", zap.Error(err))
	}

	// Initialize repositories
	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	configRepo := repository.NewConfigurationRepository(db)
	tx := repository.NewTransactor(db)

	// Initialize services
	allocator := allocation.New(excess, log.Named("allocation"))
	log.Info("payment allocation configured", zap.String("excess_policy", string(allocator.ExcessPolicy())))
	loanService := service.NewLoanService(loanRepo, paymentRepo, configRepo, tx, locker, cache, log.Named("loans"))
	paymentService := service.NewPaymentService(loanRepo, paymentRepo, tx, locker, cache, allocator, log.Named("payments"))
	configService := service.NewConfigurationService(configRepo, log.Named("configurations"))
	reportService := service.NewReportService(loanRepo, log.Named("reports"))

	router := setupRoutes(
		log,
		handler.NewLoanHandler(loanService, paymentService),
		handler.NewConfigurationHandler(configService),
		handler.NewReportHandler(reportService, cfg.Scheduler.ReminderWindowDays),
		handler.NewHealthHandler(db, redisClient, cfg.Health.Timeout),
	)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Server.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver == repository.DriverPostgres {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(
	log *zap.Logger,
	loanHandler *handler.LoanHandler,
	configHandler *handler.ConfigurationHandler,
	reportHandler *handler.ReportHandler,
	healthHandler *handler.HealthHandler,
) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(log.Named("http")))
	router.Use(response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/configurations", configHandler.Create).Methods("POST")
	api.HandleFunc("/configurations", configHandler.List).Methods("GET")
	api.HandleFunc("/configurations/{id}", configHandler.Get).Methods("GET")
	api.HandleFunc("/configurations/{id}", configHandler.Update).Methods("PUT")

	api.HandleFunc("/loans", loanHandler.CreateLoan).Methods("POST")
	api.HandleFunc("/loans", loanHandler.ListLoans).Methods("GET")
	api.HandleFunc("/loans/{loanId}", loanHandler.GetLoan).Methods("GET")
	api.HandleFunc("/loans/{loanId}/terms", loanHandler.UpdateTerms).Methods("PUT")
	api.HandleFunc("/loans/{loanId}/schedule", loanHandler.GetSchedule).Methods("GET")
	api.HandleFunc("/loans/{loanId}/summary", loanHandler.GetSummary).Methods("GET")
	api.HandleFunc("/loans/{loanId}/payments", loanHandler.MakePayment).Methods("POST")
	api.HandleFunc("/loans/{loanId}/payments", loanHandler.ListPayments).Methods("GET")
	api.HandleFunc("/loans/{loanId}/approval", loanHandler.RespondApproval).Methods("POST")
	api.HandleFunc("/loans/{loanId}/activate", loanHandler.Activate).Methods("POST")
	api.HandleFunc("/loans/{loanId}/state", loanHandler.OverrideState).Methods("PUT")

	api.HandleFunc("/reports/overdue", reportHandler.Overdue).Methods("GET")
	api.HandleFunc("/reports/upcoming", reportHandler.Upcoming).Methods("GET")

	return router
}
