package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cousinade/cousinade-engine/pkg/cache"
	"github.com/cousinade/cousinade-engine/pkg/calendar"
	"github.com/cousinade/cousinade-engine/pkg/config"
	"github.com/cousinade/cousinade-engine/pkg/database"
	"github.com/cousinade/cousinade-engine/pkg/handlers"
	"github.com/cousinade/cousinade-engine/pkg/logging"
	"github.com/cousinade/cousinade-engine/pkg/metrics"
	"github.com/cousinade/cousinade-engine/pkg/middleware"
	"github.com/cousinade/cousinade-engine/pkg/repositories"
	"github.com/cousinade/cousinade-engine/pkg/retry"
	"github.com/cousinade/cousinade-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.Bool("redis", cfg.Redis.Enabled()),
		zap.Bool("metrics", cfg.Metrics.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn := cfg.Database.ConnectionString()
	startup := retry.StartupConfig()
	startup.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("Dependency not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("error", logging.SanitizeError(err)))
	}

	db, err := retry.DoWithResult(ctx, startup, func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:              dsn,
			MaxConnections:   cfg.Database.MaxConnections,
			ApplicationName:  "cousinade-engine",
			StatementTimeout: time.Duration(cfg.Database.StatementTimeoutSeconds) * time.Second,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %s", logging.SanitizeError(err))
	}
	defer db.Close()

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %s", logging.SanitizeError(err))
	}
	if err := database.RunMigrations(sqlDB, logger.Named("migrations")); err != nil {
		return err
	}

	redisClient, err := retry.DoWithResult(ctx, startup, func() (*redis.Client, error) {
		return database.NewRedisClient(ctx, &cfg.Redis)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %s", logging.SanitizeError(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	totalsCache := cache.NewTotalsCache(redisClient, time.Duration(cfg.Redis.TotalsTTLSeconds)*time.Second)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Repositories
	personRepo := repositories.NewPersonRepository()
	coupleRepo := repositories.NewCoupleRepository()
	parentChildRepo := repositories.NewParentChildRepository()
	eventRepo := repositories.NewEventRepository()
	attendanceRepo := repositories.NewAttendanceRepository()

	// Services
	inTx := services.NewTxFunc(db)
	personSvc := services.NewPersonService(personRepo, coupleRepo, parentChildRepo, inTx, logger)
	relationshipSvc := services.NewRelationshipService(coupleRepo, parentChildRepo, logger)
	householdSvc := services.NewHouseholdService(personRepo, coupleRepo, parentChildRepo, logger)
	editSvc := services.NewHouseholdEditService(personSvc, relationshipSvc, inTx, m, logger)
	calendarSvc := services.NewCalendarService(eventRepo, inTx, logger)
	attendanceSvc := services.NewAttendanceService(attendanceRepo, personRepo, householdSvc, calendarSvc, totalsCache, inTx, m, logger)
	importSvc := services.NewImportService(personRepo, personSvc, relationshipSvc, inTx, m, logger)
	outreachSvc := services.NewOutreachService(personRepo, logger)

	if cfg.Calendar.SeedOnStart {
		if err := seedCalendar(ctx, db, calendarSvc, cfg.Calendar.SeedFile); err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	scope := handlers.ScopeMiddleware(database.WithScopeMiddleware(db, logger))

	checks := map[string]handlers.ReadinessCheck{"postgres": db.Ping}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	handlers.NewHealthHandler(cfg, checks, logger).RegisterRoutes(mux)
	handlers.NewPersonHandler(personSvc, householdSvc, editSvc, logger).RegisterRoutes(mux, scope)
	handlers.NewAttendanceHandler(attendanceSvc, calendarSvc, logger).RegisterRoutes(mux, scope)
	handlers.NewRegistryHandler(importSvc, outreachSvc, logger).RegisterRoutes(mux, scope)
	if m != nil {
		mux.Handle("GET "+cfg.Metrics.Path, m.Handler())
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger.Named("http"))(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting cousinade-engine", zap.String("addr", server.Addr), zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// seedCalendar writes the fixed event calendar unless slots already exist.
func seedCalendar(ctx context.Context, db *database.DB, calendarSvc services.CalendarService, seedFile string) error {
	var (
		seed *calendar.Seed
		err  error
	)
	if seedFile != "" {
		seed, err = calendar.Load(seedFile)
	} else {
		seed, err = calendar.Default()
	}
	if err != nil {
		return fmt.Errorf("failed to load calendar seed: %w", err)
	}

	scoped, release, err := db.WithScope(ctx)
	if err != nil {
		return err
	}
	defer release()

	if _, err := calendarSvc.EnsureSeed(scoped, seed); err != nil {
		return err
	}
	return nil
}
