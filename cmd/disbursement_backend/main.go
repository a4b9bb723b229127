package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/SscSPs/disbursement_backoffice/internal/adapters/apiclient"
	"github.com/SscSPs/disbursement_backoffice/internal/adapters/billing"
	"github.com/SscSPs/disbursement_backoffice/internal/adapters/gcs"
	"github.com/SscSPs/disbursement_backoffice/internal/adapters/productconfig"
	"github.com/SscSPs/disbursement_backoffice/internal/adapters/pubsub"
	"github.com/SscSPs/disbursement_backoffice/internal/adapters/sftp"
	"github.com/SscSPs/disbursement_backoffice/internal/adapters/vpayapi"
	portsrepo "github.com/SscSPs/disbursement_backoffice/internal/core/ports/repositories"
	"github.com/SscSPs/disbursement_backoffice/internal/core/services"
	"github.com/SscSPs/disbursement_backoffice/internal/handlers"
	"github.com/SscSPs/disbursement_backoffice/internal/middleware"
	"github.com/SscSPs/disbursement_backoffice/internal/observability/metrics"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/config"
	"github.com/SscSPs/disbursement_backoffice/internal/repositories/database/pgsql"
	"github.com/SscSPs/disbursement_backoffice/internal/repositories/memory"
	"github.com/SscSPs/disbursement_backoffice/internal/scheduler"
	"github.com/SscSPs/disbursement_backoffice/pkg/database"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.New()

	repos, closeRepos, err := setupRepositories(ctx, cfg, clk, logger)
	if err != nil {
		logger.Error("Failed to initialize repositories", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeRepos()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("Failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer rdb.Close()
		logger.Info("Redis connection established.")
	}

	collab, closeCollab, err := setupCollaborators(ctx, cfg, rdb, logger)
	if err != nil {
		logger.Error("Failed to initialize collaborators", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeCollab()

	serviceContainer := services.NewServiceContainer(cfg, repos, collab.Collaborators, clk)

	var wg sync.WaitGroup

	// --- Background workers ---
	if collab.Dialer != nil && collab.Products != nil {
		var locker scheduler.Locker
		if rdb != nil {
			locker = scheduler.NewRedisLocker(rdb)
		}
		sched, err := scheduler.New(scheduler.Params{
			Products:       serviceContainer.Products,
			Release:        serviceContainer.Release,
			Reconciliation: serviceContainer.Reconciliation,
			Locker:         locker,
			Metrics:        metrics.NewSchedulerMetrics(prometheus.DefaultRegisterer),
			Clock:          clk,
			Logger:         logger,
			Config: scheduler.Config{
				RunInterval:        cfg.SchedulerInterval,
				JobTimeout:         cfg.SchedulerJobTimeout,
				SelfHealUnreleased: cfg.SelfHealUnreleased,
				EnabledJobs:        cfg.EnabledJobs,
			},
		})
		if err != nil {
			logger.Error("Failed to create scheduler", slog.String("error", err.Error()))
			os.Exit(1)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.RunForever(ctx)
		}()
		logger.Info("Scheduler started", slog.Duration("interval", cfg.SchedulerInterval))
	} else {
		logger.Warn("SFTP or product API not configured, batch release and reconciliation are disabled")
	}

	if collab.actionSub != nil {
		subscriber := pubsub.NewActionSubscriber(collab.actionSub, serviceContainer.Disbursement, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := subscriber.Run(ctx); err != nil {
				logger.Error("Action subscriber stopped", slog.String("error", err.Error()))
			}
		}()
		logger.Info("Action subscriber started", slog.String("subscription", cfg.PubSubActionSubscription))
	}

	// --- HTTP server ---
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if cfg.RateLimit != "" {
		limiterInstance, err := middleware.NewLimiter(cfg.RateLimit)
		if err != nil {
			logger.Error("Invalid RATE_LIMIT", slog.String("error", err.Error()))
			os.Exit(1)
		}
		r.Use(middleware.RateLimit(limiterInstance))
	}

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, cfg, serviceContainer, prometheus.DefaultGatherer)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to run", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", slog.String("error", err.Error()))
	}
	wg.Wait()
}

// setupRepositories opens PostgreSQL and applies migrations, or falls back to
// the in-memory store when no database URL is configured.
func setupRepositories(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) (portsrepo.RepositoryProvider, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("Using in-memory store; data is lost on restart")
		return memory.NewRepositoryProvider(memory.NewStore(clk)), func() {}, nil
	}

	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, database.PoolOptions{})
	if err != nil {
		return portsrepo.RepositoryProvider{}, nil, err
	}
	logger.Info("Database connection pool established.")

	if err := runMigrations(cfg.DatabaseURL, logger); err != nil {
		dbPool.Close()
		return portsrepo.RepositoryProvider{}, nil, err
	}
	return pgsql.NewRepositoryProvider(dbPool, clk), dbPool.Close, nil
}

func runMigrations(databaseURL string, logger *slog.Logger) error {
	logger.Info("Running database migrations...")
	// Using pgx/v5/stdlib driver to be compatible with the main pool
	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}

type collaborators struct {
	services.Collaborators
	actionSub *gcpubsub.Subscription
}

// setupCollaborators builds the partner API, cloud and SFTP clients. Anything
// left unconfigured stays nil and the dependent feature is disabled.
func setupCollaborators(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (collaborators, func(), error) {
	var out collaborators
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.ProductAPIURL != "" {
		var cache redis.Cmdable
		if rdb != nil {
			cache = rdb
		}
		out.Products = productconfig.NewLookup(apiclient.New(ctx, apiclient.Config{
			BaseURL:   cfg.ProductAPIURL,
			MaxTries:  cfg.APIRetryMaxTries,
			RetryWait: cfg.APIRetryWait,
		}), cache, cfg.ProductCacheTTL)
	}
	if cfg.BillingAPIURL != "" {
		out.Billing = billing.NewLookup(apiclient.New(ctx, apiclient.Config{
			BaseURL:   cfg.BillingAPIURL,
			MaxTries:  cfg.APIRetryMaxTries,
			RetryWait: cfg.APIRetryWait,
		}))
	}
	if cfg.VPayAPIURL != "" {
		out.Documents = vpayapi.NewDocumentAPI(apiclient.New(ctx, apiclient.Config{
			BaseURL:      cfg.VPayAPIURL,
			ClientID:     cfg.VPayClientID,
			ClientSecret: cfg.VPayClientSecret,
			TokenURL:     cfg.VPayTokenURL,
			MaxTries:     cfg.APIRetryMaxTries,
			RetryWait:    cfg.APIRetryWait,
		}))
	}

	if cfg.GCSBucket != "" {
		storageClient, err := gcs.NewClient(ctx, cfg.GCPCredentialsJSON)
		if err != nil {
			return out, nil, err
		}
		closers = append(closers, func() { storageClient.Close() })
		out.Storage = gcs.NewBlobStorage(storageClient, cfg.GCSBucket)
	}

	if cfg.GCPProjectID != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.GCPProjectID, cfg.GCPCredentialsJSON)
		if err != nil {
			closeAll()
			return out, nil, err
		}
		closers = append(closers, func() { psClient.Close() })
		bus := pubsub.NewEventBus(psClient.Topic(cfg.PubSubEventTopic), psClient.Topic(cfg.PubSubActivityTopic), cfg.EventSource)
		closers = append(closers, bus.Stop)
		out.Events = bus
		out.Activity = bus
		if cfg.PubSubActionSubscription != "" {
			out.actionSub = psClient.Subscription(cfg.PubSubActionSubscription)
		}
	} else {
		logger.Warn("GCP_PROJECT_ID not set, service events and activity log are disabled")
	}

	if cfg.SFTPAddr != "" {
		dialer, err := sftp.NewDialer(sftp.Config{
			Addr:       cfg.SFTPAddr,
			User:       cfg.SFTPUser,
			Password:   cfg.SFTPPassword,
			PrivateKey: cfg.SFTPPrivateKey,
			HostKey:    cfg.SFTPHostKey,
			MaxTries:   cfg.TransportMaxTries,
		}, logger)
		if err != nil {
			closeAll()
			return out, nil, err
		}
		out.Dialer = dialer
	}

	return out, closeAll, nil
}
