package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cultureradar/server/internal/api"
	"github.com/cultureradar/server/internal/api/handlers"
	"github.com/cultureradar/server/internal/auth"
	"github.com/cultureradar/server/internal/cache"
	"github.com/cultureradar/server/internal/config"
	"github.com/cultureradar/server/internal/domain/events"
	"github.com/cultureradar/server/internal/domain/locations"
	"github.com/cultureradar/server/internal/domain/users"
	"github.com/cultureradar/server/internal/ingest"
	"github.com/cultureradar/server/internal/metrics"
	"github.com/cultureradar/server/internal/storage/postgres"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CultureRadar HTTP server",
	Long: `Start the CultureRadar HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Bootstrap an admin account if ADMIN_* env vars are set
- Start the periodic external ingestion scheduler
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	// Server-specific flags
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Msg("starting cultureradar server")

	metrics.Init(Version, GitCommit, BuildDate)

	pool, err := connectPool(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return fmt.Errorf("repository init failed: %w", err)
	}

	// Start database metrics collector (collect every 15 seconds)
	dbCollector := metrics.NewDBCollector(pool)
	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	go dbCollector.Start(collectorCtx, 15*time.Second)
	defer collectorCancel()
	defer dbCollector.Stop()

	usersService := users.NewService(repo.Users(), logger)

	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := bootstrapAdminUser(bootstrapCtx, cfg, usersService, logger); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}
	bootstrapCancel()

	var searchCache *cache.Cache
	if cfg.Redis.Addr != "" {
		cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 5*time.Second)
		searchCache, err = cache.Connect(cacheCtx, cache.Config{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
			TTL:  cfg.Redis.CacheTTL,
		})
		cacheCancel()
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, serving without cache")
			searchCache = nil
		} else {
			defer searchCache.Close()
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("search cache connected")
		}
	}

	ingester := newIngester(cfg, repo, logger)

	// Periodic ingestion runs on its own goroutine until shutdown
	scheduler := ingest.NewScheduler(ingester, cfg.Ingest.Interval, logger)
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	defer schedulerCancel()
	go scheduler.Start(schedulerCtx)

	policy := auth.Policy{EnforceEventOwnership: cfg.Features.EnforceEventOwnership}
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)

	searchService := events.NewService(repo.Events())
	approvalService := events.NewApprovalService(repo.Events(), cfg.Features.EnforceEventOwnership)
	locationsService := locations.NewService(repo.Locations())

	handler := api.NewRouter(cfg, api.Deps{
		Events:    handlers.NewEventsHandler(searchService, approvalService, ingester, policy, searchCache, cfg.Environment),
		Locations: handlers.NewLocationsHandler(locationsService, cfg.Environment),
		Auth:      handlers.NewAuthHandler(usersService, jwtManager, cfg.Environment),
		Users:     handlers.NewUsersHandler(usersService, policy, cfg.Environment),
		Health:    handlers.NewHealthChecker(pool, Version),
		JWT:       jwtManager,
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	return gracefulShutdown(server, logger)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	// Override logging from flags if provided
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

func connectPool(cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.Database.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return pool, nil
}

func newIngester(cfg config.Config, repo *postgres.Repository, logger zerolog.Logger) *ingest.Ingester {
	var clients []ingest.Client
	if cfg.Ingest.EventbriteToken != "" {
		clients = append(clients, ingest.NewEventbriteClient(cfg.Ingest.EventbriteBaseURL, cfg.Ingest.EventbriteToken, cfg.Ingest.HTTPTimeout))
	}
	if cfg.Ingest.CanadaGovBaseURL != "" {
		clients = append(clients, ingest.NewCanadaGovClient(cfg.Ingest.CanadaGovBaseURL, cfg.Ingest.HTTPTimeout))
	}
	return ingest.NewIngester(repo.Events(), repo.Locations(), clients, metrics.IngestRecorder{}, logger)
}

// bootstrapAdminUser creates the configured admin account on first start.
// An existing username is left untouched.
func bootstrapAdminUser(ctx context.Context, cfg config.Config, service *users.Service, logger zerolog.Logger) error {
	bootstrap := cfg.AdminBootstrap
	if bootstrap.Username == "" || bootstrap.Password == "" || bootstrap.Email == "" {
		logger.Warn().Msg("admin bootstrap env vars not fully set; skipping")
		return nil
	}

	user, err := service.Register(ctx, users.RegisterParams{
		Username: bootstrap.Username,
		Email:    bootstrap.Email,
		Password: bootstrap.Password,
	})
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) || errors.Is(err, users.ErrEmailTaken) {
			return nil
		}
		return err
	}
	if err := service.SetRoles(ctx, user.ID, []string{users.RoleAdmin}); err != nil {
		return fmt.Errorf("grant admin role: %w", err)
	}

	// Redact the email in production to avoid PII leaks
	if cfg.Environment == "production" {
		logger.Info().Str("username", bootstrap.Username).Msg("admin user created")
	} else {
		logger.Info().Str("username", bootstrap.Username).Str("email", bootstrap.Email).Msg("admin user created")
	}
	return nil
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
