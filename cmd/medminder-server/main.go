package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medminder/medminder/internal/config"
	"github.com/medminder/medminder/internal/domain/alerting"
	"github.com/medminder/medminder/internal/domain/identity"
	"github.com/medminder/medminder/internal/domain/medication"
	"github.com/medminder/medminder/internal/domain/roster"
	"github.com/medminder/medminder/internal/platform/auth"
	"github.com/medminder/medminder/internal/platform/db"
	"github.com/medminder/medminder/internal/platform/middleware"
	"github.com/medminder/medminder/internal/platform/notification"
	"github.com/medminder/medminder/internal/platform/routes"
	"github.com/medminder/medminder/internal/platform/telemetry"
	"github.com/medminder/medminder/internal/platform/websocket"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "medminder-server",
		Short: "Medication reminder API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default from MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default from MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	secret, generated, err := resolveJWTSecret(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve JWT secret")
	}
	if generated {
		logger.Warn().Msg("JWT_SECRET not set, generated a random secret; sessions will not survive restart")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// In development the schema is kept current at startup so a fresh
	// checkout runs without a separate migrate step.
	if cfg.IsDev() {
		count, err := db.NewMigrator(pool, cfg.MigrationsDir).Up(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		if count > 0 {
			logger.Info().Int("applied", count).Msg("applied pending migrations")
		}
	}

	// Metrics
	metrics := telemetry.NewProvider(telemetry.Config{
		ServiceName:    "medminder-server",
		ServiceVersion: version,
		MetricsEnabled: telemetry.BoolPtr(cfg.MetricsEnabled),
		Environment:    cfg.Env,
	})
	defer metrics.Shutdown(ctx)

	// Repositories
	users := identity.NewUserRepoPG(pool)
	patients := roster.NewRosterRepoPG(pool)
	meds := medication.NewMedicationRepoPG(pool)

	// Live update hub
	hub := websocket.NewHub()
	wsHandler := websocket.NewHandler(hub)

	// Email boundary
	templates := notification.NewTemplateEngine()
	sender := notification.NewEmailSender(notification.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.AlertFrom,
	})
	if !cfg.EmailConfigured() {
		logger.Warn().Msg("email is not configured, missed-dose alerts will be skipped")
	}

	// Services
	issuer := auth.NewTokenIssuer(secret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	identitySvc := identity.NewService(users, issuer)
	rosterSvc := roster.NewService(patients, sender, templates)
	medSvc := medication.NewService(meds, users, hub)
	alertSvc := alerting.NewService(meds, patients, sender, templates, cfg.AlertTemplateID, metrics)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeoutSec) * time.Second))
	e.Use(metrics.MetricsMiddleware())

	authMW := auth.Middleware(issuer, identitySvc, logger, auth.PublicSkipper)

	// The credential endpoints share the /api prefix but carry a rate limit
	// to slow brute-force attempts; the skipper exempts them from auth.
	rlCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rlCfg.RequestsPerSecond <= 0 {
		rlCfg = middleware.DefaultRateLimitConfig()
	}
	public := e.Group("/api", middleware.RateLimit(rlCfg), authMW)

	api := e.Group("/api", authMW)
	ws := e.Group("/ws", authMW)

	// Handlers
	identity.NewHandler(identitySvc).RegisterRoutes(public, api)
	roster.NewHandler(rosterSvc).RegisterRoutes(api)
	medication.NewHandler(medSvc, wsHandler).RegisterRoutes(api, ws)
	alerting.NewHandler(alertSvc, rosterSvc).RegisterRoutes(api)

	// Page guard
	routes.NewHandler().RegisterRoutes(e, auth.OptionalMiddleware(issuer, identitySvc, logger))

	// Operational endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/ready", db.HealthHandler(pool))
	e.GET("/metrics", metrics.PrometheusHandler())

	// Pool and hub gauges
	gaugeCtx, stopGauges := context.WithCancel(ctx)
	defer stopGauges()
	go recordGauges(gaugeCtx, metrics, pool, hub)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// recordGauges periodically samples the connection pool and websocket hub
// into the metrics provider.
func recordGauges(ctx context.Context, metrics *telemetry.Provider, pool *pgxpool.Pool, hub *websocket.Hub) {
	health := metrics.HealthMetrics()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := pool.Stat()
			health.SetDBPoolActive(int64(stat.AcquiredConns()))
			health.SetDBPoolIdle(int64(stat.IdleConns()))
			metrics.SetWebsocketClients(int64(hub.ClientCount()))
		}
	}
}

// resolveJWTSecret returns the signing secret for session tokens. In
// development a missing secret is replaced with a random one; outside
// development config validation has already rejected that state.
func resolveJWTSecret(cfg *config.Config) (string, bool, error) {
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret, false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return "", false, fmt.Errorf("generate random JWT secret: %w", err)
	}
	return hex.EncodeToString(key), true, nil
}
