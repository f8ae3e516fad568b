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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/checkup"
	"github.com/clinic/clinic/internal/domain/feedback"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/misconduct"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/pharmacy"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic checkup scheduling API server",
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
		Short: "Start the clinic API server",
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
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// resolveJWTSecret returns the configured secret, or a random one when
// none is set. Validate rejects an empty secret outside development, so
// the random fallback only fires for local runs.
func resolveJWTSecret(configured string) (string, bool, error) {
	if configured != "" {
		return configured, false, nil
	}
	buf := make([]byte, 32)
	if _, err := crypto_rand.Read(buf); err != nil {
		return "", false, fmt.Errorf("generate JWT secret: %w", err)
	}
	return hex.EncodeToString(buf), true, nil
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
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	jwtSecret, random, err := resolveJWTSecret(cfg.JWTSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve JWT secret")
	}
	if random {
		logger.Warn().Msg("JWT_SECRET not set; using a random secret, tokens will not survive a restart")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	issuer := auth.NewTokenIssuer(jwtSecret, cfg.JWTTTL())

	// API groups: registration and login are public, everything else
	// requires a valid token.
	public := e.Group("/api/v1")
	apiV1 := e.Group("/api/v1", auth.JWTMiddleware(issuer))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// -- Register Domain Handlers --

	// Identity domain
	userRepo := identity.NewUserRepoPG(pool)
	identitySvc := identity.NewService(userRepo, issuer)
	identityHandler := identity.NewHandler(identitySvc)
	identityHandler.RegisterRoutes(public, apiV1)

	// Misconduct domain
	policy := misconduct.Policy{
		LateCancelWindow:   cfg.LateCancelWindow(),
		TrailingWindow:     cfg.MisconductWindow(),
		MaliciousThreshold: cfg.MaliciousThreshold,
		BlockThreshold:     cfg.BlockThreshold,
	}
	misconductSvc := misconduct.NewService(misconduct.NewRepoPG(pool), identitySvc, policy, logger)
	misconductHandler := misconduct.NewHandler(misconductSvc)
	misconductHandler.RegisterRoutes(apiV1)

	// Checkup domain
	checkupSvc := checkup.NewService(checkup.NewRepoPG(pool), identitySvc, misconductSvc, pool, cfg.CheckupDuration())
	checkupHandler := checkup.NewHandler(checkupSvc)
	checkupHandler.RegisterRoutes(apiV1)

	// Feedback domain
	feedbackSvc := feedback.NewService(feedback.NewRepoPG(pool), checkupSvc)
	feedbackHandler := feedback.NewHandler(feedbackSvc)
	feedbackHandler.RegisterRoutes(apiV1)

	// Pharmacy integration (optional, enabled when PHARMACY_URL is set)
	if cfg.PharmacyURL != "" {
		pharmacyClient := pharmacy.NewClient(cfg.PharmacyURL, logger)
		pharmacyHandler := pharmacy.NewHandler(pharmacyClient)
		pharmacyHandler.RegisterRoutes(apiV1)
		logger.Info().Str("url", cfg.PharmacyURL).Msg("pharmacy integration enabled")
	}

	// Background sweep marking elapsed booked checkups as completed
	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	sweeper := checkup.NewSweeper(checkupSvc, cfg.SweepInterval(), logger)
	go sweeper.Start(sweepCtx)

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
