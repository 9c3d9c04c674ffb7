package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/gol-logistics/gol-portal/internal/app"
	"github.com/gol-logistics/gol-portal/internal/audit"
	audithttp "github.com/gol-logistics/gol-portal/internal/audit/http"
	"github.com/gol-logistics/gol-portal/internal/identity"
	"github.com/gol-logistics/gol-portal/internal/logistics"
	"github.com/gol-logistics/gol-portal/internal/notify"
	"github.com/gol-logistics/gol-portal/internal/observability"
	"github.com/gol-logistics/gol-portal/internal/platform/cache"
	"github.com/gol-logistics/gol-portal/internal/platform/db"
	"github.com/gol-logistics/gol-portal/internal/shared"
	"github.com/gol-logistics/gol-portal/internal/users"
	"github.com/gol-logistics/gol-portal/internal/view"
	"github.com/gol-logistics/gol-portal/jobs"
)

const sessionCookie = "gol_session"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, sessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.SessionIdleTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	jobClient := jobs.NewClient(redisOpts(cfg))
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts(cfg))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()
	notifier := notify.NewNotifier(jobClient, logger, cfg.PublicURL)

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	identityRepo := identity.NewRepository(pool)
	resolver := identity.NewResolver(identityRepo, auditLogger, logger,
		identity.WithEvents(metrics),
		identity.WithNotifications(notifier),
		identity.WithOTPStore(identity.NewOTPStore(redisClient, cfg.SessionSecret)),
	)
	var (
		signer    *identity.StateSigner
		providers []identity.OAuthProvider
	)
	if cfg.OAuthEnabled() {
		signer = identity.NewStateSigner(cfg.OAuthStateSecret)
		providers = append(providers, identity.NewGoogleProvider(
			cfg.OAuthGoogleClientID,
			cfg.OAuthGoogleClientSecret,
			cfg.PublicURL+"/oauth/google/callback",
		))
	}
	identityHandler := identity.NewHandler(logger, resolver, templates, csrfManager, signer, providers...)

	logisticsService := logistics.NewService(logistics.NewStore(pool), auditLogger, notifier, logger)
	logisticsHandler := logistics.NewHandler(logger, logisticsService, templates, csrfManager)

	usersService := users.NewService(identityRepo, resolver, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager)

	auditService := audit.NewService(audit.NewRepository(pool))
	auditModules := []string{
		identity.AuditModule,
		users.AuditModule,
		logistics.KindOrder.AuditModule(),
		logistics.KindServiceRequest.AuditModule(),
		logistics.KindJobOrder.AuditModule(),
		logistics.KindPricingRequest.AuditModule(),
	}
	auditHandler := audithttp.NewHandler(logger, auditService, templates, audit.NewExporter(), csrfManager, auditModules)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		IdentityHandler:  identityHandler,
		LogisticsHandler: logisticsHandler,
		UsersHandler:     usersHandler,
		AuditHandler:     auditHandler,
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}
