package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"hoofprint/internal/bootstrap"
	"hoofprint/internal/config"
	"hoofprint/internal/domain"
	"hoofprint/internal/handler"
	"hoofprint/internal/messaging"
	"hoofprint/internal/middleware"
	"hoofprint/internal/observability"
	"hoofprint/internal/repository/postgres"
	"hoofprint/internal/repository/redis"
	"hoofprint/internal/security"
	"hoofprint/internal/server"
	"hoofprint/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		return 2
	}

	logger := observability.InitLogger(cfg.LogLevel(), cfg.LogFormat)
	logger.Info("starting hoofprint", slog.String("addr", cfg.Addr()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := config.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		return 1
	}
	defer db.Close()
	logger.Info("connected to postgresql")

	go observability.CollectDBStats(ctx, db, 15*time.Second)

	hasher := security.NewPasswordHasher(cfg.HashParams())

	migrations, err := bootstrap.Migrations()
	if err != nil {
		logger.Error("failed to load migrations", slog.String("error", err.Error()))
		return 1
	}
	if _, err := bootstrap.NewRunner(postgres.NewTxManager(db), hasher, migrations, logger).Run(ctx); err != nil {
		logger.Error("bootstrap failed", slog.String("error", err.Error()))
		return 1
	}

	userRepo := postgres.NewUserRepository(db)

	if cfg.ResetAdminPassword {
		if err := resetAdminPassword(ctx, userRepo, postgres.NewSessionRepository(db), hasher, logger, cfg.SessionTTL, os.Stdout); err != nil {
			logger.Error("password reset failed", slog.String("error", err.Error()))
			return 1
		}
		return 0
	}

	readyChecks := map[string]handler.Pinger{}

	var sessions domain.SessionRepository = postgres.NewSessionRepository(db)
	if cfg.SessionBackend == config.BackendRedis {
		client, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", slog.String("error", err.Error()))
			return 1
		}
		defer client.Close()

		store := redis.NewSessionStore(client)
		sessions = store
		readyChecks["redis"] = store
		logger.Info("using redis session store")
	}

	var audit domain.AuditPublisher = messaging.NewLogPublisher(logger)
	if cfg.RabbitMQURL != "" {
		rmqCtx, rmqCancel := context.WithTimeout(ctx, 60*time.Second)
		rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
		rmqCancel()
		if err != nil {
			logger.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
			return 1
		}
		defer rmq.Close()

		audit = rmq
		readyChecks["rabbitmq"] = rmq
	}

	authService := service.NewAuthService(userRepo, sessions, hasher, audit, cfg.SessionTTL)

	renderer, err := handler.NewRenderer()
	if err != nil {
		logger.Error("failed to load templates", slog.String("error", err.Error()))
		return 1
	}

	go service.NewSessionSweeper(sessions, cfg.SweepInterval, logger).Run(ctx)
	logger.Info("session sweeper started", slog.Duration("interval", cfg.SweepInterval))

	loginLimiter := middleware.NewRateLimiter(5, 10)
	defer loginLimiter.Stop()

	router := server.NewRouter(server.Deps{
		DB:            db,
		Auth:          authService,
		Codes:         service.NewCodeService(postgres.NewCodeRepository(db), postgres.NewSiteRepository(db)),
		Tokens:        security.NewTokenManager(sessions),
		Renderer:      renderer,
		LoginLimiter:  loginLimiter,
		ReadyChecks:   readyChecks,
		StaticOrigins: []string{cfg.BaseURL},
		SecureCookies: cfg.TLSEnabled(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hoofprint listening", slog.String("addr", cfg.Addr()), slog.Bool("tls", cfg.TLSEnabled()))
		if cfg.TLSEnabled() {
			errCh <- srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			return 1
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("server stopped gracefully")
	return 0
}

// resetAdminPassword is the recovery path. It needs only the database, so
// it works while Redis or the broker is down; the audit event goes to the log.
func resetAdminPassword(ctx context.Context, users domain.UserRepository, sessions domain.SessionRepository, hasher service.PasswordHasher, logger *slog.Logger, sessionTTL time.Duration, w io.Writer) error {
	auth := service.NewAuthService(users, sessions, hasher, messaging.NewLogPublisher(logger), sessionTTL)

	password, _, err := auth.ResetPassword(ctx, "", domain.AdminUserID)
	if err != nil {
		return fmt.Errorf("failed to reset administrator password: %w", err)
	}
	fmt.Fprintf(w, "New password for %s: %s\n", bootstrap.AdminEmail, password)
	return nil
}
