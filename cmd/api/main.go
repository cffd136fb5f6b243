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

	"google.golang.org/grpc"

	"taskhub.dev/internal/audit"
	"taskhub.dev/internal/auth"
	"taskhub.dev/internal/config"
	"taskhub.dev/internal/httpapi"
	"taskhub.dev/internal/mail"
	"taskhub.dev/internal/membership"
	"taskhub.dev/internal/migrate"
	"taskhub.dev/internal/obs"
	"taskhub.dev/internal/project"
	"taskhub.dev/internal/store/memory"
	"taskhub.dev/internal/store/mongostore"
	"taskhub.dev/internal/store/pg"
	"taskhub.dev/ops/migrations"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// backend is what every store driver provides.
type backend interface {
	auth.UserStore
	membership.Store
	project.Store
	Ping(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := obs.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	tokens, err := auth.NewTokenService(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
		auth.WithOneTimeTTL(cfg.Auth.OneTimeTTL),
	)
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(store, tokens,
		auth.WithMailer(mail.NewLogSender(logger.With(slog.String("component", "mail")), cfg.Mail.From)),
		auth.WithLogger(logger.With(slog.String("component", "auth"))),
		auth.WithBaseURL(cfg.BaseURL),
	)
	if err != nil {
		return err
	}
	registry := membership.NewRegistry(store, membership.WithRegistryLogger(logger))
	gate := membership.NewGate(store,
		membership.WithGateLogger(logger.With(slog.String("component", "authz"))),
		membership.WithDecisionObserver(obs.ObserveAuthz),
	)
	projects := project.NewService(store, registry, gate, authSvc,
		project.WithLogger(logger.With(slog.String("component", "projects"))))

	probe := httpapi.ProbeFunc(store.Ping)
	api := httpapi.New(authSvc, projects,
		httpapi.WithLogger(logger),
		httpapi.WithAudit(audit.New(logger)),
		httpapi.WithReadyProbe(probe),
		httpapi.WithVersion(version),
		httpapi.WithCookies(cfg.Auth.CookieSecure, cfg.Auth.CookieDomain),
		httpapi.WithVerifiedEmail(cfg.Auth.RequireVerifiedEmail),
		httpapi.WithOrigins(cfg.HTTP.Origins()),
		httpapi.WithLimits(cfg.HTTP.MaxBodyBytes, cfg.HTTP.RateBurst, cfg.HTTP.RatePerSec, cfg.HTTP.RequestTimeout),
	)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", slog.String("addr", srv.Addr), slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listen: %w", err)
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcSrv = grpc.NewServer()
		httpapi.NewGRPCHealth(probe).Register(grpcSrv)
		go func() {
			logger.Info("grpc listening", slog.String("addr", cfg.GRPC.Addr))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("server failed", slog.Any("err", runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", slog.Any("err", err))
	}
	logger.Info("stopped")
	return runErr
}

// openStore connects the configured driver. The postgres schema is migrated
// on start; mongo indexes are ensured.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (backend, func(), error) {
	switch cfg.Driver {
	case "postgres":
		st, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		if err := st.Ping(pingCtx); err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		mgr := migrate.NewManager(st.DB(), migrations.SQL, nil, migrate.WithLogger(logger))
		if _, err := mgr.Up(ctx); err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return st, func() { _ = st.Close() }, nil
	case "mongo":
		st, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		if err := st.EnsureIndexes(ctx); err != nil {
			_ = st.Close(context.Background())
			return nil, nil, err
		}
		return st, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
			defer cancel()
			_ = st.Close(closeCtx)
		}, nil
	default:
		logger.Warn("using in-memory store; data is lost on exit")
		st := memory.New()
		return st, func() { _ = st.Close() }, nil
	}
}
