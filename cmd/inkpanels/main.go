// Package main запускает HTTP-сервер магазина Ink Panels.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/ink-panels/internal/config"
	"github.com/mmeshcher/ink-panels/internal/handler"
	"github.com/mmeshcher/ink-panels/internal/middleware"
	"github.com/mmeshcher/ink-panels/internal/repository"
	"github.com/mmeshcher/ink-panels/internal/service"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger initialization error: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	sugar := logger.Sugar()

	repo, err := repository.NewPostgresRepository(ctx, cfg.DatabaseURI, logger)
	if err != nil {
		return fmt.Errorf("database initialization: %w", err)
	}

	rdb, err := newRedis(ctx, cfg.Redis, logger)
	if err != nil {
		repo.Close()
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.TokenTTL)
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set, tokens will not survive a restart")
	}

	opts := []service.Option{
		service.WithAdminEmails(cfg.AdminEmails),
		service.WithCurrency(cfg.Stripe.Currency),
	}
	var handlerOpts []handler.Option

	if rdb != nil {
		opts = append(opts, service.WithCatalogCache(newCatalogCache(rdb, cfg)))

		limiter, err := newAuthLimiter(rdb, cfg)
		if err != nil {
			repo.Close()
			return err
		}
		if limiter != nil {
			handlerOpts = append(handlerOpts, handler.WithAuthLimiter(limiter))
		}
	}

	store, err := newMediaStore(ctx, cfg.Media)
	if err != nil {
		repo.Close()
		return err
	}
	if store != nil {
		opts = append(opts, service.WithMedia(store))
	} else {
		logger.Warn("media backend is not configured, image uploads are disabled")
	}

	if payments := newPayments(cfg.Stripe); payments != nil {
		opts = append(opts, service.WithPayments(payments))
	} else {
		logger.Warn("STRIPE_SECRET_KEY is not set, orders are disabled")
	}

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		repo.Close()
		return err
	}
	if mailer != nil {
		opts = append(opts, service.WithMailer(mailer))
	}

	svc := service.NewService(repo, authMiddleware, logger, opts...)
	defer svc.Close()

	handlerOpts = append(handlerOpts,
		handler.WithPublicDir(cfg.PublicDir),
		handler.WithDevelopment(cfg.IsDevelopment()),
	)
	h := handler.NewHandler(svc, logger, authMiddleware, handlerOpts...)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Удаление давно истёкших кодов подтверждения
	g.Go(func() error {
		svc.RunOTPCleanup(ctx, cfg.OTPCleanupInterval)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting ink panels server", "addr", cfg.RunAddress, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}
