package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mmeshcher/ink-panels/internal/cache"
	"github.com/mmeshcher/ink-panels/internal/config"
	"github.com/mmeshcher/ink-panels/internal/mailer"
	"github.com/mmeshcher/ink-panels/internal/media"
	"github.com/mmeshcher/ink-panels/internal/payment"
	"github.com/mmeshcher/ink-panels/internal/ratelimit"
	"github.com/mmeshcher/ink-panels/internal/service"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	return zcfg.Build()
}

// newRedis возвращает nil, если адрес Redis не задан.
func newRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg.Addr == "" {
		logger.Info("redis is not configured, catalog cache and auth rate limit are disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func newCatalogCache(client *redis.Client, cfg *config.Config) *cache.CatalogCache {
	return cache.NewCatalogCache(client, cfg.CatalogCacheTTL)
}

// newAuthLimiter возвращает nil, если ограничение отключено.
func newAuthLimiter(client *redis.Client, cfg *config.Config) (*ratelimit.FixedWindowLimiter, error) {
	if cfg.AuthRateLimitPerMinute <= 0 {
		return nil, nil
	}
	limiter, err := ratelimit.NewFixedWindowLimiter(client, "ratelimit:auth", cfg.AuthRateLimitPerMinute, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("init auth rate limiter: %w", err)
	}
	return limiter, nil
}

func newMediaStore(ctx context.Context, cfg config.MediaConfig) (service.MediaStore, error) {
	switch cfg.Backend {
	case "cloudinary":
		client, err := media.NewCloudinaryClient(media.CloudinaryConfig{
			CloudName:    cfg.Cloudinary.CloudName,
			APIKey:       cfg.Cloudinary.APIKey,
			APISecret:    cfg.Cloudinary.APISecret,
			UploadPreset: cfg.Cloudinary.UploadPreset,
		})
		if err != nil {
			return nil, fmt.Errorf("media initialization: %w", err)
		}
		return client, nil
	case "minio":
		store, err := media.NewMinioStore(ctx, media.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
			PublicURL: cfg.Minio.PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("media initialization: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

func newPayments(cfg config.StripeConfig) *payment.StripeProvider {
	if cfg.SecretKey == "" {
		return nil
	}
	return payment.NewStripeProvider(payment.Config{
		SecretKey:     cfg.SecretKey,
		WebhookSecret: cfg.WebhookSecret,
	})
}

// newMailer выбирает SMTP, а в режиме разработки без SMTP пишет коды в журнал.
func newMailer(cfg *config.Config, logger *zap.Logger) (service.Mailer, error) {
	if cfg.SMTP.Host == "" {
		if cfg.IsDevelopment() {
			logger.Warn("SMTP is not configured, verification codes are written to the log")
			return mailer.NewLogMailer(logger), nil
		}
		logger.Warn("SMTP is not configured, verification codes cannot be sent")
		return nil, nil
	}

	m, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if err != nil {
		return nil, fmt.Errorf("mailer initialization: %w", err)
	}
	return m, nil
}
