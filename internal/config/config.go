// Package config содержит логику чтения конфигурации сервиса Ink Panels.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS" yaml:"runAddress"`
	DatabaseURI string `env:"DATABASE_URI" yaml:"databaseURI"`
	AppEnv      string `env:"APP_ENV" yaml:"appEnv"`
	LogLevel    string `env:"LOG_LEVEL" yaml:"logLevel"`
	PublicDir   string `env:"PUBLIC_DIR" yaml:"publicDir"`

	JWTSecret   string        `env:"JWT_SECRET" yaml:"jwtSecret"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" yaml:"tokenTTL"`
	AdminEmails []string      `env:"ADMIN_EMAILS" envSeparator:"," yaml:"adminEmails"`

	AuthRateLimitPerMinute int           `env:"AUTH_RATE_LIMIT_PER_MINUTE" yaml:"authRateLimitPerMinute"`
	CatalogCacheTTL        time.Duration `env:"CATALOG_CACHE_TTL" yaml:"catalogCacheTTL"`
	OTPCleanupInterval     time.Duration `env:"OTP_CLEANUP_INTERVAL" yaml:"otpCleanupInterval"`

	Redis  RedisConfig  `envPrefix:"REDIS_" yaml:"redis"`
	Media  MediaConfig  `yaml:"media"`
	Stripe StripeConfig `yaml:"stripe"`
	SMTP   SMTPConfig   `envPrefix:"SMTP_" yaml:"smtp"`
}

// RedisConfig описывает подключение к Redis. Пустой адрес отключает кэш и ограничение частоты.
type RedisConfig struct {
	Addr     string `env:"ADDR" yaml:"addr"`
	Password string `env:"PASSWORD" yaml:"password"`
	DB       int    `env:"DB" yaml:"db"`
}

// MediaConfig выбирает хранилище изображений каталога.
type MediaConfig struct {
	Backend    string           `env:"MEDIA_BACKEND" yaml:"backend"`
	Cloudinary CloudinaryConfig `envPrefix:"CLOUDINARY_" yaml:"cloudinary"`
	Minio      MinioConfig      `envPrefix:"MINIO_" yaml:"minio"`
}

// CloudinaryConfig содержит параметры загрузки в Cloudinary.
type CloudinaryConfig struct {
	CloudName    string `env:"CLOUD_NAME" yaml:"cloudName"`
	APIKey       string `env:"API_KEY" yaml:"apiKey"`
	APISecret    string `env:"API_SECRET" yaml:"apiSecret"`
	UploadPreset string `env:"UPLOAD_PRESET" yaml:"uploadPreset"`
}

// MinioConfig содержит параметры S3-совместимого хранилища.
type MinioConfig struct {
	Endpoint  string `env:"ENDPOINT" yaml:"endpoint"`
	AccessKey string `env:"ACCESS_KEY" yaml:"accessKey"`
	SecretKey string `env:"SECRET_KEY" yaml:"secretKey"`
	Bucket    string `env:"BUCKET" yaml:"bucket"`
	UseSSL    bool   `env:"USE_SSL" yaml:"useSSL"`
	PublicURL string `env:"PUBLIC_URL" yaml:"publicURL"`
}

// StripeConfig содержит ключи платёжной системы.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY" yaml:"secretKey"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET" yaml:"webhookSecret"`
	Currency      string `env:"PAYMENT_CURRENCY" yaml:"currency"`
}

// SMTPConfig содержит параметры отправки почты.
type SMTPConfig struct {
	Host     string `env:"HOST" yaml:"host"`
	Port     int    `env:"PORT" yaml:"port"`
	User     string `env:"USER" yaml:"user"`
	Password string `env:"PASS" yaml:"password"`
	From     string `env:"FROM" yaml:"from"`
}

func defaultConfig() *Config {
	return &Config{
		RunAddress:             "localhost:5000",
		AppEnv:                 EnvDevelopment,
		LogLevel:               "info",
		TokenTTL:               24 * time.Hour,
		AuthRateLimitPerMinute: 30,
		CatalogCacheTTL:        5 * time.Minute,
		OTPCleanupInterval:     time.Hour,
		Stripe: StripeConfig{
			Currency: "usd",
		},
		SMTP: SMTPConfig{
			Port: 465,
		},
	}
}

// Parse считывает конфигурацию: значения по умолчанию, затем YAML-файл из CONFIG_FILE,
// затем флаги командной строки и, наконец, переменные окружения.
func Parse() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	flag.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "database URI")
	flag.StringVar(&cfg.JWTSecret, "s", cfg.JWTSecret, "secret for signing session tokens")
	flag.StringVar(&cfg.PublicDir, "p", cfg.PublicDir, "directory with static pages")
	flag.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:5000"
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.Media.Backend = strings.ToLower(strings.TrimSpace(cfg.Media.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate проверяет согласованность параметров.
func (c *Config) Validate() error {
	switch c.AppEnv {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("unknown APP_ENV %q", c.AppEnv)
	}
	switch c.Media.Backend {
	case "":
	case "cloudinary":
		if c.Media.Cloudinary.CloudName == "" {
			return fmt.Errorf("cloudinary media backend requires CLOUDINARY_CLOUD_NAME")
		}
	case "minio":
		if c.Media.Minio.Endpoint == "" || c.Media.Minio.Bucket == "" {
			return fmt.Errorf("minio media backend requires MINIO_ENDPOINT and MINIO_BUCKET")
		}
	default:
		return fmt.Errorf("unknown MEDIA_BACKEND %q", c.Media.Backend)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

// IsDevelopment сообщает, запущен ли сервис в режиме разработки.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}
