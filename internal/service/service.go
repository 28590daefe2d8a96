// Package service реализует бизнес-логику магазина Ink Panels.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/ink-panels/internal/media"
	"github.com/mmeshcher/ink-panels/internal/model"
	"github.com/mmeshcher/ink-panels/internal/payment"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Ping(ctx context.Context) error
	Close() error

	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id, email, username string) (*model.User, error)
	MarkUserVerified(ctx context.Context, id, username string) (*model.User, error)
	UsernameTaken(ctx context.Context, username, exceptID string) (bool, error)
	AddToWishlist(ctx context.Context, userID, mangaID string) error
	RemoveFromWishlist(ctx context.Context, userID, mangaID string) error
	GetWishlist(ctx context.Context, userID string) ([]string, error)

	ListManga(ctx context.Context) ([]model.Manga, error)
	GetManga(ctx context.Context, id string) (*model.Manga, error)
	GetMangaByIDs(ctx context.Context, ids []string) (map[string]model.Manga, error)
	CreateManga(ctx context.Context, m *model.Manga) (*model.Manga, error)
	UpdateManga(ctx context.Context, id string, p model.MangaPatch) (*model.Manga, error)
	DeleteManga(ctx context.Context, id string) (string, error)

	CreateOrder(ctx context.Context, o *model.Order) (*model.Order, error)
	AttachPaymentIntent(ctx context.Context, orderID, intentID string) error
	SetPaymentStatus(ctx context.Context, orderID string, status model.PaymentStatus) error
	MarkPaymentCompletedByIntent(ctx context.Context, intentID string) (bool, error)
	MarkPaymentCompletedByOrder(ctx context.Context, orderID, intentID string) (bool, error)
	GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error)

	CreateOTPIfAllowed(ctx context.Context, rec *model.OTPVerification, notBefore time.Time) (bool, error)
	DeleteOTP(ctx context.Context, id string) error
	RecentUnusedOTPs(ctx context.Context, email string, limit int) ([]model.OTPVerification, error)
	IncrementOTPAttempts(ctx context.Context, id string) error
	MarkOTPUsed(ctx context.Context, id string) (bool, error)
	DeleteExpiredOTPs(ctx context.Context, before time.Time) (int64, error)
}

// TokenIssuer выпускает сессионные токены.
type TokenIssuer interface {
	IssueToken(userID string, role model.Role) (string, error)
}

// Mailer доставляет коды подтверждения.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string, ttl time.Duration) error
}

// MediaStore хранит изображения каталога.
type MediaStore interface {
	Upload(ctx context.Context, f media.File) (*media.Object, error)
	Delete(ctx context.Context, key string) error
}

// PaymentProvider создаёт платёжные намерения и разбирает вебхуки.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error)
	ParseEvent(payload []byte, signature string) (*payment.Event, error)
}

// CatalogCache кэширует список каталога. Set с устаревшим поколением ничего не записывает.
type CatalogCache interface {
	Get(ctx context.Context) ([]model.Manga, bool, error)
	Version(ctx context.Context) (int64, error)
	Set(ctx context.Context, version int64, list []model.Manga) error
	Invalidate(ctx context.Context) error
}

var (
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrRateLimited возвращается при слишком частом запросе кода.
	ErrRateLimited = errors.New("please wait before requesting another code")
	// ErrOTPNotFound возвращается, если для email нет неиспользованных кодов.
	ErrOTPNotFound = errors.New("no pending verification code for this email")
	// ErrOTPInvalid возвращается при неверном или просроченном коде.
	ErrOTPInvalid = errors.New("invalid or expired code")
	// ErrTotalMismatch возвращается, если переданная клиентом сумма заказа не совпадает с расчётной.
	ErrTotalMismatch = errors.New("total amount does not match order items")
	// ErrMailDelivery возвращается, если письмо не удалось отправить.
	ErrMailDelivery = errors.New("failed to send verification email")
	// ErrPayment возвращается при сбое платёжной системы.
	ErrPayment = errors.New("payment provider error")
	// ErrMediaUpload возвращается при сбое загрузки изображения.
	ErrMediaUpload = errors.New("failed to upload image")
	// ErrInvalidSignature возвращается для вебхука с неверной подписью.
	ErrInvalidSignature = payment.ErrInvalidSignature

	// ErrPaymentsDisabled возвращается, если платёжная система не настроена.
	ErrPaymentsDisabled = errors.New("payments are not configured")
	// ErrMediaDisabled возвращается, если хранилище изображений не настроено.
	ErrMediaDisabled = errors.New("image uploads are not configured")
	// ErrMailerDisabled возвращается, если отправка почты не настроена.
	ErrMailerDisabled = errors.New("email delivery is not configured")
)

// ValidationError описывает ошибку входных данных в конкретном поле.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

const (
	otpTTL            = 10 * time.Minute
	otpResendInterval = 60 * time.Second
	otpCandidates     = 5
	otpRetention      = 24 * time.Hour
)

// Service содержит бизнес-логику магазина.
type Service struct {
	repo     Repository
	tokens   TokenIssuer
	logger   *zap.Logger
	mailer   Mailer
	media    MediaStore
	payments PaymentProvider
	cache    CatalogCache

	adminEmails map[string]struct{}
	currency    string
	hashCost    int
	now         func() time.Time
	newCode     func() (string, error)
}

// Option настраивает необязательные зависимости сервиса.
type Option func(*Service)

// WithMailer задаёт способ доставки кодов подтверждения.
func WithMailer(m Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

// WithMedia задаёт хранилище изображений.
func WithMedia(m MediaStore) Option {
	return func(s *Service) { s.media = m }
}

// WithPayments задаёт платёжную систему.
func WithPayments(p PaymentProvider) Option {
	return func(s *Service) { s.payments = p }
}

// WithCatalogCache задаёт кэш каталога.
func WithCatalogCache(c CatalogCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithAdminEmails задаёт адреса, которые получают роль администратора при создании учётной записи.
func WithAdminEmails(emails []string) Option {
	return func(s *Service) {
		for _, e := range emails {
			if e = normalizeEmail(e); e != "" {
				s.adminEmails[e] = struct{}{}
			}
		}
	}
}

// WithCurrency задаёт валюту платежей.
func WithCurrency(currency string) Option {
	return func(s *Service) {
		if currency != "" {
			s.currency = currency
		}
	}
}

// NewService создаёт новый сервис с указанным репозиторием и выпуском токенов.
func NewService(repo Repository, tokens TokenIssuer, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:        repo,
		tokens:      tokens,
		logger:      logger,
		adminEmails: make(map[string]struct{}),
		currency:    "usd",
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
		newCode:     generateOTPCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) roleFor(email string) model.Role {
	if _, ok := s.adminEmails[email]; ok {
		return model.RoleAdmin
	}
	return model.RoleUser
}

// RunOTPCleanup периодически удаляет коды, истёкшие более суток назад. Блокируется до отмены контекста.
func (s *Service) RunOTPCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupOTPs(ctx)
		}
	}
}

func (s *Service) cleanupOTPs(ctx context.Context) {
	removed, err := s.repo.DeleteExpiredOTPs(ctx, s.now().Add(-otpRetention))
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("otp cleanup failed", zap.Error(err))
		}
		return
	}
	if removed > 0 {
		s.logger.Info("expired otp records removed", zap.Int64("count", removed))
	}
}
