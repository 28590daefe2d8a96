// Package handler содержит HTTP-обработчики API магазина Ink Panels.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/ink-panels/internal/media"
	"github.com/mmeshcher/ink-panels/internal/middleware"
	"github.com/mmeshcher/ink-panels/internal/model"
	"github.com/mmeshcher/ink-panels/internal/repository"
	"github.com/mmeshcher/ink-panels/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error

	SendOTP(ctx context.Context, email, purpose string) error
	VerifyOTP(ctx context.Context, in service.VerifyOTPInput) (*service.AuthResult, error)
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)

	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, in service.ProfileUpdate) (*model.User, error)
	AddToWishlist(ctx context.Context, userID, mangaID string) ([]string, error)
	RemoveFromWishlist(ctx context.Context, userID, mangaID string) ([]string, error)
	GetWishlist(ctx context.Context, userID string) ([]string, error)

	ListManga(ctx context.Context) ([]model.Manga, error)
	GetManga(ctx context.Context, id string) (*model.Manga, error)
	CreateManga(ctx context.Context, in service.MangaInput, file *media.File) (*model.Manga, error)
	UpdateManga(ctx context.Context, id string, p model.MangaPatch) (*model.Manga, error)
	DeleteManga(ctx context.Context, id string) error

	CreateOrder(ctx context.Context, userID string, in service.OrderInput) (*service.OrderResult, error)
	MyOrders(ctx context.Context, userID string) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) (*model.Order, error)
	HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error
}

// Handler реализует HTTP-обработчики API магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	authLimiter    middleware.Limiter
	publicDir      string
	development    bool
}

// Option настраивает обработчик.
type Option func(*Handler)

// WithAuthLimiter включает ограничение частоты запросов к эндпоинтам входа и регистрации.
func WithAuthLimiter(l middleware.Limiter) Option {
	return func(h *Handler) { h.authLimiter = l }
}

// WithPublicDir задаёт каталог статических страниц.
func WithPublicDir(dir string) Option {
	return func(h *Handler) { h.publicDir = dir }
}

// WithDevelopment добавляет текст внутренних ошибок в ответы.
func WithDevelopment(dev bool) Option {
	return func(h *Handler) { h.development = dev }
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, opts ...Option) *Handler {
	h := &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// handleError переводит ошибку сервиса в HTTP-ответ.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, service.ErrOTPInvalid),
		errors.Is(err, service.ErrTotalMismatch),
		errors.Is(err, service.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrOTPNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, repository.ErrMangaNotFound):
		writeError(w, http.StatusNotFound, "manga not found")
	case errors.Is(err, repository.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, repository.ErrUserExists):
		writeError(w, http.StatusConflict, "user with this email already exists")
	case errors.Is(err, repository.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username is already taken")
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, service.ErrPaymentsDisabled),
		errors.Is(err, service.ErrMediaDisabled),
		errors.Is(err, service.ErrMailerDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.internalError(w, r, op, err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op+" error", zap.Error(err), zap.String("path", r.URL.Path))

	msg := "internal server error"
	for _, known := range []error{service.ErrMailDelivery, service.ErrPayment, service.ErrMediaUpload} {
		if errors.Is(err, known) {
			msg = known.Error()
			break
		}
	}

	resp := errorResponse{Error: msg}
	if h.development {
		resp.Detail = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

// Health проверяет доступность базы данных.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
