package handler

import (
	"net/http"
	"time"

	"github.com/mmeshcher/ink-panels/internal/middleware"
	"github.com/mmeshcher/ink-panels/internal/model"
	"github.com/mmeshcher/ink-panels/internal/service"
)

type userResponse struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	Wishlist      []string  `json:"wishlist"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toUserResponse(u *model.User) userResponse {
	wishlist := u.Wishlist
	if wishlist == nil {
		wishlist = []string{}
	}
	return userResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Role:          string(u.Role),
		EmailVerified: u.EmailVerified,
		Wishlist:      wishlist,
		CreatedAt:     u.CreatedAt,
	}
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register создаёт учётную запись по паролю.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.service.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleError(w, r, "register user", err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{Token: res.Token, User: toUserResponse(res.User)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя по email и паролю.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, "login user", err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: res.Token, User: toUserResponse(res.User)})
}

// Verify возвращает пользователя, которому выдан токен.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	h.Me(w, r)
}

type sendOTPRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type okResponse struct {
	OK    bool   `json:"ok"`
	Token string `json:"token,omitempty"`
	UID   string `json:"uid,omitempty"`
}

// SendOTP отправляет одноразовый код на email.
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SendOTP(r.Context(), req.Email, req.Purpose); err != nil {
		h.handleError(w, r, "send otp", err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type verifyOTPRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// VerifyOTP проверяет одноразовый код и выпускает токен.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.service.VerifyOTP(r.Context(), service.VerifyOTPInput{
		Email:    req.Email,
		Code:     req.Code,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.handleError(w, r, "verify otp", err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true, Token: res.Token, UID: res.User.ID})
}

func currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authorization token is required")
		return "", false
	}
	return userID, true
}
