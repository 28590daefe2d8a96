package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/ink-panels/internal/service"
)

// Me возвращает профиль текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, "get user", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

type updateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UpdateMe меняет имя пользователя и email текущего пользователя.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, service.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		h.handleError(w, r, "update profile", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// GetWishlist возвращает список желаемого текущего пользователя.
func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	ids, err := h.service.GetWishlist(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, "get wishlist", err)
		return
	}

	writeJSON(w, http.StatusOK, ids)
}

// AddToWishlist добавляет позицию в список желаемого.
func (h *Handler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	ids, err := h.service.AddToWishlist(r.Context(), userID, chi.URLParam(r, "mangaId"))
	if err != nil {
		h.handleError(w, r, "add to wishlist", err)
		return
	}

	writeJSON(w, http.StatusOK, ids)
}

// RemoveFromWishlist удаляет позицию из списка желаемого.
func (h *Handler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	ids, err := h.service.RemoveFromWishlist(r.Context(), userID, chi.URLParam(r, "mangaId"))
	if err != nil {
		h.handleError(w, r, "remove from wishlist", err)
		return
	}

	writeJSON(w, http.StatusOK, ids)
}
