package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/ink-panels/internal/middleware"
	"github.com/mmeshcher/ink-panels/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware магазина.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Handle("/ws", h.WebSocket())

	r.Route("/api", func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)

		admin := func(r chi.Router) chi.Router {
			return r.With(h.authMiddleware.Middleware, custommiddleware.RequireRole(model.RoleAdmin))
		}

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RateLimit(h.authLimiter, h.logger))

				r.Post("/register", h.Register)
				r.Post("/login", h.Login)
				r.Post("/otp/send", h.SendOTP)
				r.Post("/otp/verify", h.VerifyOTP)
			})
			r.With(h.authMiddleware.Middleware).Get("/verify", h.Verify)
		})

		r.Route("/manga", func(r chi.Router) {
			r.Get("/", h.ListManga)
			r.Get("/{id}", h.GetManga)

			admin(r).Post("/", h.CreateManga)
			admin(r).Put("/{id}", h.UpdateManga)
			admin(r).Delete("/{id}", h.DeleteManga)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/webhook", h.PaymentWebhook)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Post("/", h.CreateOrder)
				r.Get("/my-orders", h.MyOrders)
			})

			admin(r).Put("/{id}/status", h.UpdateOrderStatus)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/me", h.Me)
			r.Put("/me", h.UpdateMe)
			r.Get("/wishlist", h.GetWishlist)
			r.Post("/wishlist/{mangaId}", h.AddToWishlist)
			r.Delete("/wishlist/{mangaId}", h.RemoveFromWishlist)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "route not found")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		})
	})

	r.NotFound(h.ServePage)

	return r
}
