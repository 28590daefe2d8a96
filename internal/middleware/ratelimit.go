package middleware

import (
	"context"
	"net"
	"net/http"

	"go.uber.org/zap"
)

// Limiter решает, можно ли обслужить ещё один запрос с данным ключом.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit ограничивает частоту запросов по IP клиента. При недоступности хранилища
// лимитера запрос пропускается.
func RateLimit(limiter Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
