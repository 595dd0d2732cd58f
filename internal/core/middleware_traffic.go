package core

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"wellness/internal/types"
)

// RateLimit limits authenticated users to limit requests per window for the
// named scope. It must run after AuthMiddleware.
//
// Every checked response carries X-RateLimit-Limit, X-RateLimit-Remaining
// and X-RateLimit-Reset; 429 responses add Retry-After.
//
// Without a RateLimitStore, or when the store errors, requests pass through.
func (s *Server) RateLimit(scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.RateLimitStore == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			actor, ok := types.GetActor(r.Context())
			if !ok || actor.ID == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := s.RateLimitStore.IncrementAndCheck(r.Context(), scope+":"+actor.ID, limit, window)
			if err != nil {
				s.Logger.Error("rate limit store error",
					slog.String("scope", scope),
					slog.String("user_id", actor.ID),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, limit, result)

			if !result.Allowed {
				s.Logger.Warn("rate limit exceeded",
					slog.String("scope", scope),
					slog.String("user_id", actor.ID),
					slog.String("path", r.URL.Path),
				)
				retryAfter := int(time.Until(result.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				Error(w, r, types.NewAppError(types.ErrCodeRateLimit, "Rate limit exceeded. Please retry after the reset time.", nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, result RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
