package core

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"wellness/internal/types"
)

// AuthMiddleware requires a valid session bearer token.
//
//  1. Extracts the Bearer token from the Authorization header.
//  2. Resolves it through the Authenticator.
//  3. Injects the Actor into the request context.
//
// Failures return 401 with auth_token_missing, auth_token_invalid or
// auth_session_expired. When no Authenticator is configured every request is
// rejected.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer token is required")
			return
		}

		if s.Authenticator == nil {
			s.Logger.Error("authentication requested but no authenticator is configured")
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Authentication failed")
			return
		}

		actor, err := s.Authenticator.ResolveToken(r.Context(), token)
		if err != nil {
			s.handleAuthError(w, r, err)
			return
		}
		if actor == nil {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid authentication token")
			return
		}

		ctx := types.WithActor(r.Context(), *actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CronSecretMiddleware admits only requests carrying
// "Authorization: Bearer <secret>". The comparison is constant-time. An
// empty secret rejects everything.
func (s *Server) CronSecretMiddleware(secret types.SecretString) func(http.Handler) http.Handler {
	expected := []byte(secret.Unmask())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r.Header.Get("Authorization"))
			if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
				s.Logger.Warn("cron request rejected",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				s.writeAuthError(w, r, types.ErrCodeAuthCronSecret, "Unauthorized")
				return
			}

			ctx := types.WithActor(r.Context(), types.Actor{ID: "cron", Type: types.ActorTypeSystem, Source: "cron"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken returns the token from "Bearer <token>" (scheme is
// case-insensitive per RFC 7235), or "" when the header is malformed.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

// handleAuthError maps an Authenticator error to a 401. Unexpected errors
// are logged and reported as a 500 so that a database outage does not look
// like a bad token to the client.
func (s *Server) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeAuthSessionExpired:
			s.writeAuthError(w, r, types.ErrCodeAuthSessionExpired, "Session has expired")
			return
		case types.ErrCodeAuthTokenInvalid, types.ErrCodeAuthTokenMissing:
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid authentication token")
			return
		}
	}

	s.Logger.Error("authentication failed: unexpected error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	Error(w, r, err)
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	Error(w, r, types.NewAppError(code, message, nil))
}
