package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wellness/internal/types"
)

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		auth       Authenticator
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{
			name:       "missing header",
			auth:       &MockAuthenticator{},
			wantStatus: http.StatusUnauthorized,
			wantCode:   types.ErrCodeAuthTokenMissing,
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc",
			auth:       &MockAuthenticator{},
			wantStatus: http.StatusUnauthorized,
			wantCode:   types.ErrCodeAuthTokenMissing,
		},
		{
			name:       "no authenticator configured",
			header:     "Bearer tok",
			wantStatus: http.StatusUnauthorized,
			wantCode:   types.ErrCodeAuthTokenInvalid,
		},
		{
			name:       "invalid token",
			header:     "Bearer tok",
			auth:       &MockAuthenticator{Err: types.NewAppError(types.ErrCodeAuthTokenInvalid, "nope", nil)},
			wantStatus: http.StatusUnauthorized,
			wantCode:   types.ErrCodeAuthTokenInvalid,
		},
		{
			name:       "expired session",
			header:     "Bearer tok",
			auth:       &MockAuthenticator{Err: types.NewAppError(types.ErrCodeAuthSessionExpired, "old", nil)},
			wantStatus: http.StatusUnauthorized,
			wantCode:   types.ErrCodeAuthSessionExpired,
		},
		{
			name:       "store failure is a 500",
			header:     "Bearer tok",
			auth:       &MockAuthenticator{Err: types.NewAppError(types.ErrCodeInternalDB, "db down", errors.New("conn refused"))},
			wantStatus: http.StatusInternalServerError,
			wantCode:   types.ErrCodeInternalDB,
		},
		{
			name:       "nil actor",
			header:     "Bearer tok",
			auth:       &MockAuthenticator{},
			wantStatus: http.StatusUnauthorized,
			wantCode:   types.ErrCodeAuthTokenInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			srv.Authenticator = tt.auth

			req := httptest.NewRequest(http.MethodGet, "/api/alerts/preferences", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.AuthMiddleware(okHandler).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if got := decodeError(t, rec).Code; got != string(tt.wantCode) {
				t.Errorf("expected code %s, got %s", tt.wantCode, got)
			}
		})
	}
}

func TestAuthMiddleware_InjectsActor(t *testing.T) {
	srv := newTestServer(t)
	mock := &MockAuthenticator{Actor: &types.Actor{ID: "user-1", Type: types.ActorTypeUser, Source: "session"}}
	srv.Authenticator = mock

	var got types.Actor
	h := srv.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = types.GetActor(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer  session-token ")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.ID != "user-1" {
		t.Errorf("actor not injected, got %+v", got)
	}
	if len(mock.Calls) != 1 || mock.Calls[0] != "session-token" {
		t.Errorf("unexpected token passed to authenticator: %v", mock.Calls)
	}
}

func TestCronSecretMiddleware(t *testing.T) {
	srv := newTestServer(t)
	secret := srv.Config.Security.CronSecret

	var actor types.Actor
	h := srv.CronSecretMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ = types.GetActor(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	for _, header := range []string{"", "Bearer wrong", "Bearer " + secret.Unmask() + "x", secret.Unmask()} {
		req := httptest.NewRequest(http.MethodGet, "/api/cron/alerts", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rec.Code)
			continue
		}
		if code := decodeError(t, rec).Code; code != string(types.ErrCodeAuthCronSecret) {
			t.Errorf("header %q: unexpected code %s", header, code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/cron/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+secret.Unmask())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if actor.Type != types.ActorTypeSystem || actor.ID != "cron" {
		t.Errorf("unexpected actor %+v", actor)
	}
}

func TestCronSecretMiddleware_EmptySecretRejects(t *testing.T) {
	srv := newTestServer(t)
	h := srv.CronSecretMiddleware("")(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func withActor(req *http.Request, id string) *http.Request {
	return req.WithContext(types.WithActor(req.Context(), types.Actor{ID: id, Type: types.ActorTypeUser}))
}

func TestRateLimit(t *testing.T) {
	reset := time.Now().Add(30 * time.Second)

	t.Run("allowed sets headers", func(t *testing.T) {
		srv := newTestServer(t)
		store := &MockRateLimitStore{Result: RateLimitResult{Allowed: true, Remaining: 9, ResetAt: reset}}
		srv.RateLimitStore = store

		rec := httptest.NewRecorder()
		srv.RateLimit("xp", 10, time.Minute)(okHandler).ServeHTTP(rec, withActor(httptest.NewRequest(http.MethodPost, "/", nil), "u1"))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "10" || rec.Header().Get("X-RateLimit-Remaining") != "9" {
			t.Errorf("unexpected headers %v", rec.Header())
		}
		if len(store.Calls) != 1 || store.Calls[0].Key != "xp:u1" || store.Calls[0].Window != time.Minute {
			t.Errorf("unexpected store calls %+v", store.Calls)
		}
	})

	t.Run("denied returns 429", func(t *testing.T) {
		srv := newTestServer(t)
		srv.RateLimitStore = &MockRateLimitStore{Result: RateLimitResult{Allowed: false, ResetAt: reset}}

		rec := httptest.NewRecorder()
		srv.RateLimit("xp", 10, time.Minute)(okHandler).ServeHTTP(rec, withActor(httptest.NewRequest(http.MethodPost, "/", nil), "u1"))

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Error("Retry-After missing")
		}
		if code := decodeError(t, rec).Code; code != string(types.ErrCodeRateLimit) {
			t.Errorf("unexpected code %s", code)
		}
	})

	t.Run("store error fails open", func(t *testing.T) {
		srv := newTestServer(t)
		srv.RateLimitStore = &MockRateLimitStore{Err: errors.New("redis down")}

		rec := httptest.NewRecorder()
		srv.RateLimit("xp", 10, time.Minute)(okHandler).ServeHTTP(rec, withActor(httptest.NewRequest(http.MethodPost, "/", nil), "u1"))
		if rec.Code != http.StatusOK {
			t.Errorf("expected pass-through, got %d", rec.Code)
		}
	})

	t.Run("anonymous passes through", func(t *testing.T) {
		srv := newTestServer(t)
		store := &MockRateLimitStore{}
		srv.RateLimitStore = store

		rec := httptest.NewRecorder()
		srv.RateLimit("xp", 10, time.Minute)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusOK || len(store.Calls) != 0 {
			t.Errorf("expected unchecked pass-through, got %d with %d calls", rec.Code, len(store.Calls))
		}
	})
}

type stubProbe struct {
	name  string
	err   error
	block bool
}

func (p stubProbe) Name() string { return p.name }

func (p stubProbe) Check(ctx context.Context) error {
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.err
}

func TestHandleHealth(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		srv := newTestServer(t)
		srv.Config.Build.Version = "1.2.3"
		srv.HealthProbes = []HealthProbe{stubProbe{name: "postgres"}, stubProbe{name: "redis"}}

		rec := httptest.NewRecorder()
		srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body healthResponse
		decodeBody(t, rec, &body)
		if body.Version != "1.2.3" || body.Components["redis"].Status != "healthy" {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("one failing", func(t *testing.T) {
		srv := newTestServer(t)
		srv.HealthProbes = []HealthProbe{stubProbe{name: "postgres"}, stubProbe{name: "redis", err: errors.New("connection refused")}}

		rec := httptest.NewRecorder()
		srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		var body healthResponse
		decodeBody(t, rec, &body)
		if body.Status != "unhealthy" || body.Components["redis"].Message != "connection refused" {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("probe timeout", func(t *testing.T) {
		srv := newTestServer(t)
		srv.HealthProbes = []HealthProbe{stubProbe{name: "postgres", block: true}}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		rec := httptest.NewRecorder()
		srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil).WithContext(ctx))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}
