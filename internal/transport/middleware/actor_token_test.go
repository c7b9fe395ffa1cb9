// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/civicflow/approvals/internal/auth"
	"github.com/civicflow/approvals/internal/domain"
	"github.com/google/uuid"
)

type mockResolver struct {
	actor auth.Actor
	found bool
	err   error

	gotToken string
}

func (m *mockResolver) ResolveToken(_ context.Context, token string) (auth.Actor, bool, error) {
	m.gotToken = token
	return m.actor, m.found, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler(sawActor *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ActorFromContext(r.Context()); ok {
			*sawActor = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestActorTokenAuthRejectsMissingHeader(t *testing.T) {
	resolver := &mockResolver{}
	handler := ActorTokenAuth(resolver, discardLogger())(okHandler(new(bool)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/entities/challenge", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatal("expected WWW-Authenticate header")
	}
	if resolver.gotToken != "" {
		t.Fatal("resolver must not be called without a bearer token")
	}
}

func TestActorTokenAuthRejectsUnknownToken(t *testing.T) {
	resolver := &mockResolver{found: false}
	handler := ActorTokenAuth(resolver, discardLogger())(okHandler(new(bool)))

	req := httptest.NewRequest(http.MethodGet, "/entities/challenge", nil)
	req.Header.Set("Authorization", "Bearer at_live_deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if resolver.gotToken != "at_live_deadbeef" {
		t.Fatalf("resolver got wrong token: %q", resolver.gotToken)
	}
}

func TestActorTokenAuthResolverError(t *testing.T) {
	resolver := &mockResolver{err: errors.New("db down")}
	handler := ActorTokenAuth(resolver, discardLogger())(okHandler(new(bool)))

	req := httptest.NewRequest(http.MethodGet, "/entities/challenge", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}

func TestActorTokenAuthStoresActorOnContext(t *testing.T) {
	resolver := &mockResolver{
		actor: auth.Actor{
			TokenID:           uuid.New(),
			Email:             "expert@city.gov",
			Role:              domain.RoleSectorExpert,
			MaxRequestsPerMin: 60,
		},
		found: true,
	}
	var sawActor bool
	handler := ActorTokenAuth(resolver, discardLogger())(okHandler(&sawActor))

	req := httptest.NewRequest(http.MethodGet, "/entities/challenge", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !sawActor {
		t.Fatal("expected actor on request context")
	}
	if rec.Header().Get(headerRateLimitLimit) != "60" {
		t.Fatalf("unexpected limit header: %q", rec.Header().Get(headerRateLimitLimit))
	}
}

func TestActorTokenAuthExemptPaths(t *testing.T) {
	resolver := &mockResolver{}
	handler := ActorTokenAuth(resolver, discardLogger())(okHandler(new(bool)))

	for _, path := range []string{"/healthz", "/metrics", "/version"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
	}
	if resolver.gotToken != "" {
		t.Fatal("resolver must not be called on exempt paths")
	}
}

func TestActorTokenAuthRateLimitExceeded(t *testing.T) {
	resolver := &mockResolver{
		actor: auth.Actor{
			TokenID:           uuid.New(),
			Email:             "lead@city.gov",
			Role:              domain.RoleMunicipalityLead,
			MaxRequestsPerMin: 2,
		},
		found: true,
	}
	handler := ActorTokenAuth(resolver, discardLogger())(okHandler(new(bool)))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/entities/challenge", nil)
		req.Header.Set("Authorization", "Bearer tok")
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third request got %d", last.Code)
	}
	if last.Header().Get(headerRetryAfter) == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
		{"Bearer", "", false},
	}
	for _, tc := range cases {
		token, ok := bearerToken(tc.header)
		if ok != tc.ok || token != tc.token {
			t.Fatalf("bearerToken(%q) = (%q, %v), want (%q, %v)", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}

func TestRateLimiterRefill(t *testing.T) {
	limiter := newInMemoryRateLimiter()
	id := uuid.New()
	base := time.Now()

	d := limiter.Allow(id, 60, base)
	if !d.Allowed || d.Remaining != 59 {
		t.Fatalf("first call: %+v", d)
	}

	for i := 0; i < 59; i++ {
		limiter.Allow(id, 60, base)
	}
	d = limiter.Allow(id, 60, base)
	if d.Allowed {
		t.Fatal("expected bucket exhausted")
	}
	if d.RetryAfterSeconds < 1 {
		t.Fatalf("expected positive retry-after, got %d", d.RetryAfterSeconds)
	}

	d = limiter.Allow(id, 60, base.Add(2*time.Second))
	if !d.Allowed {
		t.Fatal("expected refill after two seconds")
	}
}
