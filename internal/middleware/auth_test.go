package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/rewardex/backend/internal/models"
)

type stubValidator struct {
	principal models.Principal
	err       error
	gotToken  string
}

func (s *stubValidator) ValidateToken(_ context.Context, token string) (models.Principal, error) {
	s.gotToken = token
	return s.principal, s.err
}

func okHandler(captured *models.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFromCtx(r.Context()); ok && captured != nil {
			*captured = p
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	want := models.Principal{UserID: uuid.New(), Role: models.RoleUser}
	v := &stubValidator{principal: want}

	var got models.Principal
	h := Authenticate(v)(okHandler(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if v.gotToken != "tok-123" {
		t.Errorf("token passed to validator = %q", v.gotToken)
	}
	if got != want {
		t.Errorf("principal in context = %+v, want %+v", got, want)
	}
}

func TestAuthenticateMissingHeader(t *testing.T) {
	h := Authenticate(&stubValidator{})(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateBadToken(t *testing.T) {
	v := &stubValidator{err: errors.New("expired")}
	h := Authenticate(v)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	cases := []struct {
		name string
		role string
		want int
	}{
		{"admin passes", models.RoleAdmin, http.StatusOK},
		{"user forbidden", models.RoleUser, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := RequireAdmin(okHandler(nil))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			ctx := WithPrincipal(req.Context(), models.Principal{UserID: uuid.New(), Role: tc.role})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req.WithContext(ctx))

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestRequireAdminNoPrincipal(t *testing.T) {
	h := RequireAdmin(okHandler(nil))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireTrustScore(t *testing.T) {
	lookup := func(_ context.Context, _ uuid.UUID) (int, error) { return 40, nil }

	h := RequireTrustScore(lookup, 50)(okHandler(nil))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	ctx := WithPrincipal(req.Context(), models.Principal{UserID: uuid.New(), Role: models.RoleUser})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	h = RequireTrustScore(lookup, 30)(okHandler(nil))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequireTrustScoreLookupError(t *testing.T) {
	lookup := func(_ context.Context, _ uuid.UUID) (int, error) { return 0, errors.New("db down") }

	h := RequireTrustScore(lookup, 50)(okHandler(nil))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	ctx := WithPrincipal(req.Context(), models.Principal{UserID: uuid.New(), Role: models.RoleUser})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
