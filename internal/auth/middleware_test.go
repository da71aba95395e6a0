package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticAPIKeyValidatorParsing(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:agency-a:analyst, k2:agency-b:admin|analyst")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	if validator.Len() != 2 {
		t.Fatalf("Len() = %d", validator.Len())
	}
	identity, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("expected key to be valid")
	}
	if identity.TenantID != "agency-a" {
		t.Fatalf("TenantID = %q", identity.TenantID)
	}
	if !identity.HasRole(RoleAnalyst) || identity.HasRole(RoleAdmin) {
		t.Fatalf("Roles = %v", identity.Roles)
	}

	admin, _ := validator.Validate(context.Background(), "k2")
	if len(admin.Roles) != 2 || admin.Roles[0] != RoleAdmin {
		t.Fatalf("admin Roles = %v", admin.Roles)
	}
}

func TestAdminImpliesEveryRole(t *testing.T) {
	identity := Identity{TenantID: "t", Roles: []string{RoleAdmin}}
	if !identity.HasRole(RoleAnalyst) {
		t.Fatal("admin should satisfy analyst")
	}
}

func TestStaticAPIKeyValidatorRejectsBadEntries(t *testing.T) {
	for _, entries := range []string{
		"invalid",
		"k1:tenant",
		"k1::analyst",
		"k1:tenant:",
		"k1:tenant:superuser",
		"k1:t:analyst:extra",
		"k1:t1:analyst,k1:t2:analyst",
	} {
		if _, err := NewStaticAPIKeyValidator(entries); err == nil {
			t.Fatalf("NewStaticAPIKeyValidator(%q) expected error", entries)
		}
	}
}

func TestStaticAPIKeyValidatorEmptyList(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("  ")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	if _, ok := validator.Validate(context.Background(), ""); ok {
		t.Fatal("empty key must not validate")
	}
}

func TestMiddlewareRequiresKey(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:t1:analyst")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	bad := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	bad.Header.Set("Authorization", "Bearer nope")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, bad)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad key status = %d", rr.Code)
	}
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:t1:analyst")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(nil, validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		if identity.TenantID != "t1" {
			t.Fatalf("TenantID = %q", identity.TenantID)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer k1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	analyst := httptest.NewRequest(http.MethodGet, "/v1/sessions/x", nil)
	analyst = analyst.WithContext(WithIdentity(analyst.Context(), Identity{TenantID: "t", Roles: []string{RoleAnalyst}}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, analyst)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("analyst status = %d", rr.Code)
	}

	anonymous := httptest.NewRecorder()
	handler.ServeHTTP(anonymous, httptest.NewRequest(http.MethodGet, "/v1/sessions/x", nil))
	if anonymous.Code != http.StatusNoContent {
		t.Fatalf("anonymous status = %d", anonymous.Code)
	}
}
