package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/studioKjm/hip-registry/internal/auth"
)

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	handler := RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	req = req.WithContext(auth.ContextWithCaller(req.Context(), "addr-1", []string{"admin"}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRequireRoleRejectsMissingRole(t *testing.T) {
	handler := RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	req = req.WithContext(auth.ContextWithCaller(req.Context(), "addr-1", []string{"member"}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("expected WWW-Authenticate header set")
	}
}

func TestRequireRoleRejectsMissingCaller(t *testing.T) {
	handler := RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/internal", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestExtractBearerToken(t *testing.T) {
	if _, err := extractBearerToken(""); err == nil {
		t.Fatal("expected error for empty header")
	}
	if _, err := extractBearerToken("Basic abc"); err == nil {
		t.Fatal("expected error for wrong scheme")
	}
	if _, err := extractBearerToken("Bearer   "); err == nil {
		t.Fatal("expected error for blank token")
	}
	token, err := extractBearerToken("bearer abc.def.ghi")
	if err != nil || token != "abc.def.ghi" {
		t.Fatalf("unexpected result: %q %v", token, err)
	}
}

func TestPublicPathClassification(t *testing.T) {
	public := [][2]string{
		{http.MethodGet, "/healthz"},
		{http.MethodGet, "/v1/identities"},
		{http.MethodGet, "/v1/identities/HIP-1"},
		{http.MethodGet, "/v1/owners/addr-a"},
		{http.MethodGet, "/v1/events/stream"},
		{http.MethodPost, "/v1/auth/token"},
	}
	for _, p := range public {
		if !isPublicPath(p[0], p[1]) {
			t.Fatalf("expected %s %s to be public", p[0], p[1])
		}
	}
	private := [][2]string{
		{http.MethodPost, "/v1/identities"},
		{http.MethodPut, "/v1/identities/HIP-1/content"},
		{http.MethodPut, "/v1/identities/HIP-1/verification"},
		{http.MethodPost, "/v1/identities/HIP-1/interactions"},
	}
	for _, p := range private {
		if isPublicPath(p[0], p[1]) {
			t.Fatalf("expected %s %s to require auth", p[0], p[1])
		}
	}
}
