package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/studioKjm/hip-registry/internal/auth"
	"github.com/studioKjm/hip-registry/internal/eventlog"
	"github.com/studioKjm/hip-registry/internal/registry"
)

const (
	testAdminAddr   = "addr-admin"
	testAdminSecret = "bootstrap-secret"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("HIP_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	hash, err := auth.HashBootstrapSecret(testAdminSecret)
	if err != nil {
		t.Fatalf("hash bootstrap secret: %v", err)
	}

	hub := eventlog.NewHub()
	reg := registry.NewInMemory(registry.NewGate(testAdminAddr), hub)
	api := New(ReadyProbe{}, "test", reg, hub, Options{
		AdminAddress:    testAdminAddr,
		AdminSecretHash: hash,
		RateBurst:       1000,
		RatePerSec:      1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(address string, adminSecret string) string {
	c.t.Helper()
	body := map[string]any{"address": address}
	if adminSecret != "" {
		body["admin_secret"] = adminSecret
	}
	resp := c.do(http.MethodPost, "/v1/auth/token", body, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestIdentityLifecycleFlow(t *testing.T) {
	c := newTestAPI(t)

	tokenA := c.obtainToken("addr-a", "")
	tokenB := c.obtainToken("addr-b", "")
	tokenAdmin := c.obtainToken(testAdminAddr, testAdminSecret)

	// Register HIP-1 as addr-a.
	resp := c.do(http.MethodPost, "/v1/identities", map[string]any{
		"hip_id":          "HIP-1",
		"content_pointer": "Qm111",
	}, bearerHeader(tokenA))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/v1/identities/HIP-1" {
		t.Fatalf("unexpected Location: %s", loc)
	}
	rec := decode[registry.Identity](t, resp)
	if rec.Owner != "addr-a" || rec.ReputationLevel != 1 || rec.IsVerified {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// Duplicate hip id by another caller conflicts.
	resp = c.do(http.MethodPost, "/v1/identities", map[string]any{
		"hip_id":          "HIP-1",
		"content_pointer": "Qm222",
	}, bearerHeader(tokenB))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Second identity for the same owner conflicts.
	resp = c.do(http.MethodPost, "/v1/identities", map[string]any{
		"hip_id":          "HIP-2",
		"content_pointer": "Qm333",
	}, bearerHeader(tokenA))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("owner re-register: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Public read, no token.
	resp = c.get("/v1/identities/HIP-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	got := decode[registry.Identity](t, resp)
	if got.HipID != "HIP-1" || got.ContentPointer != "Qm111" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	// Owner updates the content pointer.
	resp = c.do(http.MethodPut, "/v1/identities/HIP-1/content", map[string]any{
		"content_pointer": "Qm444",
	}, bearerHeader(tokenA))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update content: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// A different caller may not.
	resp = c.do(http.MethodPut, "/v1/identities/HIP-1/content", map[string]any{
		"content_pointer": "Qm555",
	}, bearerHeader(tokenB))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign update: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/identities/HIP-1", nil)
	got = decode[registry.Identity](t, resp)
	if got.ContentPointer != "Qm444" {
		t.Fatalf("rejected update changed pointer: %s", got.ContentPointer)
	}

	// Admin-only operations.
	resp = c.do(http.MethodPut, "/v1/identities/HIP-1/verification", map[string]any{
		"is_verified": true,
	}, bearerHeader(tokenA))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin verify: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPut, "/v1/identities/HIP-1/verification", map[string]any{
		"is_verified": true,
	}, bearerHeader(tokenAdmin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d", resp.StatusCode)
	}
	got = decode[registry.Identity](t, resp)
	if !got.IsVerified {
		t.Fatal("verification flag not set")
	}

	resp = c.do(http.MethodPut, "/v1/identities/HIP-1/reputation", map[string]any{
		"level": 3,
	}, bearerHeader(tokenAdmin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reputation: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPut, "/v1/identities/HIP-1/reputation", map[string]any{
		"level": 0,
	}, bearerHeader(tokenAdmin))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("reputation 0: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/identities/HIP-1", nil)
	got = decode[registry.Identity](t, resp)
	if got.ReputationLevel != 3 {
		t.Fatalf("rejected reputation changed level: %d", got.ReputationLevel)
	}

	resp = c.do(http.MethodPost, "/v1/identities/HIP-1/interactions", nil, bearerHeader(tokenAdmin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("interaction: expected 200, got %d", resp.StatusCode)
	}
	inter := decode[interactionResponse](t, resp)
	if inter.TotalInteractions != 1 {
		t.Fatalf("expected total 1, got %d", inter.TotalInteractions)
	}

	// Reverse lookup and enumeration.
	resp = c.get("/v1/owners/addr-a", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner lookup: expected 200, got %d", resp.StatusCode)
	}
	owner := decode[ownerResponse](t, resp)
	if owner.HipID != "HIP-1" {
		t.Fatalf("unexpected owner lookup: %+v", owner)
	}

	resp = c.get("/v1/identities", url.Values{"index": {"0"}})
	idx := decode[indexResponse](t, resp)
	if idx.HipID != "HIP-1" {
		t.Fatalf("unexpected index lookup: %+v", idx)
	}

	resp = c.get("/v1/identities", url.Values{"index": {"1"}})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("out-of-range index: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/identities", nil)
	list := decode[listIdentitiesResponse](t, resp)
	if list.Total != 1 || len(list.Items) != 1 {
		t.Fatalf("unexpected listing: total=%d items=%d", list.Total, len(list.Items))
	}

	// Event log reflects every successful mutation in order.
	resp = c.get("/v1/events", nil)
	events := decode[struct {
		Items     []eventlog.Event `json:"items"`
		NextAfter uint64           `json:"next_after"`
	}](t, resp)
	want := []eventlog.Kind{
		eventlog.KindRegistered,
		eventlog.KindContentUpdated,
		eventlog.KindVerificationChanged,
		eventlog.KindReputationChanged,
		eventlog.KindInteractionRecorded,
	}
	if len(events.Items) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events.Items))
	}
	for i, e := range events.Items {
		if e.Kind != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], e.Kind)
		}
	}
}

func TestWritesRequireToken(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodPost, "/v1/identities", map[string]any{
		"hip_id": "HIP-1",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/identities", map[string]any{
		"hip_id": "HIP-1",
	}, map[string]string{"Authorization": "Bearer not-a-token"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminTokenRequiresBootstrapSecret(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodPost, "/v1/auth/token", map[string]any{
		"address": testAdminAddr,
	}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without secret, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/auth/token", map[string]any{
		"address":      testAdminAddr,
		"admin_secret": "wrong",
	}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong secret, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	token := c.obtainToken(testAdminAddr, testAdminSecret)
	if token == "" {
		t.Fatal("expected admin token")
	}
}

func TestValidationErrors(t *testing.T) {
	c := newTestAPI(t)
	token := c.obtainToken("addr-a", "")

	resp := c.do(http.MethodPost, "/v1/identities", map[string]any{
		"hip_id": "  ",
	}, bearerHeader(token))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank hip_id: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/identities", map[string]any{
		"hip_id":  "HIP-1",
		"unknown": true,
	}, bearerHeader(token))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/identities", url.Values{"index": {"-2"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative index: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/identities/unknown-id", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthAndInfo(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["service"] != serviceName {
		t.Fatalf("unexpected service name: %v", body["service"])
	}

	resp = c.get("/readyz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
