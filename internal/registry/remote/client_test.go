package remote

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/studioKjm/hip-registry/internal/auth"
	"github.com/studioKjm/hip-registry/internal/eventlog"
	"github.com/studioKjm/hip-registry/internal/httpapi"
	"github.com/studioKjm/hip-registry/internal/registry"
)

const (
	testAdminAddr   = "addr-admin"
	testAdminSecret = "bootstrap-secret"
)

func newTestServer(t *testing.T) string {
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
	api := httpapi.New(httpapi.ReadyProbe{}, "test", reg, hub, httpapi.Options{
		AdminAddress:    testAdminAddr,
		AdminSecretHash: hash,
		RateBurst:       1000,
		RatePerSec:      1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestClientRoundTripAgainstServer(t *testing.T) {
	baseURL := newTestServer(t)
	ctx := context.Background()

	alice := New(baseURL)
	if err := alice.Authenticate(ctx, "addr-alice", ""); err != nil {
		t.Fatalf("authenticate alice: %v", err)
	}

	rec, err := alice.Register(ctx, "HIP-remote-1", "addr-alice", "ipfs://v1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if rec.Owner != "addr-alice" || rec.ReputationLevel != registry.MinReputation {
		t.Fatalf("unexpected record: %+v", rec)
	}

	rec, err = alice.UpdateContent(ctx, "HIP-remote-1", "addr-alice", "ipfs://v2")
	if err != nil {
		t.Fatalf("update content: %v", err)
	}
	if rec.ContentPointer != "ipfs://v2" {
		t.Fatalf("pointer not updated: %+v", rec)
	}

	admin := New(baseURL)
	if err := admin.Authenticate(ctx, testAdminAddr, testAdminSecret); err != nil {
		t.Fatalf("authenticate admin: %v", err)
	}
	if _, err := admin.SetVerified(ctx, "HIP-remote-1", testAdminAddr, true); err != nil {
		t.Fatalf("set verified: %v", err)
	}
	if _, err := admin.SetReputation(ctx, "HIP-remote-1", testAdminAddr, 4); err != nil {
		t.Fatalf("set reputation: %v", err)
	}
	total, err := admin.RecordInteraction(ctx, "HIP-remote-1", testAdminAddr)
	if err != nil {
		t.Fatalf("record interaction: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected total 1, got %d", total)
	}

	// Reads need no token.
	public := New(baseURL)
	got, err := public.Get(ctx, "HIP-remote-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsVerified || got.ReputationLevel != 4 || got.TotalInteractions != 1 {
		t.Fatalf("unexpected state: %+v", got)
	}
	if hipID, err := public.GetByOwner(ctx, "addr-alice"); err != nil || hipID != "HIP-remote-1" {
		t.Fatalf("get by owner: %q %v", hipID, err)
	}
	if hipID, err := public.GetByIndex(ctx, 0); err != nil || hipID != "HIP-remote-1" {
		t.Fatalf("get by index: %q %v", hipID, err)
	}
	if n, err := public.Count(ctx); err != nil || n != 1 {
		t.Fatalf("count: %d %v", n, err)
	}

	events, next, err := public.ListEvents(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 5 || next != 5 {
		t.Fatalf("expected 5 events, got %d (next=%d)", len(events), next)
	}
	if events[0].Kind != eventlog.KindRegistered {
		t.Fatalf("first event kind %q", events[0].Kind)
	}
}

func TestClientMapsSentinelErrors(t *testing.T) {
	baseURL := newTestServer(t)
	ctx := context.Background()

	alice := New(baseURL)
	if err := alice.Authenticate(ctx, "addr-alice", ""); err != nil {
		t.Fatalf("authenticate alice: %v", err)
	}
	if _, err := alice.Register(ctx, "HIP-dup", "addr-alice", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := alice.Register(ctx, "HIP-dup", "addr-alice", ""); !errors.Is(err, registry.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	if _, err := alice.SetVerified(ctx, "HIP-dup", "addr-alice", true); !errors.Is(err, registry.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := alice.Get(ctx, "HIP-missing"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := alice.GetByIndex(ctx, 99); !errors.Is(err, registry.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}

	admin := New(baseURL)
	if err := admin.Authenticate(ctx, testAdminAddr, testAdminSecret); err != nil {
		t.Fatalf("authenticate admin: %v", err)
	}
	if _, err := admin.SetReputation(ctx, "HIP-dup", testAdminAddr, 9); !errors.Is(err, registry.ErrReputationRange) {
		t.Fatalf("expected ErrReputationRange, got %v", err)
	}
}
