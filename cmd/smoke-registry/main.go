package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/studioKjm/hip-registry/internal/registry/remote"
)

func main() {
	baseURL := os.Getenv("HIP_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	adminAddr := os.Getenv("HIP_ADMIN_ADDRESS")
	if adminAddr == "" {
		adminAddr = "addr-admin"
	}
	adminSecret := os.Getenv("HIP_ADMIN_SECRET")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	suffix := rand.New(rand.NewSource(time.Now().UnixNano())).Int31()
	owner := fmt.Sprintf("addr-smoke-%d", suffix)
	hipID := fmt.Sprintf("HIP-smoke-%d", suffix)

	member := remote.New(baseURL)
	if err := member.Authenticate(ctx, owner, ""); err != nil {
		log.Fatalf("authenticate %s: %v", owner, err)
	}

	rec, err := member.Register(ctx, hipID, owner, "ipfs://smoke-v1")
	if err != nil {
		log.Fatalf("register: %v", err)
	}
	if rec.ReputationLevel != 1 || rec.IsVerified {
		log.Fatalf("unexpected registration defaults: %+v", rec)
	}

	if _, err := member.UpdateContent(ctx, hipID, owner, "ipfs://smoke-v2"); err != nil {
		log.Fatalf("update content: %v", err)
	}

	admin := remote.New(baseURL)
	if err := admin.Authenticate(ctx, adminAddr, adminSecret); err != nil {
		log.Fatalf("authenticate admin: %v", err)
	}
	if _, err := admin.SetVerified(ctx, hipID, adminAddr, true); err != nil {
		log.Fatalf("set verified: %v", err)
	}
	if _, err := admin.SetReputation(ctx, hipID, adminAddr, 3); err != nil {
		log.Fatalf("set reputation: %v", err)
	}
	total, err := admin.RecordInteraction(ctx, hipID, adminAddr)
	if err != nil {
		log.Fatalf("record interaction: %v", err)
	}

	got, err := member.Get(ctx, hipID)
	if err != nil {
		log.Fatalf("get: %v", err)
	}
	if got.ContentPointer != "ipfs://smoke-v2" || !got.IsVerified || got.ReputationLevel != 3 || got.TotalInteractions != total {
		log.Fatalf("state mismatch: %+v (total=%d)", got, total)
	}

	byOwner, err := member.GetByOwner(ctx, owner)
	if err != nil || byOwner != hipID {
		log.Fatalf("owner lookup failed: %q %v", byOwner, err)
	}
	count, err := member.Count(ctx)
	if err != nil || count < 1 {
		log.Fatalf("count failed: %d %v", count, err)
	}

	fmt.Printf("✅ registry smoke test passed: %s owned by %s (total identities: %d)\n", hipID, owner, count)
}
