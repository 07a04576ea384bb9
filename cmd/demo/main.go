package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/studioKjm/hip-registry/internal/registry"
	"github.com/studioKjm/hip-registry/internal/registry/remote"
	"github.com/studioKjm/hip-registry/internal/sim"
)

func main() {
	var (
		baseURL  = flag.String("base-url", "http://localhost:8080", "API base URL")
		workers  = flag.Int("workers", 4, "Concurrent worker count")
		duration = flag.Duration("duration", time.Minute, "Duration of the simulation")
		seed     = flag.Int64("seed", 0, "Scenario seed (0 = time based)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	adminAddr := os.Getenv("HIP_ADMIN_ADDRESS")
	if adminAddr == "" {
		adminAddr = "addr-admin"
	}
	adminSecret := os.Getenv("HIP_ADMIN_SECRET")

	log.Printf("Launching registry demo: base=%s workers=%d duration=%s", *baseURL, *workers, *duration)

	admin := remote.New(*baseURL)
	if err := admin.Authenticate(ctx, adminAddr, adminSecret); err != nil {
		log.Fatalf("authenticate admin: %v", err)
	}

	generator := sim.NewGenerator(*seed)

	var counter sim.Counter
	var counterMu sync.Mutex

	// Each participant gets its own authenticated client; registrations
	// that already exist from a previous run are fine.
	members := make(map[string]*remote.Client)
	for _, p := range generator.Participants() {
		member := remote.New(*baseURL)
		if err := member.Authenticate(ctx, p.Address, ""); err != nil {
			log.Fatalf("authenticate %s: %v", p.Address, err)
		}
		members[p.Address] = member

		_, err := member.Register(ctx, p.HipID, p.Address, p.Pointer)
		switch {
		case err == nil:
			counterMu.Lock()
			counter.AddRegistration()
			counterMu.Unlock()
		case errors.Is(err, registry.ErrDuplicateKey), errors.Is(err, registry.ErrOwnerRegistered):
			// already onboarded
		default:
			log.Fatalf("register %s: %v", p.HipID, err)
		}
	}

	var successes int64
	var failures int64

	var genMu sync.Mutex
	nextAction := func() sim.Action {
		genMu.Lock()
		defer genMu.Unlock()
		return generator.NextAction()
	}

	var wg sync.WaitGroup
	deadline := time.Now().Add(*duration)

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id*9973)))
			for time.Now().Before(deadline) {
				select {
				case <-ctx.Done():
					return
				default:
				}

				action := nextAction()
				var err error
				switch action.Kind {
				case sim.ActionUpdateContent:
					_, err = members[action.Owner].UpdateContent(ctx, action.HipID, action.Owner, action.Pointer)
				case sim.ActionVerify:
					_, err = admin.SetVerified(ctx, action.HipID, adminAddr, true)
				case sim.ActionReputation:
					_, err = admin.SetReputation(ctx, action.HipID, adminAddr, action.Level)
				case sim.ActionInteraction:
					_, err = admin.RecordInteraction(ctx, action.HipID, adminAddr)
				}
				if err != nil {
					atomic.AddInt64(&failures, 1)
					log.Printf("worker %d %s %s: %v", id, action.Kind, action.HipID, err)
					time.Sleep(200 * time.Millisecond)
					continue
				}
				atomic.AddInt64(&successes, 1)
				counterMu.Lock()
				counter.Add(action)
				counterMu.Unlock()
				time.Sleep(time.Duration(50+rnd.Intn(120)) * time.Millisecond)
			}
		}(i)
	}

	wg.Wait()

	total, err := admin.Count(ctx)
	if err != nil {
		log.Printf("count: %v", err)
	}
	log.Printf("Run complete: %d success / %d failed across %d actions, %d identities registered",
		successes, failures, counter.Total(), total)
}
