package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/studioKjm/hip-registry/internal/config"
	"github.com/studioKjm/hip-registry/internal/eventlog"
	"github.com/studioKjm/hip-registry/internal/httpapi"
	"github.com/studioKjm/hip-registry/internal/obs"
	"github.com/studioKjm/hip-registry/internal/registry"
	"github.com/studioKjm/hip-registry/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	gate := registry.NewGate(cfg.AdminAddress)
	hub := eventlog.NewHub()

	// With a DSN the registry is durable; without one it runs in memory,
	// which is enough for demos and tests.
	var (
		svc registry.Service
		db  *sql.DB
	)
	if cfg.PGDSN != "" {
		store, err := pg.Open(cfg.PGDSN, gate, hub)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		svc = store
		db = store.DB()
	} else {
		svc = registry.NewInMemory(gate, hub)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, hub, httpapi.Options{
		AdminAddress:    cfg.AdminAddress,
		AdminSecretHash: cfg.AdminSecretHash,
		RateBurst:       cfg.RateBurst,
		RatePerSec:      cfg.RatePerSec,
		MaxBodyBytes:    cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting hip-registry-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
