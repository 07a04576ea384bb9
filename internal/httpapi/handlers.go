package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/studioKjm/hip-registry/internal/eventlog"
	"github.com/studioKjm/hip-registry/internal/obs"
	"github.com/studioKjm/hip-registry/internal/registry"
)

const serviceName = "hip-registry-api"

// ReadyProbe reports readiness (for example by pinging the database).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options tunes the HTTP surface. Zero values fall back to safe defaults.
type Options struct {
	AdminAddress    string
	AdminSecretHash string
	RateBurst       int
	RatePerSec      int
	MaxBodyBytes    int64
}

// API is the HTTP layer over the registry service.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	registry   registry.Service
	hub        *eventlog.Hub

	adminAddress    string
	adminSecretHash string
	rateBurst       int
	ratePerSec      int
	maxBodyBytes    int64
}

func New(rp ReadyProbe, version string, reg registry.Service, hub *eventlog.Hub, opts Options) *API {
	a := &API{
		mux:             http.NewServeMux(),
		readyProbe:      rp,
		version:         version,
		registry:        reg,
		hub:             hub,
		adminAddress:    opts.AdminAddress,
		adminSecretHash: opts.AdminSecretHash,
		rateBurst:       opts.RateBurst,
		ratePerSec:      opts.RatePerSec,
		maxBodyBytes:    opts.MaxBodyBytes,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	// registry
	a.mux.HandleFunc("/v1/identities", a.handleIdentitiesCollection)
	a.mux.HandleFunc("/v1/identities/", a.handleIdentityResource)
	a.mux.HandleFunc("/v1/owners/", a.handleOwnerLookup)

	// event log
	a.mux.HandleFunc("/v1/events", a.handleEvents)
	a.mux.HandleFunc("/v1/events/stream", a.Stream)
	a.mux.HandleFunc("/v1/events/ws", a.StreamWS)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
