package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/studioKjm/hip-registry/internal/eventlog"
)

const maxKeyLen = 128

// Service defines registry operations.
type Service interface {
	Register(ctx context.Context, hipID, owner, contentPointer string) (Identity, error)
	UpdateContent(ctx context.Context, hipID, caller, pointer string) (Identity, error)
	SetVerified(ctx context.Context, hipID, caller string, verified bool) (Identity, error)
	SetReputation(ctx context.Context, hipID, caller string, level int) (Identity, error)
	RecordInteraction(ctx context.Context, hipID, caller string) (uint64, error)
	Get(ctx context.Context, hipID string) (Identity, error)
	GetByOwner(ctx context.Context, owner string) (string, error)
	GetByIndex(ctx context.Context, index int) (string, error)
	Count(ctx context.Context) (int, error)
	ListEvents(ctx context.Context, limit int, afterSeq uint64) ([]eventlog.Event, uint64, error)
}

// InMemory implements Service with in-process concurrency safety. One
// mutex covers the store+event log pair: a write is authorized, applied,
// and logged as one unit, and an event never appears out of admission
// order. Reads may run concurrently but never observe a half-applied
// write.
// NOTE: Replace with durable storage later (see internal/store/pg).
type InMemory struct {
	mu    sync.RWMutex
	gate  Gate
	store *Store
	log   *eventlog.Log
}

// NewInMemory creates a fresh registry with the given admin gate. The hub
// may be nil when no live event feed is needed.
func NewInMemory(gate Gate, hub *eventlog.Hub) *InMemory {
	return &InMemory{
		gate:  gate,
		store: NewStore(),
		log:   eventlog.NewLog(hub),
	}
}

func (r *InMemory) Register(ctx context.Context, hipID, owner, contentPointer string) (Identity, error) {
	hipID = strings.TrimSpace(hipID)
	owner = strings.TrimSpace(owner)
	if hipID == "" || len(hipID) > maxKeyLen || owner == "" || len(owner) > maxKeyLen {
		return Identity{}, ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.store.Insert(hipID, owner, contentPointer, time.Now().UTC())
	if err != nil {
		return Identity{}, err
	}
	r.log.Append(eventlog.Registered(rec.HipID, rec.Owner, rec.ContentPointer, rec.UpdatedAt))
	return rec, nil
}

func (r *InMemory) UpdateContent(ctx context.Context, hipID, caller, pointer string) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.store.SetContentPointer(hipID, caller, pointer, time.Now().UTC())
	if err != nil {
		return Identity{}, err
	}
	r.log.Append(eventlog.ContentUpdated(rec.HipID, rec.ContentPointer, rec.UpdatedAt))
	return rec, nil
}

func (r *InMemory) SetVerified(ctx context.Context, hipID, caller string, verified bool) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.gate.Admin(caller); err != nil {
		return Identity{}, err
	}
	rec, err := r.store.SetVerified(hipID, verified, time.Now().UTC())
	if err != nil {
		return Identity{}, err
	}
	r.log.Append(eventlog.VerificationChanged(rec.HipID, rec.IsVerified, rec.UpdatedAt))
	return rec, nil
}

func (r *InMemory) SetReputation(ctx context.Context, hipID, caller string, level int) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.gate.Admin(caller); err != nil {
		return Identity{}, err
	}
	rec, prev, err := r.store.SetReputation(hipID, level, time.Now().UTC())
	if err != nil {
		return Identity{}, err
	}
	r.log.Append(eventlog.ReputationChanged(rec.HipID, prev, rec.ReputationLevel, rec.UpdatedAt))
	return rec, nil
}

func (r *InMemory) RecordInteraction(ctx context.Context, hipID, caller string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.gate.Admin(caller); err != nil {
		return 0, err
	}
	rec, err := r.store.IncrementInteractions(hipID, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	r.log.Append(eventlog.InteractionRecorded(rec.HipID, rec.TotalInteractions, rec.UpdatedAt))
	return rec.TotalInteractions, nil
}

func (r *InMemory) Get(ctx context.Context, hipID string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.store.Get(hipID)
	if !ok {
		return Identity{}, ErrNotFound
	}
	return rec, nil
}

func (r *InMemory) GetByOwner(ctx context.Context, owner string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.store.GetByOwner(owner)
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (r *InMemory) GetByIndex(ctx context.Context, index int) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.GetByIndex(index)
}

func (r *InMemory) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Count(), nil
}

func (r *InMemory) ListEvents(ctx context.Context, limit int, afterSeq uint64) ([]eventlog.Event, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items, next := r.log.List(limit, afterSeq)
	return items, next, nil
}
