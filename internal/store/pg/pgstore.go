// Package pg provides the durable Postgres implementation of the registry
// service. The same invariants the in-memory registry enforces with its
// critical section are held here with serializable transactions: a write
// validates, mutates and appends its event inside one transaction, so a
// rejected operation leaves no trace and the events table carries the
// commit order.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/studioKjm/hip-registry/internal/eventlog"
	"github.com/studioKjm/hip-registry/internal/ids"
	"github.com/studioKjm/hip-registry/internal/registry"
)

type Store struct {
	db   *sql.DB
	gate registry.Gate
	hub  *eventlog.Hub
}

var _ registry.Service = (*Store)(nil)

// Open connects to Postgres with tuned pool defaults.
func Open(dsn string, gate registry.Gate, hub *eventlog.Hub) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db, gate: gate, hub: hub}, nil
}

// NewWithDB wraps an existing handle (used by tests).
func NewWithDB(db *sql.DB, gate registry.Gate, hub *eventlog.Hub) *Store {
	return &Store{db: db, gate: gate, hub: hub}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Register(ctx context.Context, hipID, owner, contentPointer string) (registry.Identity, error) {
	hipID = strings.TrimSpace(hipID)
	owner = strings.TrimSpace(owner)
	if hipID == "" || len(hipID) > 128 || owner == "" || len(owner) > 128 {
		return registry.Identity{}, registry.ErrInvalidInput
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return registry.Identity{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `select 1 from identities where hip_id=$1`, hipID).Scan(&exists)
	if err == nil {
		return registry.Identity{}, registry.ErrDuplicateKey
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return registry.Identity{}, err
	}
	err = tx.QueryRowContext(ctx, `select 1 from identities where owner=$1`, owner).Scan(&exists)
	if err == nil {
		return registry.Identity{}, registry.ErrOwnerRegistered
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return registry.Identity{}, err
	}

	now := time.Now().UTC()
	rec := registry.Identity{
		HipID:           hipID,
		Owner:           owner,
		ContentPointer:  contentPointer,
		ReputationLevel: registry.MinReputation,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := tx.ExecContext(ctx, `
		insert into identities(hip_id, owner, content_pointer, is_verified, reputation_level, total_interactions, created_at, updated_at)
		values ($1,$2,$3,false,$4,0,$5,$5)
	`, hipID, owner, contentPointer, registry.MinReputation, now); err != nil {
		return registry.Identity{}, err
	}

	event, err := s.appendEvent(ctx, tx, eventlog.Registered(hipID, owner, contentPointer, now))
	if err != nil {
		return registry.Identity{}, err
	}
	if err := tx.Commit(); err != nil {
		return registry.Identity{}, err
	}
	s.publish(event)
	return rec, nil
}

func (s *Store) UpdateContent(ctx context.Context, hipID, caller, pointer string) (registry.Identity, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return registry.Identity{}, err
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := lockIdentity(ctx, tx, hipID)
	if err != nil {
		return registry.Identity{}, err
	}
	if err := s.gate.Owner(caller, rec.Owner); err != nil {
		return registry.Identity{}, err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		update identities set content_pointer=$2, updated_at=$3 where hip_id=$1
	`, hipID, pointer, now); err != nil {
		return registry.Identity{}, err
	}
	rec.ContentPointer = pointer
	rec.UpdatedAt = now

	event, err := s.appendEvent(ctx, tx, eventlog.ContentUpdated(hipID, pointer, now))
	if err != nil {
		return registry.Identity{}, err
	}
	if err := tx.Commit(); err != nil {
		return registry.Identity{}, err
	}
	s.publish(event)
	return rec, nil
}

func (s *Store) SetVerified(ctx context.Context, hipID, caller string, verified bool) (registry.Identity, error) {
	if err := s.gate.Admin(caller); err != nil {
		return registry.Identity{}, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return registry.Identity{}, err
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := lockIdentity(ctx, tx, hipID)
	if err != nil {
		return registry.Identity{}, err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		update identities set is_verified=$2, updated_at=$3 where hip_id=$1
	`, hipID, verified, now); err != nil {
		return registry.Identity{}, err
	}
	rec.IsVerified = verified
	rec.UpdatedAt = now

	event, err := s.appendEvent(ctx, tx, eventlog.VerificationChanged(hipID, verified, now))
	if err != nil {
		return registry.Identity{}, err
	}
	if err := tx.Commit(); err != nil {
		return registry.Identity{}, err
	}
	s.publish(event)
	return rec, nil
}

func (s *Store) SetReputation(ctx context.Context, hipID, caller string, level int) (registry.Identity, error) {
	if err := s.gate.Admin(caller); err != nil {
		return registry.Identity{}, err
	}
	if level < registry.MinReputation || level > registry.MaxReputation {
		return registry.Identity{}, registry.ErrReputationRange
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return registry.Identity{}, err
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := lockIdentity(ctx, tx, hipID)
	if err != nil {
		return registry.Identity{}, err
	}
	prev := rec.ReputationLevel

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		update identities set reputation_level=$2, updated_at=$3 where hip_id=$1
	`, hipID, level, now); err != nil {
		return registry.Identity{}, err
	}
	rec.ReputationLevel = level
	rec.UpdatedAt = now

	event, err := s.appendEvent(ctx, tx, eventlog.ReputationChanged(hipID, prev, level, now))
	if err != nil {
		return registry.Identity{}, err
	}
	if err := tx.Commit(); err != nil {
		return registry.Identity{}, err
	}
	s.publish(event)
	return rec, nil
}

func (s *Store) RecordInteraction(ctx context.Context, hipID, caller string) (uint64, error) {
	if err := s.gate.Admin(caller); err != nil {
		return 0, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	var total uint64
	err = tx.QueryRowContext(ctx, `
		update identities set total_interactions = total_interactions + 1, updated_at=$2
		where hip_id=$1
		returning total_interactions
	`, hipID, now).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, registry.ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	event, err := s.appendEvent(ctx, tx, eventlog.InteractionRecorded(hipID, total, now))
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	s.publish(event)
	return total, nil
}

func (s *Store) Get(ctx context.Context, hipID string) (registry.Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx, `
		select hip_id, owner, content_pointer, is_verified, reputation_level, total_interactions, created_at, updated_at
		from identities where hip_id=$1
	`, hipID))
}

func (s *Store) GetByOwner(ctx context.Context, owner string) (string, error) {
	var hipID string
	err := s.db.QueryRowContext(ctx, `select hip_id from identities where owner=$1`, owner).Scan(&hipID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", registry.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return hipID, nil
}

func (s *Store) GetByIndex(ctx context.Context, index int) (string, error) {
	if index < 0 {
		return "", registry.ErrIndexOutOfRange
	}
	var hipID string
	err := s.db.QueryRowContext(ctx, `
		select hip_id from identities order by position offset $1 limit 1
	`, index).Scan(&hipID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", registry.ErrIndexOutOfRange
	}
	if err != nil {
		return "", err
	}
	return hipID, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `select count(*) from identities`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) ListEvents(ctx context.Context, limit int, afterSeq uint64) ([]eventlog.Event, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select sequence, event_id, kind, hip_id, data, occurred_at
		from registry_events where sequence > $1 order by sequence limit $2
	`, afterSeq, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []eventlog.Event
	var last uint64
	for rows.Next() {
		var e eventlog.Event
		var kind string
		var data []byte
		if err := rows.Scan(&e.Sequence, &e.ID, &kind, &e.HipID, &data, &e.At); err != nil {
			return nil, 0, err
		}
		e.Kind = eventlog.Kind(kind)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, 0, err
			}
		}
		items = append(items, e)
		last = e.Sequence
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, last, nil
}

// Helpers -----------------------------------------------------------------

func (s *Store) begin(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// appendEvent writes the event row inside the caller's transaction; the
// sequence comes from the events table so the log carries commit order.
func (s *Store) appendEvent(ctx context.Context, tx *sql.Tx, e eventlog.Event) (eventlog.Event, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return eventlog.Event{}, err
	}
	e.ID = ids.New()
	err = tx.QueryRowContext(ctx, `
		insert into registry_events(event_id, kind, hip_id, data, occurred_at)
		values ($1,$2,$3,$4,$5)
		returning sequence
	`, e.ID, string(e.Kind), e.HipID, data, e.At).Scan(&e.Sequence)
	if err != nil {
		return eventlog.Event{}, err
	}
	return e, nil
}

func (s *Store) publish(e eventlog.Event) {
	if s.hub != nil {
		s.hub.Publish(e)
	}
}

// lockIdentity loads and row-locks a record for update.
func lockIdentity(ctx context.Context, tx *sql.Tx, hipID string) (registry.Identity, error) {
	return scanIdentity(tx.QueryRowContext(ctx, `
		select hip_id, owner, content_pointer, is_verified, reputation_level, total_interactions, created_at, updated_at
		from identities where hip_id=$1 for update
	`, hipID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (registry.Identity, error) {
	var rec registry.Identity
	err := row.Scan(
		&rec.HipID,
		&rec.Owner,
		&rec.ContentPointer,
		&rec.IsVerified,
		&rec.ReputationLevel,
		&rec.TotalInteractions,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Identity{}, registry.ErrNotFound
	}
	if err != nil {
		return registry.Identity{}, err
	}
	return rec, nil
}
