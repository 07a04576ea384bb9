// Package eventlog is the audit trail of the registry: one immutable,
// totally ordered entry per successful mutation. External observers can
// replay the log to reconstruct registry state without polling the store.
package eventlog

import (
	"time"

	"github.com/studioKjm/hip-registry/internal/ids"
)

// Kind tags the mutation that produced an event.
type Kind string

const (
	KindRegistered          Kind = "identity.registered"
	KindContentUpdated      Kind = "identity.content_updated"
	KindVerificationChanged Kind = "identity.verification_changed"
	KindReputationChanged   Kind = "identity.reputation_changed"
	KindInteractionRecorded Kind = "identity.interaction_recorded"
)

// Event is a single log entry. Sequence is assigned on append and is
// strictly increasing from 1; Data carries the variant-specific fields.
type Event struct {
	Sequence uint64         `json:"sequence"`
	ID       string         `json:"id"`
	Kind     Kind           `json:"kind"`
	HipID    string         `json:"hip_id"`
	At       time.Time      `json:"at"`
	Data     map[string]any `json:"data"`
}

// Registered records a new identity with its initial content pointer.
func Registered(hipID, owner, pointer string, at time.Time) Event {
	return Event{Kind: KindRegistered, HipID: hipID, At: at, Data: map[string]any{
		"owner":           owner,
		"content_pointer": pointer,
	}}
}

// ContentUpdated records an owner changing the content pointer.
func ContentUpdated(hipID, pointer string, at time.Time) Event {
	return Event{Kind: KindContentUpdated, HipID: hipID, At: at, Data: map[string]any{
		"new_pointer": pointer,
	}}
}

// VerificationChanged records an admin setting the verification flag.
func VerificationChanged(hipID string, verified bool, at time.Time) Event {
	return Event{Kind: KindVerificationChanged, HipID: hipID, At: at, Data: map[string]any{
		"is_verified": verified,
	}}
}

// ReputationChanged records a trust tier transition.
func ReputationChanged(hipID string, previous, level int, at time.Time) Event {
	return Event{Kind: KindReputationChanged, HipID: hipID, At: at, Data: map[string]any{
		"previous_level": previous,
		"new_level":      level,
	}}
}

// InteractionRecorded records an interaction counter increment.
func InteractionRecorded(hipID string, total uint64, at time.Time) Event {
	return Event{Kind: KindInteractionRecorded, HipID: hipID, At: at, Data: map[string]any{
		"new_total": total,
	}}
}

// Log retains events in append order and fans them out to live
// subscribers. Append is not synchronized; the registry service calls it
// inside the same critical section that guards the store, which is what
// gives the log its total order.
type Log struct {
	seq    uint64
	events []Event
	hub    *Hub
}

// NewLog returns an empty log publishing to the given hub (nil disables
// the live feed).
func NewLog(hub *Hub) *Log {
	return &Log{hub: hub}
}

// Append assigns the next sequence number and a sortable event id, retains
// the entry, and publishes it to live subscribers.
func (l *Log) Append(e Event) Event {
	l.seq++
	e.Sequence = l.seq
	e.ID = ids.New()
	l.events = append(l.events, e)
	if l.hub != nil {
		l.hub.Publish(e)
	}
	return e
}

// List returns up to limit events with Sequence > afterSeq and the cursor
// for the next page.
func (l *Log) List(limit int, afterSeq uint64) ([]Event, uint64) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var res []Event
	var last uint64
	for _, e := range l.events {
		if e.Sequence <= afterSeq {
			continue
		}
		res = append(res, e)
		last = e.Sequence
		if len(res) >= limit {
			break
		}
	}
	return res, last
}

// Len reports the number of retained events.
func (l *Log) Len() int { return len(l.events) }
