package registry

import "time"

// Store holds identity records plus the owner and insertion-order indices.
// It enforces the data-level invariants (unique hip id, one identity per
// owner, reputation bounds, monotonic interaction counter) and nothing
// else: no locking, no events. Callers serialize access; in process that
// caller is InMemory, which wraps every operation in its critical section.
type Store struct {
	records map[string]*Identity
	byOwner map[string]string
	order   []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*Identity),
		byOwner: make(map[string]string),
	}
}

// Insert creates a record with default trust attributes. A failure leaves
// the store and both indices untouched.
func (s *Store) Insert(hipID, owner, contentPointer string, now time.Time) (Identity, error) {
	if _, ok := s.records[hipID]; ok {
		return Identity{}, ErrDuplicateKey
	}
	if _, ok := s.byOwner[owner]; ok {
		return Identity{}, ErrOwnerRegistered
	}
	rec := &Identity{
		HipID:           hipID,
		Owner:           owner,
		ContentPointer:  contentPointer,
		ReputationLevel: MinReputation,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.records[hipID] = rec
	s.byOwner[owner] = hipID
	s.order = append(s.order, hipID)
	return *rec, nil
}

// SetContentPointer updates the content pointer after checking ownership.
func (s *Store) SetContentPointer(hipID, caller, pointer string, now time.Time) (Identity, error) {
	rec, ok := s.records[hipID]
	if !ok {
		return Identity{}, ErrNotFound
	}
	if rec.Owner != caller {
		return Identity{}, ErrNotOwner
	}
	rec.ContentPointer = pointer
	rec.UpdatedAt = now
	return *rec, nil
}

// SetVerified sets the verification flag. Authorization is the caller's
// responsibility; the store assumes it has already been granted.
func (s *Store) SetVerified(hipID string, verified bool, now time.Time) (Identity, error) {
	rec, ok := s.records[hipID]
	if !ok {
		return Identity{}, ErrNotFound
	}
	rec.IsVerified = verified
	rec.UpdatedAt = now
	return *rec, nil
}

// SetReputation sets the trust tier and returns the previous level so the
// caller can record the transition.
func (s *Store) SetReputation(hipID string, level int, now time.Time) (Identity, int, error) {
	rec, ok := s.records[hipID]
	if !ok {
		return Identity{}, 0, ErrNotFound
	}
	if level < MinReputation || level > MaxReputation {
		return Identity{}, 0, ErrReputationRange
	}
	prev := rec.ReputationLevel
	rec.ReputationLevel = level
	rec.UpdatedAt = now
	return *rec, prev, nil
}

// IncrementInteractions bumps the interaction counter by exactly one.
func (s *Store) IncrementInteractions(hipID string, now time.Time) (Identity, error) {
	rec, ok := s.records[hipID]
	if !ok {
		return Identity{}, ErrNotFound
	}
	rec.TotalInteractions++
	rec.UpdatedAt = now
	return *rec, nil
}

// Get returns a copy of the record.
func (s *Store) Get(hipID string) (Identity, bool) {
	rec, ok := s.records[hipID]
	if !ok {
		return Identity{}, false
	}
	return *rec, true
}

// GetByOwner resolves an owner to its hip id.
func (s *Store) GetByOwner(owner string) (string, bool) {
	id, ok := s.byOwner[owner]
	return id, ok
}

// GetByIndex returns the hip id at insertion position i.
func (s *Store) GetByIndex(i int) (string, error) {
	if i < 0 || i >= len(s.order) {
		return "", ErrIndexOutOfRange
	}
	return s.order[i], nil
}

// Count reports the number of registered identities.
func (s *Store) Count() int { return len(s.order) }
