package registry

import (
	"errors"
	"time"
)

// Reputation levels are a closed trust tier scale.
const (
	MinReputation = 1
	MaxReputation = 5
)

// Identity is one registered HIP record. HipID and Owner are immutable
// for the life of the record; everything else mutates through the service.
type Identity struct {
	HipID             string    `json:"hip_id"`
	Owner             string    `json:"owner"`
	ContentPointer    string    `json:"content_pointer"`
	IsVerified        bool      `json:"is_verified"`
	ReputationLevel   int       `json:"reputation_level"`
	TotalInteractions uint64    `json:"total_interactions"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

var (
	ErrNotFound        = errors.New("identity not found")
	ErrDuplicateKey    = errors.New("hip id already registered")
	ErrOwnerRegistered = errors.New("owner already has an identity")
	ErrNotOwner        = errors.New("caller is not the identity owner")
	ErrUnauthorized    = errors.New("caller is not the registry admin")
	ErrReputationRange = errors.New("reputation level must be between 1 and 5")
	ErrIndexOutOfRange = errors.New("identity index out of range")
	ErrInvalidInput    = errors.New("invalid input")
)
