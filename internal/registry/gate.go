package registry

// Gate classifies callers before the store is touched. The registry has
// exactly one admin address, fixed at construction; there is no transfer
// or rotation operation.
type Gate struct {
	admin string
}

// NewGate builds a gate for the given admin address.
func NewGate(admin string) Gate {
	return Gate{admin: admin}
}

// Admin rejects callers other than the registry admin.
func (g Gate) Admin(caller string) error {
	if caller == "" || caller != g.admin {
		return ErrUnauthorized
	}
	return nil
}

// Owner rejects callers other than the record owner.
func (g Gate) Owner(caller, owner string) error {
	if caller == "" || caller != owner {
		return ErrNotOwner
	}
	return nil
}
