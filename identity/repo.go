package identity

import "errors"

// ErrNotFound is returned when no identity matches the lookup.
var ErrNotFound = errors.New("identity not found")

// Store is the external identity collaborator. The in-process
// implementation lives in storefake; production deployments supply a
// real backend.
type Store interface {
	FindByCredentials(email, password string) (*User, error)
	FindByID(id string) (*User, error)
	Create(user *User) (*User, error)
	ExistsByEmail(email string) (bool, error)
}
