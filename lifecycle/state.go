package lifecycle

import (
	"github.com/mycoding/go-session/identity"
	"github.com/mycoding/go-session/session"
)

// Status is the session machine's primary state.
type Status string

const (
	StatusInitializing    Status = "initializing"
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticated   Status = "authenticated"
)

// State is an immutable snapshot of the session. Err and ErrCode carry
// the last failed login/register outcome and are only ever set while
// unauthenticated; both clear together.
type State struct {
	Status    Status
	User      *identity.Profile
	IsLoading bool
	Err       string
	ErrCode   session.ErrorCode
}

// IsAuthenticated reports whether a user is attached. This always
// agrees with Status == StatusAuthenticated.
func (s State) IsAuthenticated() bool {
	return s.User != nil
}
