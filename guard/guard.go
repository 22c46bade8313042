// Package guard decides render-vs-redirect for protected views from the
// session state and a route policy. Evaluate is a pure function; Guard
// binds it to a router and enforces the redirect-once contract.
package guard

import (
	"sync"

	"github.com/mycoding/go-session/identity"
	"github.com/mycoding/go-session/lifecycle"
)

// Route defaults. SafeRoute is where authenticated users land when a
// view is not for them.
const (
	DefaultRedirect = "/login"
	LoginRoute      = "/login"
	SafeRoute       = "/settings"
)

// Config is the per-route policy.
type Config struct {
	RequireAuth bool
	RequireRole identity.Role // empty means any role is acceptable
	RedirectTo  string        // where unauthenticated visitors go; defaults to /login
}

// Outcome classifies a guard decision.
type Outcome string

const (
	OutcomeLoading  Outcome = "loading"  // session still settling, render a neutral placeholder
	OutcomeRender   Outcome = "render"   // the view may be shown
	OutcomeRedirect Outcome = "redirect" // navigate to Target
)

// Reason explains a redirect, letting callers pick an interim render
// (e.g. an access-denied message for role mismatches).
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonUnauthenticated      Reason = "unauthenticated"
	ReasonRoleMismatch         Reason = "role_mismatch"
	ReasonAlreadyAuthenticated Reason = "already_authenticated"
)

// Decision is the result of evaluating the policy. Target is set only
// for redirects.
type Decision struct {
	Outcome Outcome
	Target  string
	Reason  Reason
}

// Router is the navigation collaborator: imperative navigation plus the
// current location.
type Router interface {
	Push(path string)
	CurrentPath() string
}

// Evaluate applies the route policy to a session snapshot. Rules, in
// order: wait while loading; unauthenticated visitors leave protected
// views; wrong-role users go to the safe route; authenticated users
// don't see the login view; otherwise render.
func Evaluate(state lifecycle.State, currentPath string, cfg Config) Decision {
	if state.IsLoading {
		return Decision{Outcome: OutcomeLoading}
	}

	if cfg.RequireAuth && !state.IsAuthenticated() {
		target := cfg.RedirectTo
		if target == "" {
			target = DefaultRedirect
		}
		return Decision{Outcome: OutcomeRedirect, Target: target, Reason: ReasonUnauthenticated}
	}

	if cfg.RequireRole != "" && state.IsAuthenticated() && state.User.Role != cfg.RequireRole {
		return Decision{Outcome: OutcomeRedirect, Target: SafeRoute, Reason: ReasonRoleMismatch}
	}

	if !cfg.RequireAuth && state.IsAuthenticated() && currentPath == LoginRoute {
		return Decision{Outcome: OutcomeRedirect, Target: SafeRoute, Reason: ReasonAlreadyAuthenticated}
	}

	return Decision{Outcome: OutcomeRender}
}

// Guard re-evaluates the policy whenever the session state changes and
// pushes redirects through the router. Each entry into a redirect
// condition navigates exactly once, no matter how often the same state
// is re-applied.
type Guard struct {
	router Router
	cfg    Config

	lock       sync.Mutex
	lastTarget string
}

func New(router Router, cfg Config) *Guard {
	return &Guard{
		router: router,
		cfg:    cfg,
	}
}

// Apply evaluates the policy against a snapshot and performs any
// navigation it calls for.
func (g *Guard) Apply(state lifecycle.State) Decision {
	decision := Evaluate(state, g.router.CurrentPath(), g.cfg)

	g.lock.Lock()
	defer g.lock.Unlock()

	if decision.Outcome != OutcomeRedirect {
		g.lastTarget = ""
		return decision
	}
	if decision.Target == g.lastTarget {
		return decision
	}

	g.lastTarget = decision.Target
	g.router.Push(decision.Target)
	return decision
}

// Bind subscribes the guard to a manager, applying the current state
// immediately and every transition after. The returned function
// unsubscribes.
func (g *Guard) Bind(manager *lifecycle.Manager) (unbind func()) {
	g.Apply(manager.State())
	return manager.Subscribe(func(state lifecycle.State) {
		g.Apply(state)
	})
}
