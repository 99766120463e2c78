// Package guard gates access to the protected application surface. It owns
// the boot ordering: the HTTP client must be initialized and session
// restoration finished before authentication is ever evaluated, otherwise
// every cold start would misread "not restored yet" as "not logged in".
package guard

import (
	"context"
	"sync"

	"bookden/internal/auth/session"
	"bookden/pkg/domainerrors"
)

// Decision is the gate's verdict for rendering the protected surface.
type Decision int

const (
	// DecisionLoading: restoration still in progress, show a blocking
	// loading state; neither the protected surface nor the login redirect.
	DecisionLoading Decision = iota
	// DecisionAuthenticated: render the protected surface.
	DecisionAuthenticated
	// DecisionUnauthenticated: send the user to the login surface.
	DecisionUnauthenticated
)

func (d Decision) String() string {
	switch d {
	case DecisionAuthenticated:
		return "authenticated"
	case DecisionUnauthenticated:
		return "unauthenticated"
	default:
		return "loading"
	}
}

// SessionControl is what the gate needs from the session manager.
type SessionControl interface {
	Snapshot() session.State
	SetAPIInitialized()
	Restore(ctx context.Context)
}

// Gate runs the boot sequence once and answers access decisions.
type Gate struct {
	session SessionControl
	once    sync.Once
}

// New builds a gate over an initialized-but-unrestored session.
func New(control SessionControl) *Gate {
	return &Gate{session: control}
}

// Boot marks the API client initialized and restores the session from
// stored credentials. It runs the sequence at most once; later calls wait
// on nothing and change nothing.
func (g *Gate) Boot(ctx context.Context) {
	g.once.Do(func() {
		g.session.SetAPIInitialized()
		g.session.Restore(ctx)
	})
}

// Decide evaluates the current session. It never reports unauthenticated
// while the client is uninitialized or a session operation is in flight.
func (g *Gate) Decide() Decision {
	state := g.session.Snapshot()
	if !state.APIInitialized || state.Loading {
		return DecisionLoading
	}
	if state.Authenticated {
		return DecisionAuthenticated
	}
	return DecisionUnauthenticated
}

// Require boots if needed and fails unless the session is authenticated.
// Protected entry points call this before doing anything else.
func (g *Gate) Require(ctx context.Context) error {
	g.Boot(ctx)
	if g.Decide() != DecisionAuthenticated {
		return domainerrors.New(domainerrors.CodeSessionInvalid,
			"not signed in: run 'bookden login' first")
	}
	return nil
}
