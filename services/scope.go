package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mvercan/latch/core"
	"github.com/mvercan/latch/pkg/crypto"
)

// ScopeGate binds the session-scoped capabilities (local database access,
// token-bearing network calls) to session validity. Admit only succeeds
// against an Authorized session; every operation on an issued handle
// re-validates liveness at the point of use, so a handle that outlives its
// session fails with ErrSessionRevoked instead of silently completing.
type ScopeGate struct {
	manager   *SessionManager
	db        core.LocalDB
	transport core.Transport

	mu  sync.Mutex
	gen uint64 // bumped by Revoke; invalidates outstanding handles
}

func NewScopeGate(manager *SessionManager, db core.LocalDB, transport core.Transport) *ScopeGate {
	return &ScopeGate{manager: manager, db: db, transport: transport}
}

// Admit issues a capability handle for the current session. It never
// waits and never triggers authorization: callers wanting a session drive
// the session manager first.
func (g *ScopeGate) Admit() (*ScopedHandle, error) {
	st := g.manager.Status()
	if !st.Authorized() {
		return nil, core.ErrNotAuthorized
	}

	id, err := crypto.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to mint handle id: %w", err)
	}

	g.mu.Lock()
	gen := g.gen
	g.mu.Unlock()

	return &ScopedHandle{
		id:      id,
		gate:    g,
		account: st.Account,
		epoch:   st.Epoch,
		gen:     gen,
	}, nil
}

// Revoke invalidates every previously issued handle. Session teardown
// already invalidates handles through the epoch; Revoke exists for local
// policy decisions that keep the session alive but cut off capability
// consumers.
func (g *ScopeGate) Revoke() {
	g.mu.Lock()
	g.gen++
	g.mu.Unlock()
}

func (g *ScopeGate) currentGen() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

// ScopedHandle is the capability handle for session-scoped operations.
// It is valid only while the session that minted it stays authorized.
type ScopedHandle struct {
	id      string
	gate    *ScopeGate
	account core.Account
	epoch   uint64
	gen     uint64
}

func (h *ScopedHandle) ID() string            { return h.id }
func (h *ScopedHandle) Account() core.Account { return h.account }

// Live reports whether the handle still fronts an authorized session.
func (h *ScopedHandle) Live() bool {
	return h.liveErr() == nil
}

func (h *ScopedHandle) liveErr() error {
	if h.gate.currentGen() != h.gen {
		return core.ErrSessionRevoked
	}
	if !h.gate.manager.live(h.epoch) {
		return core.ErrSessionRevoked
	}
	return nil
}

// Exec runs a parameterized statement against the local database. The
// liveness check runs before and after execution so a revocation landing
// mid-flight surfaces as ErrSessionRevoked rather than a silent success.
func (h *ScopedHandle) Exec(ctx context.Context, query string, args ...any) error {
	if err := h.liveErr(); err != nil {
		return err
	}
	if h.gate.db == nil {
		return errors.New("no local database configured")
	}
	if err := h.gate.db.Exec(ctx, query, args...); err != nil {
		return err
	}
	return h.liveErr()
}

// Query runs a parameterized query against the local database.
func (h *ScopedHandle) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := h.liveErr(); err != nil {
		return nil, err
	}
	if h.gate.db == nil {
		return nil, errors.New("no local database configured")
	}
	rows, err := h.gate.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := h.liveErr(); err != nil {
		if rows != nil {
			rows.Close()
		}
		return nil, err
	}
	return rows, nil
}

// Do posts to a server path with the current token attached. The token
// accessor transparently refreshes a near-expiry token; this call waits on
// that refresh like every other scoped operation.
func (h *ScopedHandle) Do(ctx context.Context, path string, body []byte) (int, []byte, error) {
	if err := h.liveErr(); err != nil {
		return 0, nil, err
	}

	token, err := h.gate.manager.Token(ctx)
	if err != nil {
		if errors.Is(err, core.ErrNotAuthorized) {
			return 0, nil, core.ErrSessionRevoked
		}
		return 0, nil, err
	}

	header := map[string]string{"Authorization": "Bearer " + token}
	status, resp, err := h.gate.transport.Post(ctx, h.account.ServerURL+path, header, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", core.ErrNetworkUnavailable, err)
	}
	if err := h.liveErr(); err != nil {
		return 0, nil, err
	}
	return status, resp, nil
}
