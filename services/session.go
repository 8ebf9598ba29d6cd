package services

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mvercan/latch/core"
)

// SessionManager owns the process-wide session state. All reads of the
// current token and all state transitions funnel through its mutex, and
// sign-in/refresh network calls are coalesced per account through a
// singleflight group, so at most one negotiation is ever in flight for an
// account. Observers always see fully applied transitions.
type SessionManager struct {
	cfg        core.SessionConfig
	negotiator *Negotiator
	resolver   *KeyResolver
	verifier   core.MFAVerifier
	log        *slog.Logger

	clock  func() time.Time
	flight singleflight.Group

	mu               sync.Mutex
	phase            core.SessionPhase
	account          core.Account
	token            *core.Token
	refreshToken     string
	pendingToken     *core.Token
	pendingRefresh   string
	pendingProviders []string
	epoch            uint64
	observers        []chan core.SessionStatus
}

func NewSessionManager(cfg core.SessionConfig, negotiator *Negotiator, resolver *KeyResolver, verifier core.MFAVerifier, log *slog.Logger) *SessionManager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &SessionManager{
		cfg:        cfg,
		negotiator: negotiator,
		resolver:   resolver,
		verifier:   verifier,
		log:        log,
		clock:      time.Now,
	}
}

// Begin drives a sign-in with the given method. Concurrent calls for the
// same account join the in-flight attempt and observe its result; a Begin
// for the active account while Authorized returns the current status
// without touching the network.
func (m *SessionManager) Begin(ctx context.Context, method core.AuthMethod) (core.SessionStatus, error) {
	acct := method.Account()
	if acct.IsZero() {
		return m.Status(), core.ErrAccountRequired
	}

	m.mu.Lock()
	switch m.phase {
	case core.PhaseAuthorized:
		if m.account.ID == acct.ID {
			st := m.snapshotLocked()
			m.mu.Unlock()
			return st, nil
		}
		m.mu.Unlock()
		return m.Status(), core.ErrSessionActive
	case core.PhaseClosing:
		m.mu.Unlock()
		return m.Status(), core.ErrSessionActive
	case core.PhaseAuthorizing, core.PhaseMFARequired:
		if m.account.ID != acct.ID {
			m.mu.Unlock()
			return m.Status(), core.ErrSessionActive
		}
	}
	m.mu.Unlock()

	ch := m.flight.DoChan("signin:"+acct.ID.String(), func() (any, error) {
		return m.signIn(ctx, acct, method)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return m.Status(), res.Err
		}
		return res.Val.(core.SessionStatus), nil
	case <-ctx.Done():
		// This caller is done waiting; if it initiated the attempt the
		// shared call aborts on the same context and rolls the state back.
		return m.Status(), ctx.Err()
	}
}

func (m *SessionManager) signIn(ctx context.Context, acct core.Account, method core.AuthMethod) (core.SessionStatus, error) {
	// Claim the single session slot under the lock. Two Begin calls for
	// different accounts can both pass the phase pre-check before either
	// claims; only the first claim wins, the other fails here without a
	// network call.
	m.mu.Lock()
	switch {
	case m.phase == core.PhaseAuthorizing && m.account.ID == acct.ID:
	case m.phase == core.PhaseUnauthenticated,
		m.phase == core.PhaseMFARequired && m.account.ID == acct.ID:
		m.transitionLocked(func() {
			m.resetLocked()
			m.phase = core.PhaseAuthorizing
			m.account = acct
		})
	case m.phase == core.PhaseAuthorized && m.account.ID == acct.ID:
		st := m.snapshotLocked()
		m.mu.Unlock()
		return st, nil
	default:
		st := m.snapshotLocked()
		m.mu.Unlock()
		return st, core.ErrSessionActive
	}
	m.mu.Unlock()

	km, err := m.resolver.Resolve(ctx, method)
	if err != nil {
		return m.abort(acct, "key resolution", err)
	}
	defer km.Zero()

	if err := ctx.Err(); err != nil {
		return m.abort(acct, "sign-in", err)
	}

	res, err := m.negotiator.SignIn(ctx, acct, km)
	if err != nil {
		return m.abort(acct, "sign-in", err)
	}

	if len(res.Providers) > 0 {
		st := m.transition(func() {
			// Commit only if this attempt still holds the slot.
			if m.phase == core.PhaseAuthorizing && m.account.ID == acct.ID {
				m.phase = core.PhaseMFARequired
				m.pendingToken = res.Token
				m.pendingRefresh = res.RefreshToken
				m.pendingProviders = res.Providers
			}
		})
		if st.Phase != core.PhaseMFARequired || st.Account.ID != acct.ID {
			return st, core.ErrSessionActive
		}
		return st, nil
	}

	st := m.transition(func() {
		if m.phase == core.PhaseAuthorizing && m.account.ID == acct.ID {
			m.setAuthorizedLocked(acct, res.Token, res.RefreshToken)
		}
	})
	if !st.Authorized() || st.Account.ID != acct.ID {
		return st, core.ErrSessionActive
	}
	m.log.Debug("session authorized", "account", acct.ID.String())
	return st, nil
}

// ConfirmMFA completes a pending multi-factor step through the configured
// verifier. On confirmation the token issued alongside the challenge is
// promoted; no second sign-in call is made.
func (m *SessionManager) ConfirmMFA(ctx context.Context, provider, code string) (core.SessionStatus, error) {
	m.mu.Lock()
	if m.phase != core.PhaseMFARequired {
		m.mu.Unlock()
		return m.Status(), core.ErrNoPendingMFA
	}
	acct := m.account
	if !slices.Contains(m.pendingProviders, provider) {
		m.mu.Unlock()
		return m.Status(), core.ErrNoPendingMFA
	}
	m.mu.Unlock()

	if m.verifier == nil {
		// Wiring problem, not an auth failure; leave the pending step
		// intact so a correctly configured caller can still finish it.
		return m.Status(), core.ErrMFAUnavailable
	}

	ch := m.flight.DoChan("signin:"+acct.ID.String(), func() (any, error) {
		if err := m.verifier.Verify(ctx, acct, provider, code); err != nil {
			return m.abort(acct, "mfa confirmation", err)
		}
		st := m.transition(func() {
			// The step may have been torn down while the verifier ran.
			if m.phase == core.PhaseMFARequired && m.account.ID == acct.ID {
				m.setAuthorizedLocked(acct, m.pendingToken, m.pendingRefresh)
			}
		})
		if st.Phase != core.PhaseAuthorized {
			return st, core.ErrNoPendingMFA
		}
		m.log.Debug("session authorized after mfa", "account", acct.ID.String(), "provider", provider)
		return st, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return m.Status(), res.Err
		}
		return res.Val.(core.SessionStatus), nil
	case <-ctx.Done():
		return m.Status(), ctx.Err()
	}
}

// Token is the single accessor for the current valid token. While the
// token is comfortably valid it returns immediately; near expiry it
// coalesces exactly one refresh per account and every caller waits on that
// result. Refresh is intentionally not cancellable by the caller since
// other scoped operations may be waiting on it.
func (m *SessionManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.phase != core.PhaseAuthorized {
		m.mu.Unlock()
		return "", core.ErrNotAuthorized
	}
	if !m.token.NeedsRefresh(m.clock(), m.cfg.RefreshMargin) {
		raw := m.token.Raw
		m.mu.Unlock()
		return raw, nil
	}
	acct := m.account
	m.mu.Unlock()

	ch := m.flight.DoChan("refresh:"+acct.ID.String(), func() (any, error) {
		return m.refresh(acct)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *SessionManager) refresh(acct core.Account) (string, error) {
	m.mu.Lock()
	if m.phase != core.PhaseAuthorized || m.account.ID != acct.ID {
		m.mu.Unlock()
		return "", core.ErrNotAuthorized
	}
	current := m.token
	refreshToken := m.refreshToken
	now := m.clock()
	if !current.NeedsRefresh(now, m.cfg.RefreshMargin) {
		// A coalesced predecessor already replaced the token.
		raw := current.Raw
		m.mu.Unlock()
		return raw, nil
	}
	if current.Expired(now) && now.Sub(current.ExpiresAt()) > m.cfg.Grace {
		// Beyond the refresh grace the server will not honor the token;
		// don't bother with a network round-trip.
		m.mu.Unlock()
		m.teardown()
		return "", core.ErrSessionRevoked
	}
	m.mu.Unlock()

	// Deliberately detached from any caller context: scoped operations
	// are waiting on this result, so it runs to completion or failure.
	token, rotated, err := m.negotiator.Refresh(context.Background(), acct, current, refreshToken)
	switch {
	case err == nil:
		st := m.transition(func() {
			if m.phase == core.PhaseAuthorized && m.account.ID == acct.ID {
				m.token = token
				m.refreshToken = rotated
			}
		})
		if st.Phase != core.PhaseAuthorized {
			return "", core.ErrNotAuthorized
		}
		return token.Raw, nil

	case errors.Is(err, core.ErrSessionRevoked):
		m.log.Debug("session revoked by server", "account", acct.ID.String())
		m.teardown()
		return "", err

	default:
		// Transient or protocol failure. The current token may still be
		// honored until its true expiry, so keep the session and serve it
		// while it lasts; the caller owns retry policy for the refresh.
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.phase == core.PhaseAuthorized && m.account.ID == acct.ID && !m.token.Expired(m.clock()) {
			m.log.Warn("refresh failed, serving current token until expiry", "error", err)
			return m.token.Raw, nil
		}
		return "", err
	}
}

// SignOut revokes the session server-side and clears local state. The
// network call is best effort: a failure is logged, local state is cleared
// regardless, and the returned error is nil.
func (m *SessionManager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	if m.phase != core.PhaseAuthorized {
		m.mu.Unlock()
		return core.ErrNotAuthorized
	}
	acct := m.account
	token := m.token
	m.mu.Unlock()

	m.transition(func() { m.phase = core.PhaseClosing })

	if err := m.negotiator.SignOut(ctx, acct, token); err != nil {
		m.log.Warn("server-side revoke failed, clearing local session anyway",
			"account", acct.ID.String(), "error", err)
	}

	m.transition(func() { m.resetLocked() })
	return nil
}

// Close tears the session down locally from any state, without a network
// call. Pending credentials and tokens are discarded immediately.
func (m *SessionManager) Close() {
	m.mu.Lock()
	if m.phase == core.PhaseUnauthenticated {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.teardown()
}

func (m *SessionManager) teardown() {
	m.transition(func() { m.phase = core.PhaseClosing })
	m.transition(func() { m.resetLocked() })
}

// Status returns a snapshot of the current state.
func (m *SessionManager) Status() core.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers an observer for state transitions. Delivery is
// non-blocking: a slow observer loses intermediate snapshots, never
// blocks a transition. The returned cancel removes the observer and
// closes the channel.
func (m *SessionManager) Subscribe() (<-chan core.SessionStatus, func()) {
	ch := make(chan core.SessionStatus, 8)
	m.mu.Lock()
	m.observers = append(m.observers, ch)
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		for i, o := range m.observers {
			if o == ch {
				m.observers = append(m.observers[:i], m.observers[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// live reports whether a handle minted at the given epoch still fronts an
// authorized session. Scope gate handles call this at every point of use.
func (m *SessionManager) live(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == core.PhaseAuthorized && m.epoch == epoch
}

func (m *SessionManager) abort(acct core.Account, stage string, err error) (core.SessionStatus, error) {
	m.log.Debug("authorization failed", "stage", stage, "error", err)
	st := m.transition(func() {
		// Roll back only this account's pending attempt; a session that
		// replaced it mid-flight stays untouched.
		if m.account.ID == acct.ID && (m.phase == core.PhaseAuthorizing || m.phase == core.PhaseMFARequired) {
			m.resetLocked()
		}
	})
	return st, err
}

// transition applies a mutation and publishes the resulting snapshot under
// one critical section, so no observer sees a half-applied state. The
// epoch advances whenever the Authorized boundary is crossed in either
// direction, or the authorized account changes identity.
func (m *SessionManager) transition(mutate func()) core.SessionStatus {
	m.mu.Lock()
	st := m.transitionLocked(mutate)
	m.mu.Unlock()
	return st
}

func (m *SessionManager) transitionLocked(mutate func()) core.SessionStatus {
	wasAuthorized := m.phase == core.PhaseAuthorized
	prev := m.account.ID
	mutate()
	authorized := m.phase == core.PhaseAuthorized
	if wasAuthorized != authorized || (authorized && m.account.ID != prev) {
		m.epoch++
	}
	st := m.snapshotLocked()
	for _, ch := range m.observers {
		select {
		case ch <- st:
		default:
		}
	}
	return st
}

func (m *SessionManager) setAuthorizedLocked(acct core.Account, token *core.Token, refreshToken string) {
	m.phase = core.PhaseAuthorized
	m.account = acct
	m.token = token
	m.refreshToken = refreshToken
	m.pendingToken = nil
	m.pendingRefresh = ""
	m.pendingProviders = nil
}

func (m *SessionManager) resetLocked() {
	m.phase = core.PhaseUnauthenticated
	m.account = core.Account{}
	m.token = nil
	m.refreshToken = ""
	m.pendingToken = nil
	m.pendingRefresh = ""
	m.pendingProviders = nil
}

func (m *SessionManager) snapshotLocked() core.SessionStatus {
	st := core.SessionStatus{
		Phase:   m.phase,
		Account: m.account,
		Epoch:   m.epoch,
	}
	if m.phase == core.PhaseAuthorized && m.token != nil {
		st.ExpiresAt = m.token.Claims.ExpiresAt
	}
	if m.phase == core.PhaseMFARequired {
		st.Providers = slices.Clone(m.pendingProviders)
	}
	return st
}
