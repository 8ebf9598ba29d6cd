package core

import (
	"context"
	"database/sql"
)

// Ports define interfaces for external collaborators.

// ============================================
// KEY STORAGE PORT (local encrypted key store)
// ============================================

// KeyStore is the on-disk (or remote) encrypted key store, keyed by
// account identifier. Load returns ErrKeyNotFound when no key is stored.
type KeyStore interface {
	Load(ctx context.Context, id AccountID) (ArmoredKey, error)
	Store(ctx context.Context, id AccountID, key ArmoredKey) error
	Delete(ctx context.Context, id AccountID) error
}

// ============================================
// BIOMETRIC PORT
// ============================================

// BiometricGate prompts the platform's biometric hardware. Authorize
// suspends until the user responds; true means proceed. Errors are
// hardware or platform failures, not user refusal.
type BiometricGate interface {
	Authorize(ctx context.Context, id AccountID) (bool, error)
}

// ============================================
// TRANSPORT PORT
// ============================================

// Transport is the signed-request primitive over which the negotiator
// talks to the server. A non-nil error means the request never produced an
// HTTP response (timeout, unreachable host); status-code interpretation is
// the negotiator's job.
type Transport interface {
	Post(ctx context.Context, url string, header map[string]string, body []byte) (status int, respBody []byte, err error)
}

// ============================================
// MFA PORT
// ============================================

// MFAVerifier completes a pending multi-factor step with the named
// provider. A nil return confirms the step; any error leaves the step
// unconfirmed.
type MFAVerifier interface {
	Verify(ctx context.Context, acct Account, provider, code string) error
}

// ============================================
// LOCAL DATABASE PORT (session-scoped capability)
// ============================================

// LocalDB is the local relational cache. Scoped handles front it; nothing
// else in this module executes queries directly.
type LocalDB interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
