package core

import "errors"

// Negotiation errors (network exchange with the auth server)
var (
	ErrNetworkUnavailable = errors.New("network unavailable")     // transient, caller may retry
	ErrInvalidCredentials = errors.New("invalid credentials")     // terminal for the attempt
	ErrAccountLocked      = errors.New("account locked")          // terminal, needs external remediation
	ErrSessionRevoked     = errors.New("session revoked")         // server invalidated the session
	ErrServerRejected     = errors.New("server rejected request") // protocol-level inconsistency
)

// Key resolution errors
var (
	ErrInvalidPassphrase = errors.New("invalid passphrase") // decryption failed
	ErrKeyUnavailable    = errors.New("private key unavailable")
	ErrBiometricDenied   = errors.New("biometric authorization denied")
	ErrKeyNotFound       = errors.New("no key stored for account") // key store miss
)

// Token errors
var (
	ErrMalformedToken = errors.New("malformed token")
)

// Session state errors
var (
	ErrNotAuthorized  = errors.New("no authorized session")
	ErrSessionActive  = errors.New("another session is active") // sign out before switching accounts
	ErrNoPendingMFA   = errors.New("no multi-factor step pending")
	ErrMFAUnavailable = errors.New("no multi-factor verifier configured")
)

// Validation errors (caller input)
var (
	ErrAccountRequired    = errors.New("account is required")
	ErrInvalidAccountID   = errors.New("invalid account identifier")
	ErrPassphraseRequired = errors.New("passphrase is required")
	ErrPrivateKeyRequired = errors.New("private key is required")
)

// Config errors (caller-side wiring)
var (
	ErrServerURLRequired = errors.New("server URL is required")
	ErrKeyStoreRequired  = errors.New("key store is required for stored-key methods")
	ErrGateRequired      = errors.New("biometric gate is required for biometric methods")
)
