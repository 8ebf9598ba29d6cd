// Package latch is a client-side session lifecycle and authentication
// library. It unlocks account keys through passphrase or biometric
// strategies, negotiates challenge-signed sessions against an auth
// server, keeps the token fresh behind a single accessor, and gates
// session-scoped capabilities so they die with the session.
package latch

import (
	"github.com/mvercan/latch/core"
	"github.com/mvercan/latch/pkg/crypto"
	"github.com/mvercan/latch/pkg/transport"
	"github.com/mvercan/latch/services"
)

// interfaces
type (
	KeyStore      = core.KeyStore
	BiometricGate = core.BiometricGate
	Transport     = core.Transport
	MFAVerifier   = core.MFAVerifier
	LocalDB       = core.LocalDB
)

// structs
type (
	Config        = core.Config
	SessionConfig = core.SessionConfig
	WireConfig    = core.WireConfig

	AccountID     = core.AccountID
	Account       = core.Account
	Passphrase    = core.Passphrase
	ArmoredKey    = core.ArmoredKey
	Token         = core.Token
	SessionPhase  = core.SessionPhase
	SessionStatus = core.SessionStatus

	AuthMethod       = core.AuthMethod
	AdHocMethod      = core.AdHocMethod
	PassphraseMethod = core.PassphraseMethod
	BiometricMethod  = core.BiometricMethod

	SessionManager = services.SessionManager
	ScopeGate      = services.ScopeGate
	ScopedHandle   = services.ScopedHandle
	RetryPolicy    = services.RetryPolicy

	KDFParams = crypto.KDFParams
)

const (
	PhaseUnauthenticated = core.PhaseUnauthenticated
	PhaseAuthorizing     = core.PhaseAuthorizing
	PhaseAuthorized      = core.PhaseAuthorized
	PhaseMFARequired     = core.PhaseMFARequired
	PhaseClosing         = core.PhaseClosing
)

// Constructors & helpers (convenience re-exports)
var (
	NewAccountID         = core.NewAccountID
	ParseAccountID       = core.ParseAccountID
	NewAccount           = core.NewAccount
	NewPassphrase        = core.NewPassphrase
	ParseToken           = core.ParseToken
	DefaultSessionConfig = core.DefaultSessionConfig
	DefaultWireConfig    = core.DefaultWireConfig
	LoadWireConfig       = core.LoadWireConfig
	DefaultRetryPolicy   = services.DefaultRetryPolicy
	Retry                = services.Retry

	GenerateKey      = crypto.GenerateKey
	LockKey          = crypto.LockKey
	WrapKey          = crypto.WrapKey
	DefaultKDFParams = crypto.DefaultKDFParams
)

var (
	ErrNetworkUnavailable = core.ErrNetworkUnavailable
	ErrInvalidCredentials = core.ErrInvalidCredentials
	ErrAccountLocked      = core.ErrAccountLocked
	ErrSessionRevoked     = core.ErrSessionRevoked
	ErrServerRejected     = core.ErrServerRejected
)

var (
	ErrInvalidPassphrase = core.ErrInvalidPassphrase
	ErrKeyUnavailable    = core.ErrKeyUnavailable
	ErrBiometricDenied   = core.ErrBiometricDenied
	ErrKeyNotFound       = core.ErrKeyNotFound
	ErrMalformedToken    = core.ErrMalformedToken
)

var (
	ErrNotAuthorized  = core.ErrNotAuthorized
	ErrSessionActive  = core.ErrSessionActive
	ErrNoPendingMFA   = core.ErrNoPendingMFA
	ErrMFAUnavailable = core.ErrMFAUnavailable
)

var (
	ErrAccountRequired    = core.ErrAccountRequired
	ErrInvalidAccountID   = core.ErrInvalidAccountID
	ErrPassphraseRequired = core.ErrPassphraseRequired
	ErrServerURLRequired  = core.ErrServerURLRequired
	ErrKeyStoreRequired   = core.ErrKeyStoreRequired
)

// Client is the assembled library: the session state machine plus the
// scope gate issuing capability handles against it.
type Client struct {
	Sessions *SessionManager
	Scope    *ScopeGate

	serverURL string
}

// Account binds an account id to the client's configured server.
func (c *Client) Account(id AccountID, fingerprint string) (Account, error) {
	return core.NewAccount(id, c.serverURL, fingerprint)
}

func New(config Config) (*Client, error) {
	if config.ServerURL == "" {
		return nil, ErrServerURLRequired
	}

	// Set defaults

	tr := config.Transport
	if tr == nil {
		tr = transport.New(0)
	}

	wire := core.DefaultWireConfig()
	if config.Wire != nil {
		wire = *config.Wire
	}

	sessionConfig := core.DefaultSessionConfig()
	if config.SessionConfig != nil {
		sessionConfig = *config.SessionConfig
	}

	verifier := config.MFA
	if verifier == nil {
		verifier = services.NewRemoteVerifier(tr, wire)
	}

	negotiator := services.NewNegotiator(tr, wire, config.Logger)
	resolver := services.NewKeyResolver(config.KeyStore, config.Biometrics)
	sessions := services.NewSessionManager(sessionConfig, negotiator, resolver, verifier, config.Logger)

	return &Client{
		Sessions:  sessions,
		Scope:     services.NewScopeGate(sessions, config.DB, tr),
		serverURL: config.ServerURL,
	}, nil
}
