package core

import (
	"log/slog"
	"time"
)

// SessionConfig tunes token lifecycle handling.
type SessionConfig struct {
	// RefreshMargin is how close to expiry a token may get before the
	// next access triggers a refresh.
	RefreshMargin time.Duration

	// Grace is how long past expiry a token may still be presented to
	// the refresh endpoint. Beyond it the session is treated as revoked
	// locally, without a network call.
	Grace time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		RefreshMargin: 60 * time.Second,
		Grace:         5 * time.Minute,
	}
}

// Config wires the session core to its external collaborators.
type Config struct {
	ServerURL string

	// Optional collaborators. Transport defaults to the bundled HTTP
	// client; methods needing an absent collaborator fail at use.
	Transport  Transport
	KeyStore   KeyStore
	Biometrics BiometricGate
	MFA        MFAVerifier
	DB         LocalDB

	// Optional config
	Wire          *WireConfig
	SessionConfig *SessionConfig
	Logger        *slog.Logger
}
