package core

// SessionPhase is the lifecycle phase of the process-wide session.
type SessionPhase int

const (
	PhaseUnauthenticated SessionPhase = iota
	PhaseAuthorizing
	PhaseAuthorized
	PhaseMFARequired
	PhaseClosing
)

func (p SessionPhase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthorizing:
		return "authorizing"
	case PhaseAuthorized:
		return "authorized"
	case PhaseMFARequired:
		return "mfa_required"
	case PhaseClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// SessionStatus is an immutable snapshot of the session state machine,
// published to observers after every transition. Observers never see a
// partially applied transition.
type SessionStatus struct {
	Phase   SessionPhase
	Account Account

	// Epoch increments whenever a session is established or torn down.
	// Scoped handles use it to detect revocation.
	Epoch uint64

	// ExpiresAt is the current token's expiry (epoch seconds, UTC);
	// zero outside Authorized.
	ExpiresAt int64

	// Providers lists pending multi-factor providers while the phase
	// is MFARequired.
	Providers []string
}

// Authorized reports whether the snapshot represents a live session.
func (s SessionStatus) Authorized() bool {
	return s.Phase == PhaseAuthorized
}
