package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mvercan/latch/core"
)

// RemoteVerifier implements core.MFAVerifier by deferring the check to
// the auth server's MFA endpoint. It is the right verifier when the
// server owns authenticator enrollment; the totp adapter covers locally
// enrolled secrets.
type RemoteVerifier struct {
	transport core.Transport
	wire      core.WireConfig
}

var _ core.MFAVerifier = (*RemoteVerifier)(nil)

func NewRemoteVerifier(transport core.Transport, wire core.WireConfig) *RemoteVerifier {
	return &RemoteVerifier{transport: transport, wire: wire}
}

func (v *RemoteVerifier) Verify(ctx context.Context, acct core.Account, provider, code string) error {
	body, err := json.Marshal(map[string]string{
		v.wire.FieldAccountID: acct.ID.String(),
		v.wire.FieldProvider:  provider,
		v.wire.FieldCode:      code,
	})
	if err != nil {
		return fmt.Errorf("failed to build mfa request: %w", err)
	}

	status, _, err := v.transport.Post(ctx, acct.ServerURL+v.wire.MFAPath, nil, body)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNetworkUnavailable, err)
	}
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrInvalidCredentials
	default:
		return fmt.Errorf("%w: mfa confirmation returned status %d", core.ErrServerRejected, status)
	}
}
