// Package totp provides a time-based one-time-password verifier for the
// multi-factor confirmation step.
package totp

import (
	"context"
	"fmt"

	"github.com/pquerna/otp/totp"

	"github.com/mvercan/latch/core"
)

// Provider is the provider name this verifier answers for.
const Provider = "totp"

// SecretLookup resolves the shared TOTP secret for an account. Returning
// an error means the account has no enrolled authenticator.
type SecretLookup func(ctx context.Context, id core.AccountID) (string, error)

// Verifier implements core.MFAVerifier against locally enrolled TOTP
// secrets.
type Verifier struct {
	lookup SecretLookup
}

var _ core.MFAVerifier = (*Verifier)(nil)

func New(lookup SecretLookup) *Verifier {
	return &Verifier{lookup: lookup}
}

func (v *Verifier) Verify(ctx context.Context, acct core.Account, provider, code string) error {
	if provider != Provider {
		return fmt.Errorf("%w: unsupported provider %q", core.ErrMFAUnavailable, provider)
	}

	secret, err := v.lookup(ctx, acct.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrMFAUnavailable, err)
	}

	if !totp.Validate(code, secret) {
		return fmt.Errorf("%w: one-time code rejected", core.ErrInvalidCredentials)
	}
	return nil
}

// GenerateSecret enrolls a new authenticator for the account and returns
// the shared secret in the standard base32 form.
func GenerateSecret(issuer string, id core.AccountID) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: id.String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate totp secret: %w", err)
	}
	return key.Secret(), nil
}
