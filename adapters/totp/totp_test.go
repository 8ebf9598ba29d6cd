package totp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/mvercan/latch/core"
)

func enrolledVerifier(t *testing.T, id core.AccountID) (*Verifier, string) {
	t.Helper()
	secret, err := GenerateSecret("latch-test", id)
	if err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}
	verifier := New(func(_ context.Context, lookup core.AccountID) (string, error) {
		if lookup != id {
			return "", errors.New("no authenticator enrolled")
		}
		return secret, nil
	})
	return verifier, secret
}

func TestVerifier_Verify(t *testing.T) {
	acct, err := core.NewAccount(core.NewAccountID(), "https://vault.test", "fp")
	if err != nil {
		t.Fatalf("NewAccount() error = %v", err)
	}
	verifier, secret := enrolledVerifier(t, acct.ID)

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode() error = %v", err)
	}
	if err := verifier.Verify(context.Background(), acct, Provider, code); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if err := verifier.Verify(context.Background(), acct, Provider, "000000"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Fatalf("Verify(bad code) error = %v, want ErrInvalidCredentials", err)
	}
	if err := verifier.Verify(context.Background(), acct, "sms", code); !errors.Is(err, core.ErrMFAUnavailable) {
		t.Fatalf("Verify(unsupported provider) error = %v, want ErrMFAUnavailable", err)
	}

	stranger, err := core.NewAccount(core.NewAccountID(), "https://vault.test", "fp")
	if err != nil {
		t.Fatalf("NewAccount() error = %v", err)
	}
	if err := verifier.Verify(context.Background(), stranger, Provider, code); !errors.Is(err, core.ErrMFAUnavailable) {
		t.Fatalf("Verify(unenrolled account) error = %v, want ErrMFAUnavailable", err)
	}
}
