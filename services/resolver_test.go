package services

import (
	"context"
	"errors"
	"testing"

	"github.com/mvercan/latch/core"
	"github.com/mvercan/latch/pkg/crypto"
)

// Fast KDF parameters for fixtures; production defaults cost 64 MB per
// derivation.
func fixtureKDF() crypto.KDFParams {
	return crypto.KDFParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func testAccount(t *testing.T) core.Account {
	t.Helper()
	acct, err := core.NewAccount(core.NewAccountID(), "https://vault.test", "fp")
	if err != nil {
		t.Fatalf("NewAccount() error = %v", err)
	}
	return acct
}

func lockedFixture(t *testing.T, passphrase string) core.ArmoredKey {
	t.Helper()
	km, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	armored, err := crypto.LockKey(km, core.NewPassphrase(passphrase), fixtureKDF())
	if err != nil {
		t.Fatalf("LockKey() error = %v", err)
	}
	return armored
}

func wrappedFixture(t *testing.T) core.ArmoredKey {
	t.Helper()
	km, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	return crypto.WrapKey(km)
}

// Requirement: ad-hoc resolution decrypts in memory and never consults the
// key store.
func TestKeyResolver_AdHoc(t *testing.T) {
	acct := testAccount(t)
	armored := lockedFixture(t, "right")

	tests := []struct {
		name       string
		passphrase string
		wantErr    error
	}{
		{name: "correct passphrase", passphrase: "right"},
		{name: "wrong passphrase", passphrase: "wrong", wantErr: core.ErrInvalidPassphrase},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store := newFakeKeyStore()
			resolver := NewKeyResolver(store, nil)

			km, err := resolver.Resolve(context.Background(), core.AdHocMethod{
				Acct:       acct,
				Passphrase: core.NewPassphrase(test.passphrase),
				PrivateKey: armored,
			})
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, test.wantErr)
			}
			if test.wantErr == nil && km == nil {
				t.Fatal("Resolve() returned nil material")
			}
			if store.loads != 0 {
				t.Errorf("key store consulted %d times for ad-hoc method", store.loads)
			}
		})
	}
}

// Requirement: a resolver without a key store still serves the ad-hoc
// method; only the stored-key methods fail, with ErrKeyStoreRequired.
func TestKeyResolver_NoStore(t *testing.T) {
	acct := testAccount(t)
	resolver := NewKeyResolver(nil, &fakeGate{allow: true})

	km, err := resolver.Resolve(context.Background(), core.AdHocMethod{
		Acct:       acct,
		Passphrase: core.NewPassphrase("right"),
		PrivateKey: lockedFixture(t, "right"),
	})
	if err != nil {
		t.Fatalf("Resolve(ad-hoc) error = %v", err)
	}
	if km == nil {
		t.Fatal("Resolve() returned nil material")
	}

	_, err = resolver.Resolve(context.Background(), core.PassphraseMethod{
		Acct:       acct,
		Passphrase: core.NewPassphrase("right"),
	})
	if !errors.Is(err, core.ErrKeyStoreRequired) {
		t.Fatalf("Resolve(passphrase) error = %v, want ErrKeyStoreRequired", err)
	}

	_, err = resolver.Resolve(context.Background(), core.BiometricMethod{Acct: acct})
	if !errors.Is(err, core.ErrKeyStoreRequired) {
		t.Fatalf("Resolve(biometric) error = %v, want ErrKeyStoreRequired", err)
	}
}

// Requirement: the passphrase strategy loads from the store; an absent key
// is ErrKeyUnavailable, a wrong passphrase ErrInvalidPassphrase.
func TestKeyResolver_Passphrase(t *testing.T) {
	acct := testAccount(t)
	armored := lockedFixture(t, "right")

	tests := []struct {
		name       string
		stored     bool
		passphrase string
		wantErr    error
	}{
		{name: "stored key, correct passphrase", stored: true, passphrase: "right"},
		{name: "stored key, wrong passphrase", stored: true, passphrase: "wrong", wantErr: core.ErrInvalidPassphrase},
		{name: "no stored key", stored: false, passphrase: "right", wantErr: core.ErrKeyUnavailable},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store := newFakeKeyStore()
			if test.stored {
				store.keys[acct.ID] = armored
			}
			resolver := NewKeyResolver(store, nil)

			km, err := resolver.Resolve(context.Background(), core.PassphraseMethod{
				Acct:       acct,
				Passphrase: core.NewPassphrase(test.passphrase),
			})
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, test.wantErr)
			}
			if test.wantErr == nil && km == nil {
				t.Fatal("Resolve() returned nil material")
			}
		})
	}
}

// Requirement: the biometric strategy prompts the gate first; a declined
// prompt and an absent key both surface as ErrBiometricDenied, and the
// store is never read when the gate declines.
func TestKeyResolver_Biometric(t *testing.T) {
	acct := testAccount(t)

	tests := []struct {
		name     string
		allow    bool
		gateErr  error
		stored   bool
		wantErr  error
		wantLoad int
	}{
		{name: "authorized with stored key", allow: true, stored: true, wantLoad: 1},
		{name: "gate declines", allow: false, stored: true, wantErr: core.ErrBiometricDenied, wantLoad: 0},
		{name: "gate hardware error", gateErr: errors.New("sensor offline"), stored: true, wantErr: core.ErrBiometricDenied, wantLoad: 0},
		{name: "authorized but no stored key", allow: true, stored: false, wantErr: core.ErrBiometricDenied, wantLoad: 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store := newFakeKeyStore()
			if test.stored {
				store.keys[acct.ID] = wrappedFixture(t)
			}
			gate := &fakeGate{allow: test.allow, err: test.gateErr}
			resolver := NewKeyResolver(store, gate)

			km, err := resolver.Resolve(context.Background(), core.BiometricMethod{Acct: acct})
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, test.wantErr)
			}
			if test.wantErr == nil && km == nil {
				t.Fatal("Resolve() returned nil material")
			}
			if gate.prompts != 1 {
				t.Errorf("gate prompted %d times, want 1", gate.prompts)
			}
			if store.loads != test.wantLoad {
				t.Errorf("store loads = %d, want %d", store.loads, test.wantLoad)
			}
		})
	}
}

// Requirement: a biometric account whose stored armor is passphrase-locked
// is a store inconsistency, not a credential failure.
func TestKeyResolver_Biometric_LockedArmor(t *testing.T) {
	acct := testAccount(t)
	store := newFakeKeyStore()
	store.keys[acct.ID] = lockedFixture(t, "pw")
	resolver := NewKeyResolver(store, &fakeGate{allow: true})

	_, err := resolver.Resolve(context.Background(), core.BiometricMethod{Acct: acct})
	if !errors.Is(err, core.ErrKeyUnavailable) {
		t.Fatalf("Resolve() error = %v, want ErrKeyUnavailable", err)
	}
}
