package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/mvercan/latch/core"
	"github.com/mvercan/latch/pkg/crypto"
)

// KeyResolver turns an authorization method into signing key material.
// The variant set is closed, so resolution is a single exhaustive switch.
// Resolved material is never written anywhere; ownership passes to the
// caller, which must zero it when the negotiation consuming it finishes.
type KeyResolver struct {
	keys core.KeyStore
	gate core.BiometricGate
}

func NewKeyResolver(keys core.KeyStore, gate core.BiometricGate) *KeyResolver {
	return &KeyResolver{keys: keys, gate: gate}
}

func (r *KeyResolver) Resolve(ctx context.Context, method core.AuthMethod) (*core.KeyMaterial, error) {
	switch m := method.(type) {
	case core.AdHocMethod:
		return r.resolveAdHoc(m)
	case core.PassphraseMethod:
		return r.resolvePassphrase(ctx, m)
	case core.BiometricMethod:
		return r.resolveBiometric(ctx, m)
	default:
		return nil, fmt.Errorf("unsupported authorization method %T", method)
	}
}

// resolveAdHoc decrypts the supplied private key in memory. Nothing here
// touches the key store; ad-hoc credentials are never persisted.
func (r *KeyResolver) resolveAdHoc(m core.AdHocMethod) (*core.KeyMaterial, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	km, err := crypto.UnlockKey(m.PrivateKey, m.Passphrase)
	if err != nil {
		if errors.Is(err, core.ErrInvalidPassphrase) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", core.ErrKeyUnavailable, err)
	}
	return km, nil
}

func (r *KeyResolver) resolvePassphrase(ctx context.Context, m core.PassphraseMethod) (*core.KeyMaterial, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if r.keys == nil {
		return nil, core.ErrKeyStoreRequired
	}

	armored, err := r.keys.Load(ctx, m.Acct.ID)
	if err != nil {
		if errors.Is(err, core.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %v", core.ErrKeyUnavailable, err)
		}
		return nil, fmt.Errorf("failed to load key: %w", err)
	}

	km, err := crypto.UnlockKey(armored, m.Passphrase)
	if err != nil {
		if errors.Is(err, core.ErrInvalidPassphrase) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", core.ErrKeyUnavailable, err)
	}
	return km, nil
}

// resolveBiometric prompts the gate first and only then touches the store.
// A declined prompt and a missing key both surface as ErrBiometricDenied,
// matching the UI's single remediation path for this method.
func (r *KeyResolver) resolveBiometric(ctx context.Context, m core.BiometricMethod) (*core.KeyMaterial, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if r.gate == nil {
		return nil, core.ErrGateRequired
	}
	if r.keys == nil {
		return nil, core.ErrKeyStoreRequired
	}

	ok, err := r.gate.Authorize(ctx, m.Acct.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBiometricDenied, err)
	}
	if !ok {
		return nil, core.ErrBiometricDenied
	}

	armored, err := r.keys.Load(ctx, m.Acct.ID)
	if err != nil {
		if errors.Is(err, core.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: no stored key", core.ErrBiometricDenied)
		}
		return nil, fmt.Errorf("failed to load key: %w", err)
	}

	km, err := crypto.UnwrapKey(armored)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrKeyUnavailable, err)
	}
	return km, nil
}
