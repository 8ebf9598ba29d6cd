package core

import (
	"crypto/ed25519"
	"errors"
)

// Passphrase is a sensitive UTF-8 secret held only in memory.
// It is never logged and never serialized; call Zero once it has been
// consumed.
type Passphrase struct {
	b []byte
}

func NewPassphrase(s string) *Passphrase {
	return &Passphrase{b: []byte(s)}
}

// Bytes exposes the raw secret for key derivation. The returned slice
// aliases the passphrase memory and becomes invalid after Zero.
func (p *Passphrase) Bytes() []byte {
	if p == nil {
		return nil
	}
	return p.b
}

func (p *Passphrase) IsEmpty() bool {
	return p == nil || len(p.b) == 0
}

// Zero overwrites the secret in place.
func (p *Passphrase) Zero() {
	if p == nil {
		return
	}
	for i := range p.b {
		p.b[i] = 0
	}
	p.b = nil
}

// String redacts the secret so incidental formatting cannot leak it.
func (p *Passphrase) String() string {
	return "[redacted]"
}

// MarshalJSON refuses serialization outright.
func (p *Passphrase) MarshalJSON() ([]byte, error) {
	return nil, errors.New("passphrase is not serializable")
}

// ArmoredKey is textual key material. The private form is encrypted at rest
// by a passphrase (or wrapped raw behind a platform keystore for
// biometric-gated accounts).
type ArmoredKey string

func (k ArmoredKey) IsZero() bool {
	return k == ""
}

// KeyMaterial is decrypted signing key material. It is owned exclusively by
// the resolution that produced it and must be zeroed as soon as the
// negotiation consuming it completes or fails.
type KeyMaterial struct {
	priv ed25519.PrivateKey
}

// NewKeyMaterial wraps a raw ed25519 private key.
func NewKeyMaterial(priv ed25519.PrivateKey) *KeyMaterial {
	return &KeyMaterial{priv: priv}
}

// Sign signs data with the private key.
func (k *KeyMaterial) Sign(data []byte) []byte {
	return ed25519.Sign(k.priv, data)
}

// Public returns the corresponding public key.
func (k *KeyMaterial) Public() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

// Seed returns the private seed, needed when armoring the key. The slice
// aliases the key memory so that Zero wipes every view of it.
func (k *KeyMaterial) Seed() []byte {
	if len(k.priv) < ed25519.SeedSize {
		return nil
	}
	return k.priv[:ed25519.SeedSize]
}

// Zero overwrites the key material in place.
func (k *KeyMaterial) Zero() {
	if k == nil {
		return
	}
	for i := range k.priv {
		k.priv[i] = 0
	}
	k.priv = nil
}

func (k *KeyMaterial) String() string {
	return "[redacted]"
}
