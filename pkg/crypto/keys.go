package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mvercan/latch/core"
)

var (
	ErrInvalidArmor   = errors.New("invalid key armor format")
	ErrLockedArmor    = errors.New("key armor is passphrase-locked")
	ErrUnlockedNeeded = errors.New("key armor is not passphrase-locked")
)

// KDFParams tune the argon2id derivation of the armor key.
type KDFParams struct {
	Memory      uint32 // Memory cost in KiB
	Iterations  uint32 // Number of iterations (time cost)
	Parallelism uint8  // Number of parallel threads
	SaltLength  uint32 // Length of random salt
	KeyLength   uint32 // Length of derived key
}

// DefaultKDFParams follows the OWASP password storage recommendations.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Memory:      64 * 1024, // 64 MB
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   chacha20poly1305.KeySize,
	}
}

// GenerateKey produces fresh ed25519 key material.
func GenerateKey() (*core.KeyMaterial, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return core.NewKeyMaterial(priv), nil
}

// LockKey armors key material under a passphrase: an argon2id-derived key
// seals the ed25519 seed with chacha20poly1305. The armor is
// self-describing, in the spirit of the argon2id hash encoding:
//
//	$latchkey$v=1$m=65536,t=3,p=2$<salt>$<nonce>$<cipher>
func LockKey(km *core.KeyMaterial, passphrase *core.Passphrase, params KDFParams) (core.ArmoredKey, error) {
	if passphrase.IsEmpty() {
		return "", core.ErrPassphraseRequired
	}

	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey(
		passphrase.Bytes(),
		salt,
		params.Iterations,
		params.Memory,
		params.Parallelism,
		params.KeyLength,
	)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("failed to build cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, km.Seed(), nil)

	encoded := fmt.Sprintf("$latchkey$v=1$m=%d,t=%d,p=%d$%s$%s$%s",
		params.Memory,
		params.Iterations,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(nonce),
		base64.RawStdEncoding.EncodeToString(sealed))

	return core.ArmoredKey(encoded), nil
}

// UnlockKey decrypts passphrase-locked armor back to key material. A wrong
// passphrase surfaces as core.ErrInvalidPassphrase; a structurally broken
// armor as ErrInvalidArmor.
func UnlockKey(armored core.ArmoredKey, passphrase *core.Passphrase) (*core.KeyMaterial, error) {
	if passphrase.IsEmpty() {
		return nil, core.ErrPassphraseRequired
	}

	params, salt, nonce, sealed, err := decodeArmor(string(armored))
	if err != nil {
		return nil, err
	}

	key := argon2.IDKey(
		passphrase.Bytes(),
		salt,
		params.Iterations,
		params.Memory,
		params.Parallelism,
		params.KeyLength,
	)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}

	seed, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		// Authentication failure: the derived key did not match.
		return nil, core.ErrInvalidPassphrase
	}
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidArmor
	}

	return core.NewKeyMaterial(ed25519.NewKeyFromSeed(seed)), nil
}

// WrapKey armors key material without a passphrase layer. This is the
// storage form for biometric-gated accounts, where protection is delegated
// to the platform keystore holding the file.
func WrapKey(km *core.KeyMaterial) core.ArmoredKey {
	return core.ArmoredKey("$latchkey$raw$" + base64.RawStdEncoding.EncodeToString(km.Seed()))
}

// UnwrapKey reverses WrapKey. Passphrase-locked armor is refused with
// ErrLockedArmor so callers cannot silently skip the passphrase step.
func UnwrapKey(armored core.ArmoredKey) (*core.KeyMaterial, error) {
	s := string(armored)
	if !strings.HasPrefix(s, "$latchkey$raw$") {
		if strings.HasPrefix(s, "$latchkey$v=") {
			return nil, ErrLockedArmor
		}
		return nil, ErrInvalidArmor
	}

	seed, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(s, "$latchkey$raw$"))
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidArmor
	}

	return core.NewKeyMaterial(ed25519.NewKeyFromSeed(seed)), nil
}

// Locked reports whether the armor carries a passphrase layer.
func Locked(armored core.ArmoredKey) bool {
	return strings.HasPrefix(string(armored), "$latchkey$v=")
}

func decodeArmor(encoded string) (KDFParams, []byte, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 7 {
		return KDFParams{}, nil, nil, nil, ErrInvalidArmor
	}

	if parts[1] != "latchkey" {
		return KDFParams{}, nil, nil, nil, ErrInvalidArmor
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != 1 {
		return KDFParams{}, nil, nil, nil, ErrInvalidArmor
	}

	params := KDFParams{KeyLength: chacha20poly1305.KeySize}
	var p int
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &p); err != nil {
		return KDFParams{}, nil, nil, nil, ErrInvalidArmor
	}
	params.Parallelism = uint8(p)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return KDFParams{}, nil, nil, nil, ErrInvalidArmor
	}

	nonce, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(nonce) != chacha20poly1305.NonceSize {
		return KDFParams{}, nil, nil, nil, ErrInvalidArmor
	}

	sealed, err := base64.RawStdEncoding.DecodeString(parts[6])
	if err != nil {
		return KDFParams{}, nil, nil, nil, ErrInvalidArmor
	}

	params.SaltLength = uint32(len(salt))

	return params, salt, nonce, sealed, nil
}
