package core

// AuthMethod is the credential proof used to establish a session. The
// variant set is closed: ad-hoc credentials, a stored key unlocked by a
// passphrase, or a stored key released by the biometric gate. Each variant
// exposes its account without resolving any key material, so callers can
// pick UI and error context before doing crypto work.
type AuthMethod interface {
	// Account returns the account this method authenticates.
	Account() Account

	sealed()
}

// AdHocMethod carries transient credentials that are never persisted.
type AdHocMethod struct {
	Acct       Account
	Passphrase *Passphrase
	PrivateKey ArmoredKey
}

// PassphraseMethod unlocks the locally stored private key with a passphrase.
type PassphraseMethod struct {
	Acct       Account
	Passphrase *Passphrase
}

// BiometricMethod releases the locally stored private key after a
// successful biometric prompt. No passphrase is involved at this layer.
type BiometricMethod struct {
	Acct Account
}

func (m AdHocMethod) Account() Account      { return m.Acct }
func (m PassphraseMethod) Account() Account { return m.Acct }
func (m BiometricMethod) Account() Account  { return m.Acct }

func (AdHocMethod) sealed()      {}
func (PassphraseMethod) sealed() {}
func (BiometricMethod) sealed()  {}

// Validate checks the method carries everything its variant needs.
func (m AdHocMethod) Validate() error {
	if m.Acct.IsZero() {
		return ErrAccountRequired
	}
	if m.Passphrase.IsEmpty() {
		return ErrPassphraseRequired
	}
	if m.PrivateKey.IsZero() {
		return ErrPrivateKeyRequired
	}
	return nil
}

func (m PassphraseMethod) Validate() error {
	if m.Acct.IsZero() {
		return ErrAccountRequired
	}
	if m.Passphrase.IsEmpty() {
		return ErrPassphraseRequired
	}
	return nil
}

func (m BiometricMethod) Validate() error {
	if m.Acct.IsZero() {
		return ErrAccountRequired
	}
	return nil
}
