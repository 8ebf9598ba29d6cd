package core

import (
	"strings"

	"github.com/google/uuid"
)

// AccountID is the opaque 128-bit account identifier. Its canonical textual
// form is lower-case.
type AccountID struct {
	id uuid.UUID
}

// NewAccountID generates a fresh random account identifier.
func NewAccountID() AccountID {
	return AccountID{id: uuid.New()}
}

// ParseAccountID parses the textual form of an account identifier.
// Input casing is accepted; the parsed value canonicalizes to lower-case.
func ParseAccountID(s string) (AccountID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return AccountID{}, ErrInvalidAccountID
	}
	return AccountID{id: id}, nil
}

// String returns the canonical lower-case textual form.
func (a AccountID) String() string {
	return a.id.String()
}

func (a AccountID) IsZero() bool {
	return a.id == uuid.Nil
}

// Account identifies a remote account. Immutable once created; many may be
// stored locally, at most one is active in a running session.
type Account struct {
	ID          AccountID
	ServerURL   string
	Fingerprint string
}

// NewAccount builds an account after validating its identity fields.
func NewAccount(id AccountID, serverURL, fingerprint string) (Account, error) {
	if id.IsZero() {
		return Account{}, ErrInvalidAccountID
	}
	if serverURL == "" {
		return Account{}, ErrServerURLRequired
	}
	return Account{
		ID:          id,
		ServerURL:   strings.TrimRight(serverURL, "/"),
		Fingerprint: fingerprint,
	}, nil
}

func (a Account) IsZero() bool {
	return a.ID.IsZero()
}
