package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TokenHeader is the decoded first segment of a compact token.
type TokenHeader struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ,omitempty"`
}

// TokenClaims is the decoded second segment. Expiration is epoch seconds,
// always interpreted as UTC.
type TokenClaims struct {
	Issuer    string `json:"iss,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Audience  string `json:"aud,omitempty"`
	ExpiresAt int64  `json:"exp"`
}

// Token is a parsed compact signed token. Raw preserves the exact serialized
// form the server issued; it is what goes back on the wire. Re-serializing
// the decoded segments is never attempted since the server validates the
// original bytes and signature.
type Token struct {
	Raw       string
	Header    TokenHeader
	Claims    TokenClaims
	Signature []byte
}

type rawClaims struct {
	Issuer    string `json:"iss,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Audience  string `json:"aud,omitempty"`
	ExpiresAt *int64 `json:"exp"`
}

// ParseToken splits a compact token into its three dot-separated segments
// and decodes header and claims. Any malformed segment or a missing exp
// claim fails with ErrMalformedToken.
func ParseToken(compact string) (*Token, error) {
	segments := strings.Split(compact, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(segments))
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(segments[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header segment: %v", ErrMalformedToken, err)
	}

	var header TokenHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("%w: header JSON: %v", ErrMalformedToken, err)
	}

	claimBytes, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return nil, fmt.Errorf("%w: claims segment: %v", ErrMalformedToken, err)
	}

	var claims rawClaims
	if err := json.Unmarshal(claimBytes, &claims); err != nil {
		return nil, fmt.Errorf("%w: claims JSON: %v", ErrMalformedToken, err)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}

	signature, err := base64.RawURLEncoding.DecodeString(segments[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature segment: %v", ErrMalformedToken, err)
	}

	return &Token{
		Raw:    compact,
		Header: header,
		Claims: TokenClaims{
			Issuer:    claims.Issuer,
			Subject:   claims.Subject,
			Audience:  claims.Audience,
			ExpiresAt: *claims.ExpiresAt,
		},
		Signature: signature,
	}, nil
}

// ExpiresAt returns the expiry instant in UTC.
func (t *Token) ExpiresAt() time.Time {
	return time.Unix(t.Claims.ExpiresAt, 0).UTC()
}

// Expired reports whether now is at or past the expiry claim.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt())
}

// NeedsRefresh reports whether less than margin remains before expiry.
// An already expired token also needs refresh.
func (t *Token) NeedsRefresh(now time.Time, margin time.Duration) bool {
	return t.ExpiresAt().Sub(now) < margin
}

// Equal compares tokens structurally. Because decoding is deterministic,
// equal raw forms imply equal decoded fields.
func (t *Token) Equal(o *Token) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.Raw == o.Raw
}
