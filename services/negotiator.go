package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mvercan/latch/core"
)

// Negotiator performs the network handshake against the auth server. It
// builds request bodies from the wire config, signs the server challenge,
// and maps status codes to the error taxonomy. It never retries; the
// session manager owns retry and backoff policy, so every call here is a
// single pass or fail.
type Negotiator struct {
	transport core.Transport
	wire      core.WireConfig
	log       *slog.Logger
}

func NewNegotiator(transport core.Transport, wire core.WireConfig, log *slog.Logger) *Negotiator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Negotiator{transport: transport, wire: wire, log: log}
}

// SignInResult is the server's answer to a signed challenge. When the
// account has pending multi-factor providers the token is provisional: the
// server will not honor it until the MFA step confirms.
type SignInResult struct {
	Token        *core.Token
	RefreshToken string
	Providers    []string
}

// SignIn requests a challenge, signs it, and exchanges the signature for a
// token (or a pending MFA provider list).
func (n *Negotiator) SignIn(ctx context.Context, acct core.Account, km *core.KeyMaterial) (*SignInResult, error) {
	challenge, err := n.requestChallenge(ctx, acct)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{
		n.wire.FieldAccountID: acct.ID.String(),
		n.wire.FieldChallenge: challenge,
		n.wire.FieldSignature: base64.RawURLEncoding.EncodeToString(km.Sign([]byte(challenge))),
		n.wire.FieldPublicKey: base64.RawURLEncoding.EncodeToString(km.Public()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build sign-in request: %w", err)
	}

	status, resp, err := n.transport.Post(ctx, acct.ServerURL+n.wire.SessionPath, nil, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetworkUnavailable, err)
	}
	if status < 200 || status > 299 {
		return nil, n.mapSignInStatus(status)
	}

	fields, err := decodeFields(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrServerRejected, err)
	}

	compact := stringField(fields, n.wire.FieldToken)
	if compact == "" {
		return nil, fmt.Errorf("%w: response carries no token", core.ErrServerRejected)
	}
	token, err := core.ParseToken(compact)
	if err != nil {
		// The server handed us something we cannot interpret; this is a
		// protocol inconsistency, not a credential problem.
		return nil, fmt.Errorf("%w: %v", core.ErrServerRejected, err)
	}

	return &SignInResult{
		Token:        token,
		RefreshToken: stringField(fields, n.wire.FieldRefreshToken),
		Providers:    stringsField(fields, n.wire.FieldProviders),
	}, nil
}

// Refresh presents the refresh token alongside the still-honored session
// token and exchanges them for a new pair without re-presenting
// credentials. A 401/403 means the server invalidated the session; the
// caller must fall back to a full sign-in. When the server does not rotate
// the refresh token the current one is returned unchanged.
func (n *Negotiator) Refresh(ctx context.Context, acct core.Account, current *core.Token, refreshToken string) (*core.Token, string, error) {
	req := map[string]string{
		n.wire.FieldAccountID: acct.ID.String(),
	}
	if refreshToken != "" {
		req[n.wire.FieldRefreshToken] = refreshToken
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build refresh request: %w", err)
	}

	header := map[string]string{"Authorization": "Bearer " + current.Raw}
	status, resp, err := n.transport.Post(ctx, acct.ServerURL+n.wire.RefreshPath, header, body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", core.ErrNetworkUnavailable, err)
	}

	switch {
	case status >= 200 && status <= 299:
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, "", core.ErrSessionRevoked
	default:
		return nil, "", fmt.Errorf("%w: refresh returned status %d", core.ErrServerRejected, status)
	}

	fields, err := decodeFields(resp)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", core.ErrServerRejected, err)
	}

	token, err := core.ParseToken(stringField(fields, n.wire.FieldToken))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", core.ErrServerRejected, err)
	}
	if rotated := stringField(fields, n.wire.FieldRefreshToken); rotated != "" {
		refreshToken = rotated
	}
	return token, refreshToken, nil
}

// SignOut revokes the session server-side. Best effort: the caller clears
// local state regardless of the outcome here.
func (n *Negotiator) SignOut(ctx context.Context, acct core.Account, token *core.Token) error {
	body, err := json.Marshal(map[string]string{
		n.wire.FieldAccountID: acct.ID.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}

	header := map[string]string{"Authorization": "Bearer " + token.Raw}
	status, _, err := n.transport.Post(ctx, acct.ServerURL+n.wire.RevokePath, header, body)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNetworkUnavailable, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: revoke returned status %d", core.ErrServerRejected, status)
	}
	return nil
}

func (n *Negotiator) requestChallenge(ctx context.Context, acct core.Account) (string, error) {
	body, err := json.Marshal(map[string]string{
		n.wire.FieldAccountID: acct.ID.String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to build challenge request: %w", err)
	}

	status, resp, err := n.transport.Post(ctx, acct.ServerURL+n.wire.ChallengePath, nil, body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrNetworkUnavailable, err)
	}
	if status < 200 || status > 299 {
		return "", n.mapSignInStatus(status)
	}

	fields, err := decodeFields(resp)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrServerRejected, err)
	}
	challenge := stringField(fields, n.wire.FieldChallenge)
	if challenge == "" {
		return "", fmt.Errorf("%w: response carries no challenge", core.ErrServerRejected)
	}
	return challenge, nil
}

func (n *Negotiator) mapSignInStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.ErrInvalidCredentials
	case http.StatusLocked:
		return core.ErrAccountLocked
	default:
		return fmt.Errorf("%w: status %d", core.ErrServerRejected, status)
	}
}

func decodeFields(body []byte) (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %v", err)
	}
	return fields, nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func stringsField(fields map[string]json.RawMessage, key string) []string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil
	}
	return ss
}
