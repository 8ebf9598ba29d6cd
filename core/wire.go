package core

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// WireConfig names the server's REST contract: endpoint paths and JSON
// field names. The deployed backend defines these; they are configuration,
// not logic, so a deployment can rename a field without touching code.
type WireConfig struct {
	ChallengePath string `toml:"challenge_path"`
	SessionPath   string `toml:"session_path"`
	RefreshPath   string `toml:"refresh_path"`
	RevokePath    string `toml:"revoke_path"`
	MFAPath       string `toml:"mfa_path"`

	FieldAccountID    string `toml:"field_account_id"`
	FieldChallenge    string `toml:"field_challenge"`
	FieldSignature    string `toml:"field_signature"`
	FieldPublicKey    string `toml:"field_public_key"`
	FieldToken        string `toml:"field_token"`
	FieldRefreshToken string `toml:"field_refresh_token"`
	FieldProviders    string `toml:"field_mfa_providers"`
	FieldProvider     string `toml:"field_mfa_provider"`
	FieldCode         string `toml:"field_mfa_code"`
}

// DefaultWireConfig returns the contract of the reference backend.
func DefaultWireConfig() WireConfig {
	return WireConfig{
		ChallengePath: "/v1/auth/challenge",
		SessionPath:   "/v1/auth/sessions",
		RefreshPath:   "/v1/auth/sessions/refresh",
		RevokePath:    "/v1/auth/sessions/revoke",
		MFAPath:       "/v1/auth/sessions/mfa",

		FieldAccountID:    "account_id",
		FieldChallenge:    "challenge",
		FieldSignature:    "signature",
		FieldPublicKey:    "public_key",
		FieldToken:        "token",
		FieldRefreshToken: "refresh_token",
		FieldProviders:    "mfa_providers",
		FieldProvider:     "mfa_provider",
		FieldCode:         "mfa_code",
	}
}

// LoadWireConfig reads a TOML wire contract file. Keys absent from the
// file keep their defaults.
func LoadWireConfig(path string) (WireConfig, error) {
	cfg := DefaultWireConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return WireConfig{}, fmt.Errorf("failed to load wire config: %w", err)
	}
	return cfg, nil
}
