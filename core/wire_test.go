package core

import (
	"os"
	"path/filepath"
	"testing"
)

// Requirement: wire config keys absent from the file keep their defaults;
// present keys override.
func TestLoadWireConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wire.toml")

	content := `
session_path = "/api/v2/login"
field_token = "access_token"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadWireConfig(path)
	if err != nil {
		t.Fatalf("LoadWireConfig() error = %v", err)
	}

	if cfg.SessionPath != "/api/v2/login" {
		t.Errorf("SessionPath = %q, want override", cfg.SessionPath)
	}
	if cfg.FieldToken != "access_token" {
		t.Errorf("FieldToken = %q, want override", cfg.FieldToken)
	}
	if cfg.ChallengePath != DefaultWireConfig().ChallengePath {
		t.Errorf("ChallengePath = %q, want default", cfg.ChallengePath)
	}
	if cfg.FieldProviders != "mfa_providers" {
		t.Errorf("FieldProviders = %q, want default", cfg.FieldProviders)
	}
}

func TestLoadWireConfig_MissingFile(t *testing.T) {
	if _, err := LoadWireConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("LoadWireConfig() succeeded on missing file")
	}
}
