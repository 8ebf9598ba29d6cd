// Package keyring is the default on-disk key store: one armored key file
// per account under a 0700 directory, files written 0600. Platform
// keystores (DPAPI, Keychain, libsecret) can replace it by implementing
// core.KeyStore.
package keyring

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mvercan/latch/core"
)

type FileKeyStore struct {
	dir string
}

var _ core.KeyStore = (*FileKeyStore)(nil)

func New(dir string) *FileKeyStore {
	return &FileKeyStore{dir: dir}
}

func (s *FileKeyStore) Load(_ context.Context, id core.AccountID) (core.ArmoredKey, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", core.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to read key file: %w", err)
	}
	return core.ArmoredKey(data), nil
}

func (s *FileKeyStore) Store(_ context.Context, id core.AccountID, key core.ArmoredKey) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	// Write to a temp file and rename so a crash never leaves a
	// truncated key on disk.
	tmp, err := os.CreateTemp(s.dir, ".key-*")
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict key file: %w", err)
	}
	if _, err := tmp.Write([]byte(key)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close key file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		return fmt.Errorf("failed to place key file: %w", err)
	}
	return nil
}

func (s *FileKeyStore) Delete(_ context.Context, id core.AccountID) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}

func (s *FileKeyStore) path(id core.AccountID) string {
	return filepath.Join(s.dir, id.String()+".key")
}
