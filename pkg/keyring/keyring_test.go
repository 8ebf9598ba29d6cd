package keyring

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/mvercan/latch/core"
)

// Requirement: store/load/delete round-trip keyed by account id; a miss is
// core.ErrKeyNotFound.
func TestFileKeyStore(t *testing.T) {
	ctx := context.Background()
	store := New(filepath.Join(t.TempDir(), "keys"))
	id := core.NewAccountID()

	if _, err := store.Load(ctx, id); !errors.Is(err, core.ErrKeyNotFound) {
		t.Fatalf("Load() on empty store error = %v, want ErrKeyNotFound", err)
	}

	armored := core.ArmoredKey("$latchkey$raw$c2VlZA")
	if err := store.Store(ctx, id, armored); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != armored {
		t.Errorf("Load() = %q, want %q", got, armored)
	}

	// Keys for other accounts stay independent.
	other := core.NewAccountID()
	if _, err := store.Load(ctx, other); !errors.Is(err, core.ErrKeyNotFound) {
		t.Errorf("Load() for other account error = %v, want ErrKeyNotFound", err)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, id); !errors.Is(err, core.ErrKeyNotFound) {
		t.Errorf("Load() after Delete() error = %v, want ErrKeyNotFound", err)
	}

	// Deleting an absent key is not an error.
	if err := store.Delete(ctx, id); err != nil {
		t.Errorf("Delete() of absent key error = %v", err)
	}
}

// Requirement: key files are not readable by other users.
func TestFileKeyStore_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "keys")
	store := New(dir)
	id := core.NewAccountID()

	if err := store.Store(ctx, id, "$latchkey$raw$c2VlZA"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, id.String()+".key"))
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key file mode = %o, want 600", perm)
	}

	dirInfo, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat key dir: %v", err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0o700 {
		t.Errorf("key dir mode = %o, want 700", perm)
	}
}
