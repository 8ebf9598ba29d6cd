package pgx

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvercan/latch/core"
)

// Integration tests run when LATCH_DATABASE_URL points at a reachable
// Postgres; otherwise they skip so plain test runs stay fast.

func integrationAdapter(t *testing.T) *Adapter {
	t.Helper()

	dbURL := os.Getenv("LATCH_DATABASE_URL")
	if dbURL == "" {
		t.Skip("LATCH_DATABASE_URL is not set; skipping Postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	t.Cleanup(pool.Close)

	adapter := New(pool)
	if err := adapter.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return adapter
}

func TestAdapter_RoundTrip(t *testing.T) {
	adapter := integrationAdapter(t)
	ctx := context.Background()

	id := core.NewAccountID()
	t.Cleanup(func() { _ = adapter.Delete(context.Background(), id) })

	if _, err := adapter.Load(ctx, id); !errors.Is(err, core.ErrKeyNotFound) {
		t.Fatalf("Load() before store error = %v, want ErrKeyNotFound", err)
	}

	if err := adapter.Store(ctx, id, core.ArmoredKey("armor-1")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	got, err := adapter.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "armor-1" {
		t.Errorf("Load() = %q, want %q", got, "armor-1")
	}

	// Store again overwrites.
	if err := adapter.Store(ctx, id, core.ArmoredKey("armor-2")); err != nil {
		t.Fatalf("Store() overwrite error = %v", err)
	}
	got, err = adapter.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "armor-2" {
		t.Errorf("Load() after overwrite = %q, want %q", got, "armor-2")
	}

	ids, err := adapter.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts() error = %v", err)
	}
	found := false
	for _, listed := range ids {
		if listed == id {
			found = true
		}
	}
	if !found {
		t.Errorf("ListAccounts() = %v, missing %v", ids, id)
	}

	if err := adapter.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := adapter.Load(ctx, id); !errors.Is(err, core.ErrKeyNotFound) {
		t.Fatalf("Load() after delete error = %v, want ErrKeyNotFound", err)
	}
}
