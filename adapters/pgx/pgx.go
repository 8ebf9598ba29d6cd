// Package pgx persists armored account keys in PostgreSQL. Use it when
// several processes on a host share one key store; for single-user
// installs the file-based keyring is the lighter choice.
package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvercan/latch/core"
)

// Adapter implements core.KeyStore over a pgx connection pool. The pool
// is owned by the caller; the adapter never closes it.
type Adapter struct {
	pool *pgxpool.Pool
}

var _ core.KeyStore = (*Adapter)(nil)

func New(pool *pgxpool.Pool) *Adapter {
	return &Adapter{pool: pool}
}

// EnsureSchema creates the key table if it does not exist. Armor is
// stored as text; the ciphertext inside it is already sealed, so the
// database never sees key material.
func (a *Adapter) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS account_keys (
	            account_id uuid PRIMARY KEY,
	            armor      text NOT NULL,
	            created_at timestamptz NOT NULL DEFAULT now(),
	            updated_at timestamptz NOT NULL DEFAULT now()
	          )`

	if _, err := a.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure key table: %w", err)
	}
	return nil
}

func (a *Adapter) Load(ctx context.Context, id core.AccountID) (core.ArmoredKey, error) {
	query := `SELECT armor FROM account_keys WHERE account_id = $1`

	var armor string
	err := a.pool.QueryRow(ctx, query, id.String()).Scan(&armor)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", core.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load key: %w", err)
	}
	return core.ArmoredKey(armor), nil
}

func (a *Adapter) Store(ctx context.Context, id core.AccountID, key core.ArmoredKey) error {
	query := `INSERT INTO account_keys (account_id, armor)
	          VALUES ($1, $2)
	          ON CONFLICT (account_id)
	          DO UPDATE SET armor = EXCLUDED.armor, updated_at = now()`

	if _, err := a.pool.Exec(ctx, query, id.String(), string(key)); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, id core.AccountID) error {
	query := `DELETE FROM account_keys WHERE account_id = $1`

	if _, err := a.pool.Exec(ctx, query, id.String()); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// ListAccounts returns the ids with a stored key, for account pickers.
func (a *Adapter) ListAccounts(ctx context.Context) ([]core.AccountID, error) {
	query := `SELECT account_id FROM account_keys ORDER BY created_at`

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []core.AccountID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		id, err := core.ParseAccountID(raw)
		if err != nil {
			return nil, fmt.Errorf("key table holds malformed account id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
