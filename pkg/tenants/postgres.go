// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed tenant store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  id uuid PRIMARY KEY,
  subdomain text UNIQUE NOT NULL,
  name text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS tenants_subdomain_idx ON tenants(subdomain);
`)
	return err
}

// SeedFromEnv ingests initial tenant rows.
// jsonSeed format (TENANT_SEED_JSON):
// [{"id":"...","subdomain":"acme","name":"Acme Goods"}]
func SeedFromEnv(ctx context.Context, dbPool *pgxpool.Pool, jsonSeed string) error {
	if jsonSeed == "" {
		return nil
	}
	var entries []struct {
		ID, Subdomain, Name string
	}
	if err := json.Unmarshal([]byte(jsonSeed), &entries); err != nil {
		return err
	}
	for _, entry := range entries {
		_, _ = dbPool.Exec(ctx, `INSERT INTO tenants(id,subdomain,name)
		  VALUES ($1,$2,$3)
		  ON CONFLICT (id) DO UPDATE SET subdomain=EXCLUDED.subdomain,name=EXCLUDED.name,updated_at=NOW()`,
			entry.ID, entry.Subdomain, entry.Name)
	}
	return nil
}

func (p *pgStore) TenantBySubdomain(ctx context.Context, label string) (Tenant, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT id,subdomain,name FROM tenants WHERE subdomain=$1`, label)
	var t Tenant
	if err := row.Scan(&t.ID, &t.Subdomain, &t.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

func (p *pgStore) TenantByID(ctx context.Context, id string) (Tenant, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT id,subdomain,name FROM tenants WHERE id=$1`, id)
	var t Tenant
	if err := row.Scan(&t.ID, &t.Subdomain, &t.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}
