package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vendora/pkg/db"
)

// pgStore persists refresh records in postgres. Rotation relies on a
// conditional UPDATE inside one transaction, so two concurrent rotations of
// the same token cannot both observe an unconsumed row.
type pgStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) RefreshStore {
	return &pgStore{pool: pool}
}

// EnsureSchema creates the refresh token table. Idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS refresh_tokens (
  id uuid PRIMARY KEY,
  family_id uuid NOT NULL,
  subject_id text NOT NULL,
  role text NOT NULL DEFAULT '',
  realm text NOT NULL,
  tenant_id uuid,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  expires_at timestamptz NOT NULL,
  consumed_at timestamptz
);
CREATE INDEX IF NOT EXISTS refresh_tokens_family_idx ON refresh_tokens(family_id);
`)
	return err
}

func (p *pgStore) Insert(ctx context.Context, rec RefreshRecord) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO refresh_tokens(id,family_id,subject_id,role,realm,tenant_id,created_at,expires_at)
	  VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8)`,
		rec.ID, rec.FamilyID, rec.SubjectID, rec.Role, string(rec.Realm.Kind), rec.Realm.TenantID, rec.CreatedAt, rec.ExpiresAt)
	return err
}

func (p *pgStore) ConsumeAndReplace(ctx context.Context, id string, successor RefreshRecord) error {
	var (
		tx  pgx.Tx
		err error
	)
	if successor.Realm.TenantID != "" {
		tx, err = db.BeginTxWithTenant(ctx, p.pool, successor.Realm.TenantID)
	} else {
		tx, err = p.pool.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE refresh_tokens SET consumed_at=NOW() WHERE id=$1 AND consumed_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var consumed bool
		err := tx.QueryRow(ctx, `SELECT consumed_at IS NOT NULL FROM refresh_tokens WHERE id=$1`, id).Scan(&consumed)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("inspect record: %w", err)
		}
		return ErrRecordConsumed
	}

	if _, err := tx.Exec(ctx, `INSERT INTO refresh_tokens(id,family_id,subject_id,role,realm,tenant_id,created_at,expires_at)
	  VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8)`,
		successor.ID, successor.FamilyID, successor.SubjectID, successor.Role,
		string(successor.Realm.Kind), successor.Realm.TenantID, successor.CreatedAt, successor.ExpiresAt); err != nil {
		return fmt.Errorf("insert successor: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *pgStore) Consume(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `UPDATE refresh_tokens SET consumed_at=NOW() WHERE id=$1 AND consumed_at IS NULL`, id)
	return err
}

func (p *pgStore) RevokeFamily(ctx context.Context, familyID string) error {
	_, err := p.pool.Exec(ctx, `UPDATE refresh_tokens SET consumed_at=NOW() WHERE family_id=$1 AND consumed_at IS NULL`, familyID)
	return err
}
