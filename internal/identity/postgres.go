package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vendora/pkg/tenants"
)

type pgStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

// EnsureSchema creates the users table. Idempotent. One table serves both
// realms; master rows carry a NULL tenant_id.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS users (
  id uuid PRIMARY KEY,
  realm text NOT NULL,
  tenant_id uuid,
  email text NOT NULL,
  role text NOT NULL DEFAULT 'customer',
  password_hash text NOT NULL,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS users_realm_email_idx ON users(realm, (COALESCE(tenant_id, '00000000-0000-0000-0000-000000000000'::uuid)), email);
`)
	return err
}

func (p *pgStore) Create(ctx context.Context, u User) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO users(id,realm,tenant_id,email,role,password_hash,created_at)
	  VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7)`,
		u.ID, string(u.Realm.Kind), u.Realm.TenantID, u.Email, u.Role, u.PasswordHash, u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrUserExists
	}
	return err
}

func (p *pgStore) FindByEmail(ctx context.Context, realm tenants.Realm, email string) (User, error) {
	row := p.pool.QueryRow(ctx, `SELECT id,realm,COALESCE(tenant_id::text,''),email,role,password_hash,created_at
	  FROM users WHERE realm=$1 AND COALESCE(tenant_id::text,'')=$2 AND email=$3`,
		string(realm.Kind), realm.TenantID, email)
	var (
		u    User
		kind string
	)
	if err := row.Scan(&u.ID, &kind, &u.Realm.TenantID, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.Realm.Kind = tenants.Kind(kind)
	return u, nil
}

func (p *pgStore) Exists(ctx context.Context, subjectID string) (bool, error) {
	var one int
	err := p.pool.QueryRow(ctx, `SELECT 1 FROM users WHERE id=$1`, subjectID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// isUniqueViolation detects a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
