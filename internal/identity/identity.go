// Package identity owns per-realm user records and credential checks. The
// gateway calls into it only at login and registration time; everything
// after that is carried by signed tokens.
package identity

import (
	"context"
	"errors"
	"time"

	"vendora/pkg/tenants"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("user not found")
)

// User is one principal, scoped to exactly one realm.
type User struct {
	ID           string
	Realm        tenants.Realm
	Email        string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
}

type Store interface {
	// Create inserts a user. Returns ErrUserExists when the (realm, email)
	// pair is taken.
	Create(ctx context.Context, u User) error
	// FindByEmail looks a user up within one realm. Returns ErrNotFound.
	FindByEmail(ctx context.Context, realm tenants.Realm, email string) (User, error)
	// Exists reports whether a subject id is still present.
	Exists(ctx context.Context, subjectID string) (bool, error)
}
