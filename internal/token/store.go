package token

import (
	"context"
	"time"

	"vendora/pkg/tenants"
)

// RefreshRecord is the persisted server-side half of a refresh token. Rows
// are superseded, never deleted, so a consumed row presented again reads as
// theft rather than as an unknown token.
type RefreshRecord struct {
	ID        string // jti of the signed refresh token
	FamilyID  string // lineage root, shared by all successors of one login
	SubjectID string
	Role      string
	Realm     tenants.Realm
	CreatedAt time.Time
	ExpiresAt time.Time
	Consumed  bool
}

type RefreshStore interface {
	// Insert stores a fresh, unconsumed record (login or registration).
	Insert(ctx context.Context, rec RefreshRecord) error

	// ConsumeAndReplace atomically marks the record id consumed and inserts
	// its successor. Exactly one of two concurrent calls for the same id may
	// succeed. Returns ErrRecordNotFound when no such record exists and
	// ErrRecordConsumed when it was already used.
	ConsumeAndReplace(ctx context.Context, id string, successor RefreshRecord) error

	// Consume marks a record used without a successor (logout).
	Consume(ctx context.Context, id string) error

	// RevokeFamily consumes every live record in a family. Terminal.
	RevokeFamily(ctx context.Context, familyID string) error
}
