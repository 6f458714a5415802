package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"vendora/pkg/tenants"
)

const bcryptCost = 12

// dummyHash is compared against when the user does not exist so a probe
// cannot distinguish "no such user" from "wrong password" by timing.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("vendora-dummy-credential"), bcryptCost)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Register creates a user in the given realm. Role defaults by realm:
// shop users are customers, master users are operators.
func (s *Service) Register(ctx context.Context, realm tenants.Realm, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: malformed email", ErrInvalidCredentials)
	}
	if len(password) < 8 {
		return User{}, fmt.Errorf("%w: password too short", ErrInvalidCredentials)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	role := "customer"
	if realm.Kind == tenants.KindMaster {
		role = "operator"
	}
	u := User{
		ID:           uuid.NewString(),
		Realm:        realm,
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.store.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate validates credentials within one realm. The bcrypt compare
// always runs, even for unknown users.
func (s *Service) Authenticate(ctx context.Context, realm tenants.Realm, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.store.FindByEmail(ctx, realm, email)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// SubjectExists confirms a verified token's subject is still provisioned.
func (s *Service) SubjectExists(ctx context.Context, subjectID string) (bool, error) {
	return s.store.Exists(ctx, subjectID)
}
