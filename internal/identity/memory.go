package identity

import (
	"context"
	"sync"

	"vendora/pkg/tenants"
)

type memStore struct {
	mu    sync.RWMutex
	byKey map[string]User // realm kind | tenant | email
	byID  map[string]User
}

func NewMemoryStore() Store {
	return &memStore{byKey: map[string]User{}, byID: map[string]User{}}
}

func key(realm tenants.Realm, email string) string {
	return string(realm.Kind) + "|" + realm.TenantID + "|" + email
}

func (m *memStore) Create(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(u.Realm, u.Email)
	if _, ok := m.byKey[k]; ok {
		return ErrUserExists
	}
	m.byKey[k] = u
	m.byID[u.ID] = u
	return nil
}

func (m *memStore) FindByEmail(ctx context.Context, realm tenants.Realm, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.byKey[key(realm, email)]; ok {
		return u, nil
	}
	return User{}, ErrNotFound
}

func (m *memStore) Exists(ctx context.Context, subjectID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byID[subjectID]
	return ok, nil
}
