// pkg/tenants/memory.go
package tenants

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"
)

type memStore struct {
	log     *zap.SugaredLogger
	mu      sync.RWMutex
	byLabel map[string]Tenant
}

// NewMemoryStore returns an empty in-memory store (tests, tooling).
func NewMemoryStore() *memStore {
	return &memStore{byLabel: map[string]Tenant{}}
}

// NewMemoryStoreFromEnv seeds an in-memory store from TENANT_SEED_JSON for
// local bring-up without postgres.
func NewMemoryStoreFromEnv(log *zap.SugaredLogger) Store {
	s := &memStore{log: log, byLabel: map[string]Tenant{}}
	if seed := os.Getenv("TENANT_SEED_JSON"); seed != "" {
		var entries []struct {
			ID, Subdomain, Name string
		}
		_ = json.Unmarshal([]byte(seed), &entries)
		for _, e := range entries {
			s.byLabel[e.Subdomain] = Tenant{ID: e.ID, Subdomain: e.Subdomain, Name: e.Name}
		}
	}
	return s
}

// Add registers a tenant. Test helper.
func (m *memStore) Add(t Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byLabel[t.Subdomain] = t
}

// Remove deletes a tenant by label. Test helper.
func (m *memStore) Remove(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byLabel, label)
}

func (m *memStore) TenantBySubdomain(ctx context.Context, label string) (Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.byLabel[label]; ok {
		return t, nil
	}
	return Tenant{}, ErrNotFound
}

func (m *memStore) TenantByID(ctx context.Context, id string) (Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.byLabel {
		if t.ID == id {
			return t, nil
		}
	}
	return Tenant{}, ErrNotFound
}
