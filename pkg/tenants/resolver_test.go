package tenants

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	Store
	calls int
}

func (c *countingStore) TenantBySubdomain(ctx context.Context, label string) (Tenant, error) {
	c.calls++
	return c.Store.TenantBySubdomain(ctx, label)
}

type failingStore struct{}

func (failingStore) TenantBySubdomain(context.Context, string) (Tenant, error) {
	return Tenant{}, errors.New("connection refused")
}
func (failingStore) TenantByID(context.Context, string) (Tenant, error) {
	return Tenant{}, errors.New("connection refused")
}

func newTestResolver(t *testing.T) (*Resolver, *memStore) {
	t.Helper()
	store := NewMemoryStore()
	store.Add(Tenant{ID: "t-shop9", Subdomain: "shop9", Name: "Shop Nine"})
	store.Add(Tenant{ID: "t-acme", Subdomain: "acme", Name: "Acme"})
	return NewResolver(store, "example.com", "localhost", 5*time.Minute, nil), store
}

func TestResolveClassification(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	tests := []struct {
		name string
		host string
		want Realm
	}{
		{"bare root", "example.com", Master()},
		{"www label", "www.example.com", Master()},
		{"root with port", "example.com:8080", Master()},
		{"case folded", "WWW.Example.COM", Master()},
		{"shop host", "shop9.example.com", Shop("t-shop9")},
		{"shop host with port", "acme.example.com:443", Shop("t-acme")},
		{"dev alias root", "localhost", Master()},
		{"dev alias shop", "shop9.localhost:3000", Shop("t-shop9")},
		{"unprovisioned label", "ghost.example.com", Unknown()},
		{"nested labels", "a.shop9.example.com", Unknown()},
		{"foreign domain", "evil.test", Unknown()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(ctx, tt.host))
		})
	}
}

func TestResolveIsIdempotentAndCached(t *testing.T) {
	store := NewMemoryStore()
	store.Add(Tenant{ID: "t-shop9", Subdomain: "shop9"})
	counting := &countingStore{Store: store}
	r := NewResolver(counting, "example.com", "localhost", 5*time.Minute, nil)
	ctx := context.Background()

	first := r.Resolve(ctx, "shop9.example.com")
	second := r.Resolve(ctx, "shop9.example.com:8080")
	require.Equal(t, first, second)
	assert.Equal(t, Shop("t-shop9"), first)
	assert.Equal(t, 1, counting.calls, "second resolve must be served from cache")
}

func TestResolveCacheExpiresByTTL(t *testing.T) {
	store := NewMemoryStore()
	store.Add(Tenant{ID: "t-shop9", Subdomain: "shop9"})
	counting := &countingStore{Store: store}
	r := NewResolver(counting, "example.com", "", time.Minute, nil)

	clock := time.Unix(1000, 0)
	r.now = func() time.Time { return clock }

	require.Equal(t, Shop("t-shop9"), r.Resolve(context.Background(), "shop9.example.com"))
	require.Equal(t, 1, counting.calls)

	// Tenant renamed upstream; stale entry survives until the TTL lapses.
	store.Remove("shop9")
	store.Add(Tenant{ID: "t-shop9b", Subdomain: "shop9"})
	assert.Equal(t, Shop("t-shop9"), r.Resolve(context.Background(), "shop9.example.com"))

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, Shop("t-shop9b"), r.Resolve(context.Background(), "shop9.example.com"))
	assert.Equal(t, 2, counting.calls)
}

func TestResolveMissesAreNotCached(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, "example.com", "", 5*time.Minute, nil)
	ctx := context.Background()

	require.Equal(t, Unknown(), r.Resolve(ctx, "fresh.example.com"))

	// Provisioned after the miss; must resolve without waiting for any TTL.
	store.Add(Tenant{ID: "t-fresh", Subdomain: "fresh"})
	assert.Equal(t, Shop("t-fresh"), r.Resolve(ctx, "fresh.example.com"))
}

func TestResolveStoreErrorFailsClosed(t *testing.T) {
	r := NewResolver(failingStore{}, "example.com", "", 5*time.Minute, nil)
	assert.Equal(t, Unknown(), r.Resolve(context.Background(), "shop9.example.com"),
		"a storage error must not be interpreted as master")
}
