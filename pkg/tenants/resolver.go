// pkg/tenants/resolver.go
package tenants

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// reserved labels that always mean the operator realm.
const wwwLabel = "www"

// Resolver classifies inbound hosts into realms. Positive lookups are cached
// per label with a TTL so a renamed or deleted tenant converges within one
// TTL; misses are not cached so freshly provisioned shops work immediately.
type Resolver struct {
	store    Store
	root     string
	devRoot  string
	cacheTTL time.Duration
	log      *zap.SugaredLogger

	now func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	tenantID string
	expires  time.Time
}

func NewResolver(store Store, rootDomain, devDomain string, cacheTTL time.Duration, log *zap.SugaredLogger) *Resolver {
	return &Resolver{
		store:    store,
		root:     strings.ToLower(rootDomain),
		devRoot:  strings.ToLower(devDomain),
		cacheTTL: cacheTTL,
		log:      log,
		now:      time.Now,
		cache:    map[string]cacheEntry{},
	}
}

// Resolve maps a raw Host header value to a realm. A lookup miss or storage
// error yields Unknown, never Master: an unresolvable subdomain is a
// not-found outcome, not the operator realm.
func (r *Resolver) Resolve(ctx context.Context, host string) Realm {
	label, ok := r.label(host)
	if !ok {
		return Unknown()
	}
	if label == "" || label == wwwLabel {
		return Master()
	}

	if id, ok := r.cached(label); ok {
		return Shop(id)
	}

	t, err := r.store.TenantBySubdomain(ctx, label)
	if err != nil {
		if r.log != nil && err != ErrNotFound {
			r.log.Warnw("tenant lookup failed", "label", label, "err", err)
		}
		return Unknown()
	}

	r.mu.Lock()
	r.cache[label] = cacheEntry{tenantID: t.ID, expires: r.now().Add(r.cacheTTL)}
	r.mu.Unlock()
	return Shop(t.ID)
}

func (r *Resolver) cached(label string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[label]
	if !ok || r.now().After(e.expires) {
		return "", false
	}
	return e.tenantID, true
}

// label normalizes a host and extracts the leading subdomain label. The
// second return is false when the host does not belong to the configured
// root domain (or the local dev alias) at all.
func (r *Resolver) label(host string) (string, bool) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if i := strings.Index(host, ":"); i > 0 {
		host = host[:i]
	}
	for _, root := range []string{r.root, r.devRoot} {
		if root == "" {
			continue
		}
		if host == root {
			return "", true
		}
		if suffix := "." + root; strings.HasSuffix(host, suffix) {
			label := strings.TrimSuffix(host, suffix)
			// nested labels (a.b.root) are not valid shop hosts
			if label == "" || strings.Contains(label, ".") {
				return "", false
			}
			return label, true
		}
	}
	return "", false
}
