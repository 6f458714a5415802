// pkg/middleware/realm.go
package middleware

import (
	"context"
	"net/http"

	"vendora/pkg/tenants"
)

type ctxRealmKey struct{}

// WithRealm classifies the inbound host once per request and stores the
// result in the context. An unknown tenant is terminal here: the request is
// answered with 404 and never reaches a handler, so nothing downstream can
// accidentally treat it as the master realm.
func WithRealm(resolver *tenants.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Allow health/metrics without tenant context
			switch r.URL.Path {
			case "/healthz", "/metrics":
				next.ServeHTTP(w, r)
				return
			}
			realm := resolver.Resolve(r.Context(), r.Host)
			if realm.Kind == tenants.KindUnknown {
				http.Error(w, "unknown tenant", http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), ctxRealmKey{}, realm)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RealmFrom returns the realm stored by WithRealm. The zero value (kind "")
// means the middleware did not run for this request.
func RealmFrom(ctx context.Context) tenants.Realm {
	if v := ctx.Value(ctxRealmKey{}); v != nil {
		return v.(tenants.Realm)
	}
	return tenants.Realm{}
}
