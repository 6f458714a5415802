// Package gateway is the single entry point for every inbound request. It
// classifies the host into a realm, rewrites page paths into the realm
// namespace, gates sensitive pages on a valid access cookie, and hosts the
// credential endpoints under /api/auth.
package gateway

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vendora/internal/identity"
	"vendora/internal/ratelimit"
	"vendora/internal/secevent"
	"vendora/internal/token"
	"vendora/pkg/config"
	"vendora/pkg/middleware"
	"vendora/pkg/tenants"
)

type Gateway struct {
	log      *zap.SugaredLogger
	cfg      config.Config
	resolver *tenants.Resolver
	tokens   *token.Service
	users    *identity.Service
	limiter  *ratelimit.Limiter
	events   *secevent.Logger

	// Downstream handlers, out of scope for the core. pages receives page
	// requests after the realm rewrite; api receives non-auth API requests
	// with the realm already in context. Both may be nil.
	pages http.Handler
	api   http.Handler

	sensitive map[string]struct{}
}

func New(
	log *zap.SugaredLogger,
	cfg config.Config,
	resolver *tenants.Resolver,
	tokens *token.Service,
	users *identity.Service,
	limiter *ratelimit.Limiter,
	events *secevent.Logger,
	pages, api http.Handler,
) *Gateway {
	if pages == nil {
		pages = http.NotFoundHandler()
	}
	if api == nil {
		api = http.NotFoundHandler()
	}
	sensitive := make(map[string]struct{}, len(cfg.SensitivePaths))
	for _, p := range cfg.SensitivePaths {
		sensitive[p] = struct{}{}
	}
	return &Gateway{
		log:       log,
		cfg:       cfg,
		resolver:  resolver,
		tokens:    tokens,
		users:     users,
		limiter:   limiter,
		events:    events,
		pages:     pages,
		api:       api,
		sensitive: sensitive,
	}
}

func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(g.log))
	r.Use(middleware.CORS(g.cfg.AllowedOrigins))
	r.Use(middleware.Tracing())
	r.Use(middleware.WithRealm(g.resolver))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", g.handleRegister)
		api.Post("/auth/login", g.handleLogin)
		api.Post("/auth/refresh", g.handleRefresh)
		api.Post("/auth/logout", g.handleLogout)
		api.Get("/auth/me", g.handleMe)
		// Everything else under /api passes through unmodified; the realm
		// travels in the context and downstream handlers call Verify
		// themselves.
		api.NotFound(g.forwardAPI)
	})

	r.NotFound(g.servePage)
	return r
}

func (g *Gateway) forwardAPI(w http.ResponseWriter, r *http.Request) {
	g.api.ServeHTTP(w, r)
}

// servePage rewrites a page path into the realm namespace so one routing
// table serves both realms, gating the sensitive allow-list first.
func (g *Gateway) servePage(w http.ResponseWriter, r *http.Request) {
	realm := middleware.RealmFrom(r.Context())
	var ns string
	switch realm.Kind {
	case tenants.KindMaster:
		ns = "/master"
	case tenants.KindShop:
		ns = "/shop"
	default:
		http.NotFound(w, r)
		return
	}

	path := r.URL.Path
	if _, gated := g.sensitive[path]; gated {
		if !g.hasValidAccessCookie(r, realm) {
			q := url.Values{"callback": {path}}
			http.Redirect(w, r, "/login?"+q.Encode(), http.StatusSeeOther)
			return
		}
	}

	r2 := r.Clone(r.Context())
	r2.URL.Path = ns + path
	g.pages.ServeHTTP(w, r2)
}

// hasValidAccessCookie is the page-path auth probe. An absent or invalid
// token degrades to anonymous here; Verify emits the audit event for the
// invalid case.
func (g *Gateway) hasValidAccessCookie(r *http.Request, realm tenants.Realm) bool {
	c, err := r.Cookie(accessCookie)
	if err != nil || c.Value == "" {
		return false
	}
	_, err = g.tokens.Verify(r.Context(), c.Value, realm)
	return err == nil
}
