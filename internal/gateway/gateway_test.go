package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vendora/internal/identity"
	"vendora/internal/ratelimit"
	"vendora/internal/secevent"
	"vendora/internal/token"
	"vendora/pkg/config"
	"vendora/pkg/middleware"
	"vendora/pkg/tenants"
)

type recordingHandler struct {
	path  string
	realm tenants.Realm
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.path = r.URL.Path
	h.realm = middleware.RealmFrom(r.Context())
	w.WriteHeader(http.StatusOK)
}

type countingIdentityStore struct {
	identity.Store
	finds int
}

func (c *countingIdentityStore) FindByEmail(ctx context.Context, realm tenants.Realm, email string) (identity.User, error) {
	c.finds++
	return c.Store.FindByEmail(ctx, realm, email)
}

type testEnv struct {
	handler http.Handler
	pages   *recordingHandler
	api     *recordingHandler
	ids     *countingIdentityStore
	users   *identity.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tstore := tenants.NewMemoryStore()
	tstore.Add(tenants.Tenant{ID: "t-shop9", Subdomain: "shop9", Name: "Shop Nine"})
	resolver := tenants.NewResolver(tstore, "example.com", "localhost", 5*time.Minute, nil)

	cfg := config.Config{
		Env:            "test",
		RootDomain:     "example.com",
		DevDomain:      "localhost",
		SigningSecret:  "0123456789abcdef0123456789abcdef",
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     time.Hour,
		SensitivePaths: []string{"/wallet/topup", "/account/settings"},
	}

	events := secevent.New(zap.NewNop().Sugar(), nil, "")
	tokens := token.NewService([]byte(cfg.SigningSecret), token.NewMemoryStore(), events, cfg.AccessTTL, cfg.RefreshTTL)
	ids := &countingIdentityStore{Store: identity.NewMemoryStore()}
	users := identity.NewService(ids)
	limiter := ratelimit.New(1000, time.Hour, nil)
	t.Cleanup(limiter.Close)

	pages := &recordingHandler{}
	api := &recordingHandler{}
	g := New(zap.NewNop().Sugar(), cfg, resolver, tokens, users, limiter, events, pages, api)
	return &testEnv{handler: g.Handler(), pages: pages, api: api, ids: ids, users: users}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestShopPageRewrite(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "http://shop9.example.com/login", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/shop/login", e.pages.path)
	assert.Equal(t, tenants.Shop("t-shop9"), e.pages.realm)
}

func TestMasterPageRewrite(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "http://example.com/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/master/", e.pages.path)
	assert.Equal(t, tenants.Master(), e.pages.realm)

	w = e.do(httptest.NewRequest(http.MethodGet, "http://www.example.com/catalog", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/master/catalog", e.pages.path)
}

func TestUnknownTenantIsTerminal(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "http://ghost.example.com/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(httptest.NewRequest(http.MethodPost, "http://ghost.example.com/api/auth/login", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNotFound, w.Code, "api paths must not fall back to master either")
}

func TestAPIPassthroughCarriesRealm(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "http://shop9.example.com/api/catalog/items", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/catalog/items", e.api.path, "api paths pass through unmodified")
	assert.Equal(t, tenants.Shop("t-shop9"), e.api.realm)
}

func TestSensitivePageRedirectsAnonymous(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "http://shop9.example.com/wallet/topup", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?callback=%2Fwallet%2Ftopup", w.Header().Get("Location"))
	assert.Empty(t, e.pages.path, "the page handler must not run")
}

func TestSensitivePageAdmitsValidCookie(t *testing.T) {
	e := newTestEnv(t)
	cookies := registerAndLogin(t, e, "shop9.example.com", "buyer@example.com")

	req := httptest.NewRequest(http.MethodGet, "http://shop9.example.com/wallet/topup", nil)
	addCookies(req, cookies)
	w := e.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/shop/wallet/topup", e.pages.path)
}

func TestSensitivePageRejectsForeignRealmCookie(t *testing.T) {
	e := newTestEnv(t)
	// Authenticated against master, then presented on a shop host.
	cookies := registerAndLogin(t, e, "example.com", "admin@example.com")

	req := httptest.NewRequest(http.MethodGet, "http://shop9.example.com/wallet/topup", nil)
	addCookies(req, cookies)
	w := e.do(req)
	assert.Equal(t, http.StatusSeeOther, w.Code, "a master token must not unlock a shop page")
}

func registerAndLogin(t *testing.T, e *testEnv, host, email string) []*http.Cookie {
	t.Helper()
	body := `{"email":"` + email + `","password":"hunter2hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "http://"+host+"/api/auth/register", strings.NewReader(body))
	w := e.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func addCookies(req *http.Request, cookies []*http.Cookie) {
	for _, c := range cookies {
		if c.Value != "" {
			req.AddCookie(c)
		}
	}
}
