package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(host, path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "http://"+host+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegisterLoginMeFlow(t *testing.T) {
	e := newTestEnv(t)
	host := "shop9.example.com"

	w := e.do(postJSON(host, "/api/auth/register", `{"email":"buyer@example.com","password":"hunter2hunter2"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"realm":"shop"`)
	assert.Contains(t, w.Body.String(), `"tenant":"t-shop9"`)

	var access *http.Cookie
	for _, c := range w.Result().Cookies() {
		switch c.Name {
		case "token":
			access = c
		}
		assert.True(t, c.HttpOnly, "%s must be HttpOnly", c.Name)
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	}
	require.NotNil(t, access)

	w = e.do(postJSON(host, "/api/auth/login", `{"email":"buyer@example.com","password":"hunter2hunter2"}`))
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "http://"+host+"/api/auth/me", nil)
	req.AddCookie(access)
	w = e.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"customer"`)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	e := newTestEnv(t)
	host := "shop9.example.com"
	registerAndLogin(t, e, host, "buyer@example.com")

	w := e.do(postJSON(host, "/api/auth/login", `{"email":"buyer@example.com","password":"wrong-password"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeRejectsForeignTenantCookie(t *testing.T) {
	e := newTestEnv(t)
	cookies := registerAndLogin(t, e, "example.com", "admin@example.com")

	req := httptest.NewRequest(http.MethodGet, "http://shop9.example.com/api/auth/me", nil)
	addCookies(req, cookies)
	w := e.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRateLimitPrecedesCredentialCheck(t *testing.T) {
	e := newTestEnv(t)
	host := "shop9.example.com"
	registerAndLogin(t, e, host, "buyer@example.com")
	e.ids.finds = 0

	body := `{"email":"buyer@example.com","password":"wrong-password"}`
	for i := 0; i < 5; i++ {
		w := e.do(postJSON(host, "/api/auth/login", body))
		require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
	}
	w := e.do(postJSON(host, "/api/auth/login", body))
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "sixth attempt within the window")
	assert.Equal(t, 5, e.ids.finds, "the throttled attempt must not touch the identity store")
}

func TestRefreshRotatesAndDetectsReplay(t *testing.T) {
	e := newTestEnv(t)
	host := "shop9.example.com"
	cookies := registerAndLogin(t, e, host, "buyer@example.com")

	var oldRefresh *http.Cookie
	for _, c := range cookies {
		if c.Name == "refresh_token" {
			oldRefresh = c
		}
	}
	require.NotNil(t, oldRefresh)

	req := httptest.NewRequest(http.MethodPost, "http://"+host+"/api/auth/refresh", nil)
	req.AddCookie(oldRefresh)
	w := e.do(req)
	require.Equal(t, http.StatusNoContent, w.Code)
	rotated := w.Result().Cookies()
	require.NotEmpty(t, rotated)

	// Presenting the consumed token again: rejected, cookies dropped, and
	// the freshly rotated token dies with the family.
	req = httptest.NewRequest(http.MethodPost, "http://"+host+"/api/auth/refresh", nil)
	req.AddCookie(oldRefresh)
	w = e.do(req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	for _, c := range w.Result().Cookies() {
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge, "wire Max-Age=0 parses back as -1")
	}

	req = httptest.NewRequest(http.MethodPost, "http://"+host+"/api/auth/refresh", nil)
	addCookies(req, rotated)
	w = e.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "family revoked after replay")
}

func TestRefreshWithoutCookie(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(httptest.NewRequest(http.MethodPost, "http://shop9.example.com/api/auth/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutClearsCookiesAndRevokes(t *testing.T) {
	e := newTestEnv(t)
	host := "shop9.example.com"
	cookies := registerAndLogin(t, e, host, "buyer@example.com")

	req := httptest.NewRequest(http.MethodPost, "http://"+host+"/api/auth/logout", nil)
	addCookies(req, cookies)
	w := e.do(req)
	require.Equal(t, http.StatusNoContent, w.Code)

	cleared := w.Result().Cookies()
	require.Len(t, cleared, 2)
	for _, c := range cleared {
		assert.Empty(t, c.Value)
	}

	// The revoked refresh token can no longer rotate.
	req = httptest.NewRequest(http.MethodPost, "http://"+host+"/api/auth/refresh", nil)
	addCookies(req, cookies)
	w = e.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
