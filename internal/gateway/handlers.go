package gateway

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"vendora/internal/identity"
	"vendora/internal/secevent"
	"vendora/pkg/middleware"
)

// Limits for credential-issuing endpoints. The check runs before any
// credential work so a throttled caller costs no bcrypt time.
const (
	credentialLimit  = 5
	credentialWindow = time.Minute
	refreshLimit     = 30
)

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type principalResponse struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
	Realm   string `json:"realm"`
	Tenant  string `json:"tenant,omitempty"`
}

func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	realm := middleware.RealmFrom(ctx)
	ip := clientIP(r)

	if !g.limiter.Allow("register|"+realm.TenantID+"|"+ip, credentialLimit, credentialWindow) {
		authTotal.WithLabelValues("register", "rate_limited").Inc()
		writeError(w, http.StatusTooManyRequests, "too many requests")
		g.events.Record(ctx, secevent.Event{Kind: secevent.KindRateLimitExceeded, Actor: ip, TenantID: realm.TenantID, Outcome: "registration throttled"})
		return
	}

	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	u, err := g.users.Register(ctx, realm, body.Email, body.Password)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, identity.ErrUserExists) {
			status = http.StatusConflict
		}
		authTotal.WithLabelValues("register", "failure").Inc()
		writeError(w, status, "registration failed")
		g.events.Record(ctx, secevent.Event{Kind: secevent.KindRegistrationFailure, Actor: ip, TenantID: realm.TenantID, Outcome: err.Error()})
		return
	}

	pair, err := g.tokens.Issue(ctx, u.ID, u.Role, realm)
	if err != nil {
		g.log.Errorw("issue tokens", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := principalResponse{Subject: u.ID, Role: u.Role, Realm: string(realm.Kind), Tenant: realm.TenantID}
	authTotal.WithLabelValues("register", "success").Inc()
	g.setAuthCookies(w, pair)
	writeJSON(w, http.StatusCreated, resp)
	g.events.Record(ctx, secevent.Event{Kind: secevent.KindRegistrationSuccess, Actor: ip, SubjectID: u.ID, TenantID: realm.TenantID, Outcome: "registered"})
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	realm := middleware.RealmFrom(ctx)
	ip := clientIP(r)

	if !g.limiter.Allow("login|"+realm.TenantID+"|"+ip, credentialLimit, credentialWindow) {
		authTotal.WithLabelValues("login", "rate_limited").Inc()
		writeError(w, http.StatusTooManyRequests, "too many requests")
		g.events.Record(ctx, secevent.Event{Kind: secevent.KindRateLimitExceeded, Actor: ip, TenantID: realm.TenantID, Outcome: "login throttled"})
		return
	}

	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	u, err := g.users.Authenticate(ctx, realm, body.Email, body.Password)
	if err != nil {
		authTotal.WithLabelValues("login", "failure").Inc()
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		g.events.Record(ctx, secevent.Event{Kind: secevent.KindLoginFailure, Actor: ip, TenantID: realm.TenantID, Outcome: "credential check failed"})
		return
	}

	pair, err := g.tokens.Issue(ctx, u.ID, u.Role, realm)
	if err != nil {
		g.log.Errorw("issue tokens", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := principalResponse{Subject: u.ID, Role: u.Role, Realm: string(realm.Kind), Tenant: realm.TenantID}
	authTotal.WithLabelValues("login", "success").Inc()
	g.setAuthCookies(w, pair)
	writeJSON(w, http.StatusOK, resp)
	g.events.Record(ctx, secevent.Event{Kind: secevent.KindLoginSuccess, Actor: ip, SubjectID: u.ID, TenantID: realm.TenantID, Outcome: "logged in"})
}

func (g *Gateway) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	realm := middleware.RealmFrom(ctx)
	ip := clientIP(r)

	if !g.limiter.Allow("refresh|"+realm.TenantID+"|"+ip, refreshLimit, credentialWindow) {
		authTotal.WithLabelValues("refresh", "rate_limited").Inc()
		writeError(w, http.StatusTooManyRequests, "too many requests")
		g.events.Record(ctx, secevent.Event{Kind: secevent.KindRateLimitExceeded, Actor: ip, TenantID: realm.TenantID, Outcome: "refresh throttled"})
		return
	}

	c, err := r.Cookie(refreshCookie)
	if err != nil || c.Value == "" {
		writeError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	pair, err := g.tokens.Rotate(ctx, c.Value, realm)
	if err != nil {
		// Reuse means the family is already revoked; either way the caller
		// holds nothing usable, so both cookies are dropped.
		authTotal.WithLabelValues("refresh", "failure").Inc()
		g.clearAuthCookies(w)
		writeError(w, http.StatusUnauthorized, "refresh rejected")
		return
	}

	authTotal.WithLabelValues("refresh", "success").Inc()
	g.setAuthCookies(w, pair)
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		// Best effort: an already-invalid token has nothing left to revoke.
		_ = g.tokens.Revoke(r.Context(), c.Value)
	}
	g.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	realm := middleware.RealmFrom(ctx)

	c, err := r.Cookie(accessCookie)
	if err != nil || c.Value == "" {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	p, err := g.tokens.Verify(ctx, c.Value, realm)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	// The subject must still be provisioned; tokens outlive deletions.
	ok, err := g.users.SubjectExists(ctx, p.SubjectID)
	if err != nil {
		g.log.Errorw("subject lookup", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		g.events.Record(ctx, secevent.Event{Kind: secevent.KindUnauthorizedAccess, Actor: clientIP(r), SubjectID: p.SubjectID, TenantID: realm.TenantID, Outcome: "token for deleted subject"})
		return
	}
	writeJSON(w, http.StatusOK, principalResponse{Subject: p.SubjectID, Role: p.Role, Realm: string(p.Realm.Kind), Tenant: p.Realm.TenantID})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
