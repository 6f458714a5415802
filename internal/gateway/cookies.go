package gateway

import (
	"net/http"
	"time"

	"vendora/internal/token"
)

var epoch = time.Unix(0, 0)

const (
	accessCookie  = "token"
	refreshCookie = "refresh_token"
)

func (g *Gateway) setAuthCookies(w http.ResponseWriter, pair token.Pair) {
	secure := g.cfg.Env == "prod"
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(pair.AccessTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   int(pair.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (g *Gateway) clearAuthCookies(w http.ResponseWriter) {
	secure := g.cfg.Env == "prod"
	for _, name := range []string{accessCookie, refreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1, // serialized as Max-Age=0
			Expires:  epoch,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
