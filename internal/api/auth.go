package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"lane-defense/pkg/logger"
)

// AdminGuard protects run-control routes with a shared token.
// An empty token leaves the routes open, which suits local play.
type AdminGuard struct {
	digest [sha256.Size]byte
	open   bool
}

// NewAdminGuard creates a guard for token
func NewAdminGuard(token string) *AdminGuard {
	return &AdminGuard{
		digest: sha256.Sum256([]byte(token)),
		open:   token == "",
	}
}

// Check reports whether the request carries the admin token, either as
// "Authorization: Bearer <token>" or in the X-Admin-Token header
func (g *AdminGuard) Check(r *http.Request) bool {
	if g == nil || g.open {
		return true
	}
	presented := r.Header.Get("X-Admin-Token")
	if auth := r.Header.Get("Authorization"); presented == "" && strings.HasPrefix(auth, "Bearer ") {
		presented = strings.TrimPrefix(auth, "Bearer ")
	}
	if presented == "" {
		return false
	}
	sum := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(sum[:], g.digest[:]) == 1
}

// Middleware rejects requests without the admin token
func (g *AdminGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Check(r) {
			logger.Log.WithField("ip", GetClientIP(r)).Warn("⚠️ Admin route rejected")
			writeError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
