package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/render"
)

// requireSSL rejects requests that reached neither a TLS listener nor a
// proxy reporting https.
func requireSSL(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS == nil && !strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, insecureRequestResponse)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
