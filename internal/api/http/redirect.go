package http

import (
	"net/http"

	"github.com/vadimbarashkov/petit/internal/models"
	"github.com/vadimbarashkov/petit/internal/service"
)

type redirectHandler struct {
	redirector Redirector
}

func newRedirectHandler(redirector Redirector) *redirectHandler {
	return &redirectHandler{redirector: redirector}
}

// redirect never exposes lookup failures: the visitor sees a redirect, the
// fallback or a plain Not Found.
func (h *redirectHandler) redirect(w http.ResponseWriter, r *http.Request) {
	var res service.Redirect
	if models.ParseSSL(r.URL.Query().Get("debug")) {
		res = h.redirector.Preview(r.Context(), r.URL.Path)
	} else {
		res = h.redirector.Resolve(r.Context(), r.URL.Path)
	}

	writeRedirect(w, res)
}

func writeRedirect(w http.ResponseWriter, res service.Redirect) {
	if res.Location != "" {
		w.Header().Set("Location", res.Location)
	}
	if res.Body != "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}

	w.WriteHeader(res.StatusCode)
	if res.Body != "" {
		w.Write([]byte(res.Body))
	}
}
