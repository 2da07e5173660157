// Package recoverer turns handler panics into JSON:API 500 responses.
package recoverer

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/vadimbarashkov/petit/pkg/response"
)

// New returns a middleware that logs a recovered panic with its stack and
// answers 500 with an errors document. http.ErrAbortHandler is re-raised
// so the server can abort the connection.
func New(logger *slog.Logger) func(http.Handler) http.Handler {
	const op = "middleware.recoverer.New"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logger.Error("panic recovered",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ErrorDocument(http.StatusInternalServerError,
					"An internal server error occurred."))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
