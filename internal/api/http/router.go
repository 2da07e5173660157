// Package http serves short link redirects and the shortcode management API.
package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vadimbarashkov/petit/internal/models"
	"github.com/vadimbarashkov/petit/internal/service"
	"github.com/vadimbarashkov/petit/pkg/middleware/recoverer"
)

// ShortcodeService is the management surface used by the API handlers.
type ShortcodeService interface {
	Create(ctx context.Context, in service.CreateInput) (*models.Shortcode, error)
	Read(ctx context.Context, name string) (*models.Shortcode, error)
	ReadByDestination(ctx context.Context, destination string) ([]*models.Shortcode, error)
	Modify(ctx context.Context, name string, in service.UpdateInput) (*models.Shortcode, error)
	Delete(ctx context.Context, name string) error
	Suggest(ctx context.Context, size int) (string, error)
}

// Redirector answers short link requests.
type Redirector interface {
	Resolve(ctx context.Context, path string) service.Redirect
	Preview(ctx context.Context, path string) service.Redirect
}

// Options carries the settings the handlers need to build links and guard
// the API.
type Options struct {
	// APIBaseURL prefixes the self link of every resource.
	APIBaseURL string
	// ServiceBaseURL prefixes the public short link of every resource.
	ServiceBaseURL string
	// RequireSSL rejects API requests that did not arrive over https.
	RequireSSL bool
	// SuggestLength is used when a suggestion request names no length.
	SuggestLength int
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter wires the redirect routes, the v1 API and the metrics endpoint.
func NewRouter(logger *httplog.Logger, svc ShortcodeService, redirector Redirector, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*"},
			AllowedMethods:   []string{"POST", "GET", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Accept"},
			ExposedHeaders:   []string{"Location"},
			AllowCredentials: false,
			MaxAge:           84600,
		}))
		r.Use(recoverer.New(logger.Logger))
		r.Use(requireSSL(opts.RequireSSL))

		h := newShortcodeHandler(svc, getValidate(), opts)

		r.Get("/ping", handlePing)
		r.Get("/suggestion", h.suggest)

		r.Route("/shortcodes", func(r chi.Router) {
			r.Post("/", h.create)
			r.Get("/", h.listByDestination)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", h.get)
				r.Patch("/", h.modify)
				r.Put("/", h.modify)
				r.Delete("/", h.delete)
				r.Get("/qrcode", h.qrCode)
			})
		})
	})

	rh := newRedirectHandler(redirector)
	r.Get("/", rh.redirect)
	r.Get("/{shortcode}", rh.redirect)
	r.Get("/{shortcode}/", rh.redirect)

	return r
}
