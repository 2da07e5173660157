package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gavv/httpexpect/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/petit/internal/config"
	"github.com/vadimbarashkov/petit/internal/database/badger"
	"github.com/vadimbarashkov/petit/internal/database/memory"
	"github.com/vadimbarashkov/petit/internal/service"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := newStore(ctx, config.Default())

		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, store)
		assert.NoError(t, store.Close())
	})

	t.Run("badger in memory", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Driver = config.DriverBadger
		cfg.Badger.InMemory = true

		store, err := newStore(ctx, cfg)

		require.NoError(t, err)
		assert.IsType(t, &badger.Store{}, store)
		assert.NoError(t, store.Close())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Driver = "dynamodb"

		store, err := newStore(ctx, cfg)

		assert.ErrorIs(t, err, config.ErrInvalidConfig)
		assert.Nil(t, store)
	})
}

func TestHandler_EndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.App.RequireSSL = false
	cfg.App.APIBaseURL = "https://api.sho.rt"
	cfg.App.ServiceBaseURL = "https://sho.rt"

	svc := service.NewShortcodeService(memory.New())
	handler, redirector := newHandler(cfg, newLogger(cfg), svc)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	e := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  server.URL,
		Reporter: httpexpect.NewAssertReporter(t),
		Client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})

	e.POST("/api/v1/shortcodes").
		WithJSON(map[string]any{
			"data": map[string]any{
				"type":       "shortcodes",
				"attributes": map[string]any{"name": "Docs", "destination": "Example.com/docs", "ssl": true},
			},
		}).
		Expect().
		Status(http.StatusCreated).
		Header("Location").IsEqual("https://api.sho.rt/api/v1/shortcodes/docs")

	e.GET("/docs").
		Expect().
		Status(http.StatusMovedPermanently).
		Header("Location").IsEqual("https://example.com/docs")

	e.GET("/DOCS/").
		Expect().
		Status(http.StatusMovedPermanently)

	e.GET("/docs").
		WithQuery("debug", "true").
		Expect().
		Status(http.StatusOK).
		Text().IsEqual("https://example.com/docs (docs)")

	redirector.Wait()

	e.GET("/api/v1/shortcodes/docs").
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		Value("data").Object().
		Value("meta").Object().
		HasValue("access_count", 2).
		HasValue("generated_link", "https://sho.rt/docs")

	e.GET("/missing").
		Expect().
		Status(http.StatusNotFound).
		Text().IsEqual("Not Found")

	e.DELETE("/api/v1/shortcodes/docs").
		Expect().
		Status(http.StatusOK)

	e.GET("/docs").
		Expect().
		Status(http.StatusNotFound)
}
