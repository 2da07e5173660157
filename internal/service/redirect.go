package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vadimbarashkov/petit/internal/metrics"
	"github.com/vadimbarashkov/petit/internal/models"

	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	defaultHitTimeout = 5 * time.Second
	notFoundBody      = "Not Found"
)

type shortcodeFinder interface {
	Find(ctx context.Context, name string) (*models.Shortcode, error)
	Hit(ctx context.Context, sc *models.Shortcode) HitResult
}

// Redirect describes the response to a short link request.
type Redirect struct {
	StatusCode int
	Location   string
	Body       string
}

type RedirectorOption func(*Redirector)

// WithFallback sends unknown names to destination with 303 instead of
// answering 404.
func WithFallback(destination string) RedirectorOption {
	return func(r *Redirector) {
		r.fallback = destination
	}
}

func WithRedirectLogger(logger *slog.Logger) RedirectorOption {
	return func(r *Redirector) {
		r.logger = logger
	}
}

// WithHitTimeout bounds each detached access count increment.
func WithHitTimeout(d time.Duration) RedirectorOption {
	return func(r *Redirector) {
		r.hitTimeout = d
	}
}

// Redirector turns request paths into redirects and counts every hit in the
// background, so a slow or failing counter never delays a visitor.
type Redirector struct {
	finder     shortcodeFinder
	fallback   string
	hitTimeout time.Duration
	logger     *slog.Logger
	breaker    *gobreaker.CircuitBreaker[int64]
	wg         sync.WaitGroup
}

func NewRedirector(finder shortcodeFinder, opts ...RedirectorOption) *Redirector {
	r := &Redirector{
		finder:     finder,
		hitTimeout: defaultHitTimeout,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.breaker = gobreaker.NewCircuitBreaker[int64](gobreaker.Settings{
		Name:        "access-count",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A hit on a name deleted after it was resolved says nothing about
		// the health of the store.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, models.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return r
}

// CleanPath strips one leading and one trailing slash and lowercases the rest.
func CleanPath(path string) string {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")
	return strings.ToLower(path)
}

// Resolve answers a request for path with a 301 to the stored destination,
// or with the not-found response. A successful lookup schedules one hit
// that outlives ctx.
func (r *Redirector) Resolve(ctx context.Context, path string) Redirect {
	sc, ok := r.lookup(ctx, path)
	if !ok {
		return r.notFound()
	}

	r.hit(ctx, sc)
	metrics.RecordRedirect(metrics.OutcomeRedirect)

	return Redirect{
		StatusCode: http.StatusMovedPermanently,
		Location:   sc.URL(),
	}
}

// Preview describes where path would redirect without redirecting or
// counting a hit.
func (r *Redirector) Preview(ctx context.Context, path string) Redirect {
	sc, ok := r.lookup(ctx, path)
	if !ok {
		return r.notFound()
	}

	metrics.RecordRedirect(metrics.OutcomePreview)

	return Redirect{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf("%s (%s)", sc.URL(), sc.Name),
	}
}

// Wait blocks until every scheduled hit has finished.
func (r *Redirector) Wait() {
	r.wg.Wait()
}

func (r *Redirector) lookup(ctx context.Context, path string) (*models.Shortcode, bool) {
	name := CleanPath(path)
	if name == "" {
		return nil, false
	}

	sc, err := r.finder.Find(ctx, name)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			r.logger.Error("failed to resolve shortcode",
				slog.String("name", name),
				slog.Any("err", err),
			)
		}
		return nil, false
	}

	return sc, true
}

func (r *Redirector) notFound() Redirect {
	if r.fallback != "" {
		metrics.RecordRedirect(metrics.OutcomeFallback)
		return Redirect{
			StatusCode: http.StatusSeeOther,
			Location:   r.fallback,
		}
	}

	metrics.RecordRedirect(metrics.OutcomeNotFound)
	return Redirect{
		StatusCode: http.StatusNotFound,
		Body:       notFoundBody,
	}
}

func (r *Redirector) hit(ctx context.Context, sc *models.Shortcode) {
	ctx = context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, r.hitTimeout)
		defer cancel()

		_, err := r.breaker.Execute(func() (int64, error) {
			res := r.finder.Hit(ctx, sc)
			return res.Count, res.Err
		})

		switch {
		case err == nil:
			metrics.RecordHit(metrics.HitOK)
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.RecordHit(metrics.HitRejected)
		default:
			metrics.RecordHit(metrics.HitFailed)
			r.logger.Warn("failed to count shortcode hit",
				slog.String("name", sc.Name),
				slog.Any("err", err),
			)
		}
	}()
}
