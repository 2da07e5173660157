package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vadimbarashkov/petit/internal/database"
	"github.com/vadimbarashkov/petit/internal/metrics"
	"github.com/vadimbarashkov/petit/internal/models"
)

const (
	DefaultSuggestLength    = 6
	DefaultMaxSuggestLength = 32
)

// HitResult is the outcome of one access count increment.
type HitResult struct {
	Count int64
	Err   error
}

// OK reports whether the increment was applied.
func (r HitResult) OK() bool {
	return r.Err == nil
}

// CreateInput holds the attributes accepted when a shortcode is created.
// An empty Name asks for a suggested one.
type CreateInput struct {
	Name        string
	Destination string
	SSL         bool
}

// UpdateInput holds the attributes a modification may change.
// Nil fields keep their stored value.
type UpdateInput struct {
	Destination *string
	SSL         *bool
}

type Option func(*ShortcodeService)

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ShortcodeService) {
		s.now = now
	}
}

// WithSuggestLength sets the length of suggested names and the longest
// length tried before giving up.
func WithSuggestLength(length, maxLength int) Option {
	return func(s *ShortcodeService) {
		s.suggestLength = length
		s.maxSuggestLength = maxLength
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *ShortcodeService) {
		s.logger = logger
	}
}

// ShortcodeService persists shortcodes through a database.Store and
// translates storage outcomes into the model errors.
type ShortcodeService struct {
	store            database.Store
	now              func() time.Time
	suggestLength    int
	maxSuggestLength int
	logger           *slog.Logger
}

func NewShortcodeService(store database.Store, opts ...Option) *ShortcodeService {
	s := &ShortcodeService{
		store:            store,
		now:              time.Now,
		suggestLength:    DefaultSuggestLength,
		maxSuggestLength: DefaultMaxSuggestLength,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func fromRecord(rec *database.Record) *models.Shortcode {
	return models.NewShortcode(map[string]any{
		"shortcode":    rec.Shortcode,
		"destination":  rec.Destination,
		"ssl":          rec.SSL,
		"access_count": rec.AccessCount,
		"created_at":   rec.CreatedAt,
		"updated_at":   rec.UpdatedAt,
	})
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Find returns the shortcode stored under name or models.ErrNotFound.
func (s *ShortcodeService) Find(ctx context.Context, name string) (*models.Shortcode, error) {
	const op = "service.ShortcodeService.Find"

	name = models.NormalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	rec, err := s.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get shortcode: %w", op, err)
	}

	return fromRecord(rec), nil
}

// FindByDestination returns every shortcode pointing at destination.
func (s *ShortcodeService) FindByDestination(ctx context.Context, destination string) ([]*models.Shortcode, error) {
	const op = "service.ShortcodeService.FindByDestination"

	recs, err := s.store.QueryByIndex(ctx, database.IndexDestination, strings.ToLower(destination))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query shortcodes: %w", op, err)
	}

	scs := make([]*models.Shortcode, 0, len(recs))
	for i := range recs {
		scs = append(scs, fromRecord(&recs[i]))
	}

	return scs, nil
}

// Save stores sc if its name is free. On success sc carries a zero access
// count and equal creation and update times.
func (s *ShortcodeService) Save(ctx context.Context, sc *models.Shortcode) (err error) {
	const op = "service.ShortcodeService.Save"

	defer func() { metrics.RecordWrite("save", err) }()

	sc.SetName(sc.Name)
	sc.SetDestination(sc.Destination)
	if blank(sc.Name) || blank(sc.Destination) {
		return fmt.Errorf("%s: %w", op, models.ErrValidation)
	}

	now := s.now().Unix()
	rec := database.Record{
		Shortcode:   sc.Name,
		Destination: sc.Destination,
		SSL:         sc.SSL,
		AccessCount: 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.PutIfAbsent(ctx, rec); err != nil {
		switch {
		case errors.Is(err, database.ErrRecordExists):
			return fmt.Errorf("%s: %w", op, models.ErrConflict)
		case errors.Is(err, database.ErrInvalidRecord):
			return fmt.Errorf("%s: %w", op, models.ErrValidation)
		default:
			return fmt.Errorf("%s: failed to save shortcode: %w", op, err)
		}
	}

	count := int64(0)
	createdAt := time.Unix(now, 0)
	updatedAt := createdAt
	sc.AccessCount = &count
	sc.CreatedAt = &createdAt
	sc.UpdatedAt = &updatedAt

	return nil
}

// Update writes the destination and SSL flag of sc to an existing record and
// refreshes sc from the stored result.
func (s *ShortcodeService) Update(ctx context.Context, sc *models.Shortcode) (err error) {
	const op = "service.ShortcodeService.Update"

	defer func() { metrics.RecordWrite("update", err) }()

	sc.SetName(sc.Name)
	sc.SetDestination(sc.Destination)
	if blank(sc.Name) || blank(sc.Destination) {
		return fmt.Errorf("%s: %w", op, models.ErrValidation)
	}

	rec, err := s.store.UpdateIfExists(ctx, sc.Name, database.RecordUpdate{
		Destination: sc.Destination,
		SSL:         sc.SSL,
		UpdatedAt:   s.now().Unix(),
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrRecordNotFound):
			return fmt.Errorf("%s: %w", op, models.ErrNotFound)
		case errors.Is(err, database.ErrInvalidRecord):
			return fmt.Errorf("%s: %w", op, models.ErrValidation)
		default:
			return fmt.Errorf("%s: failed to update shortcode: %w", op, err)
		}
	}

	*sc = *fromRecord(rec)

	return nil
}

// Destroy removes the record named by sc and returns its prior state.
// Destroying a missing record returns nil and no error.
func (s *ShortcodeService) Destroy(ctx context.Context, sc *models.Shortcode) (_ *models.Shortcode, err error) {
	const op = "service.ShortcodeService.Destroy"

	defer func() { metrics.RecordWrite("destroy", err) }()

	rec, err := s.store.Delete(ctx, models.NormalizeName(sc.Name))
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: failed to delete shortcode: %w", op, err)
	}

	return fromRecord(rec), nil
}

// Hit increments the access count of sc by one. sc itself is not modified.
func (s *ShortcodeService) Hit(ctx context.Context, sc *models.Shortcode) HitResult {
	const op = "service.ShortcodeService.Hit"

	count, err := s.store.Increment(ctx, models.NormalizeName(sc.Name), database.FieldAccessCount, 1)
	if err != nil {
		if errors.Is(err, database.ErrInvalidRecord) {
			return HitResult{Err: fmt.Errorf("%s: %w", op, models.ErrNotFound)}
		}

		return HitResult{Err: fmt.Errorf("%s: failed to increment access count: %w", op, err)}
	}

	return HitResult{Count: count}
}

// Create saves a new shortcode, suggesting a name when none is given, and
// returns the stored state.
func (s *ShortcodeService) Create(ctx context.Context, in CreateInput) (*models.Shortcode, error) {
	const op = "service.ShortcodeService.Create"

	sc := &models.Shortcode{SSL: in.SSL}
	sc.SetName(strings.TrimSpace(in.Name))
	sc.SetDestination(strings.TrimSpace(in.Destination))

	if sc.Name == "" {
		name, err := s.Suggest(ctx, s.suggestLength)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sc.SetName(name)
	}

	if err := s.Save(ctx, sc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stored, err := s.Find(ctx, sc.Name)
	if err != nil {
		s.logger.Debug("saved shortcode not readable yet",
			slog.String("op", op),
			slog.String("name", sc.Name),
			slog.Any("err", err),
		)
		return sc, nil
	}

	return stored, nil
}

// Read returns the shortcode stored under name or models.ErrNotFound.
func (s *ShortcodeService) Read(ctx context.Context, name string) (*models.Shortcode, error) {
	return s.Find(ctx, name)
}

// ReadByDestination returns every shortcode pointing at destination.
func (s *ShortcodeService) ReadByDestination(ctx context.Context, destination string) ([]*models.Shortcode, error) {
	return s.FindByDestination(ctx, destination)
}

// Modify applies in to the shortcode stored under name.
func (s *ShortcodeService) Modify(ctx context.Context, name string, in UpdateInput) (*models.Shortcode, error) {
	const op = "service.ShortcodeService.Modify"

	sc, err := s.Find(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if in.Destination != nil {
		sc.SetDestination(strings.TrimSpace(*in.Destination))
	}
	if in.SSL != nil {
		sc.SSL = *in.SSL
	}

	if err := s.Update(ctx, sc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sc, nil
}

// Delete removes the shortcode stored under name. Unlike Destroy it reports
// models.ErrNotFound when nothing was stored.
func (s *ShortcodeService) Delete(ctx context.Context, name string) error {
	const op = "service.ShortcodeService.Delete"

	sc := &models.Shortcode{}
	sc.SetName(name)

	prior, err := s.Destroy(ctx, sc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if prior == nil {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	return nil
}
