package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vadimbarashkov/petit/internal/database"
	"github.com/vadimbarashkov/petit/internal/models"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// SuggestAlphabet leaves out characters that are easy to misread
// (0, o, 1, l, i, 5, s, 8, b, u, v).
const SuggestAlphabet = "234679acdefghjkmnpqrtwxyz"

// Suggest returns a random name of at least size characters that no stored
// shortcode uses. Every occupied candidate makes the next one a character
// longer. A size of zero or less yields an empty name.
//
// The name is not reserved, so a later Save may still conflict.
func (s *ShortcodeService) Suggest(ctx context.Context, size int) (string, error) {
	const op = "service.ShortcodeService.Suggest"

	if size <= 0 {
		return "", nil
	}

	limit := max(size, s.maxSuggestLength)
	for n := size; n <= limit; n++ {
		name, err := gonanoid.Generate(SuggestAlphabet, n)
		if err != nil {
			return "", fmt.Errorf("%s: failed to generate name: %w", op, err)
		}

		_, err = s.store.Get(ctx, name)
		if errors.Is(err, database.ErrRecordNotFound) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("%s: failed to check name: %w", op, err)
		}
	}

	return "", fmt.Errorf("%s: %w", op, models.ErrSuggestionExhausted)
}
