package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShortcode(t *testing.T) {
	t.Run("lowercases name and destination", func(t *testing.T) {
		sc := NewShortcode(map[string]any{
			"name":        "ABC123",
			"destination": "wWw.Google.cOm",
			"ssl":         true,
		})

		assert.Equal(t, "abc123", sc.Name)
		assert.Equal(t, "www.google.com", sc.Destination)
		assert.True(t, sc.IsSSL())
		assert.Nil(t, sc.AccessCount)
		assert.Nil(t, sc.CreatedAt)
		assert.Nil(t, sc.UpdatedAt)
	})

	t.Run("shortcode alias", func(t *testing.T) {
		sc := NewShortcode(map[string]any{"shortcode": "XyZ"})

		assert.Equal(t, "xyz", sc.Name)
	})

	t.Run("name wins over alias", func(t *testing.T) {
		sc := NewShortcode(map[string]any{"name": "first", "shortcode": "second"})

		assert.Equal(t, "first", sc.Name)
	})

	t.Run("empty params", func(t *testing.T) {
		sc := NewShortcode(nil)

		assert.Empty(t, sc.Name)
		assert.Empty(t, sc.Destination)
		assert.False(t, sc.IsSSL())
	})

	t.Run("stored attributes", func(t *testing.T) {
		sc := NewShortcode(map[string]any{
			"shortcode":    "abc",
			"destination":  "x.io",
			"access_count": float64(7),
			"created_at":   int64(1500000000),
			"updated_at":   "1500000100",
		})

		require.NotNil(t, sc.AccessCount)
		require.NotNil(t, sc.CreatedAt)
		require.NotNil(t, sc.UpdatedAt)
		assert.Equal(t, int64(7), *sc.AccessCount)
		assert.True(t, time.Unix(1500000000, 0).Equal(*sc.CreatedAt))
		assert.True(t, time.Unix(1500000100, 0).Equal(*sc.UpdatedAt))
	})
}

func TestShortcode_Setters(t *testing.T) {
	sc := NewShortcode(map[string]any{"name": "abc123", "destination": "www.google.com", "ssl": true})

	sc.SetName("123ABC")
	assert.Equal(t, "123abc", sc.Name)

	sc.SetDestination("www.YAHOO.com")
	assert.Equal(t, "www.yahoo.com", sc.Destination)

	sc.SetSSL(false)
	assert.False(t, sc.SSL)
}

func TestParseSSL(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{name: "bool true", in: true, want: true},
		{name: "bool false", in: false, want: false},
		{name: "nil", in: nil, want: false},
		{name: "string true", in: "true", want: true},
		{name: "string TRUE", in: "TRUE", want: true},
		{name: "string t", in: "t", want: true},
		{name: "string yes", in: "Yes", want: true},
		{name: "string y", in: "y", want: true},
		{name: "string 1", in: "1", want: true},
		{name: "string false", in: "false", want: false},
		{name: "string no", in: "no", want: false},
		{name: "string 0", in: "0", want: false},
		{name: "arbitrary string", in: "banana", want: false},
		{name: "number 1", in: 1, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSSL(tt.in))
		})
	}
}

func TestShortcode_URL(t *testing.T) {
	sc := &Shortcode{Destination: "x.io"}
	assert.Equal(t, "http://x.io", sc.URL())

	sc.SSL = true
	assert.Equal(t, "https://x.io", sc.URL())
}

func TestShortcode_Count(t *testing.T) {
	sc := &Shortcode{}
	assert.Equal(t, int64(0), sc.Count())

	n := int64(3)
	sc.AccessCount = &n
	assert.Equal(t, int64(3), sc.Count())
}
