package models

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// sslPattern matches the string forms accepted as a true SSL flag.
// Values arrive from both JSON bodies and form-encoded bodies.
var sslPattern = regexp.MustCompile(`(?i)(true|t|yes|y|1)$`)

// Shortcode maps a short name to a destination the service redirects to.
type Shortcode struct {
	// Name is the unique, lowercase identifier of the mapping.
	Name string
	// Destination is the host and path (without scheme) visitors are sent to.
	Destination string
	// SSL selects https over http when the redirect URL is built.
	SSL bool
	// AccessCount is nil until the record has been saved or loaded.
	AccessCount *int64
	// CreatedAt is assigned on save and never changes afterwards.
	CreatedAt *time.Time
	// UpdatedAt is assigned on save and advanced on every update.
	UpdatedAt *time.Time
}

// NewShortcode builds a Shortcode from a loosely typed parameter map.
//
// The name may be given under "name" or "shortcode". Timestamps are epoch
// seconds. Unknown keys are ignored.
func NewShortcode(params map[string]any) *Shortcode {
	sc := new(Shortcode)

	name, ok := params["name"]
	if !ok || name == nil {
		name = params["shortcode"]
	}

	sc.SetName(stringValue(name))
	sc.SetDestination(stringValue(params["destination"]))
	sc.SetSSL(params["ssl"])

	if n, ok := int64Value(params["access_count"]); ok {
		sc.AccessCount = &n
	}
	if n, ok := int64Value(params["created_at"]); ok {
		t := time.Unix(n, 0)
		sc.CreatedAt = &t
	}
	if n, ok := int64Value(params["updated_at"]); ok {
		t := time.Unix(n, 0)
		sc.UpdatedAt = &t
	}

	return sc
}

// SetName stores the lowercase form of name.
func (s *Shortcode) SetName(name string) {
	s.Name = strings.ToLower(name)
}

// SetDestination stores the lowercase form of destination.
func (s *Shortcode) SetDestination(destination string) {
	s.Destination = strings.ToLower(destination)
}

// SetSSL sets the SSL flag using ParseSSL.
func (s *Shortcode) SetSSL(v any) {
	s.SSL = ParseSSL(v)
}

// IsSSL reports whether the redirect should use https.
func (s *Shortcode) IsSSL() bool {
	return s.SSL
}

// Scheme returns the URL scheme selected by the SSL flag.
func (s *Shortcode) Scheme() string {
	if s.SSL {
		return "https"
	}
	return "http"
}

// URL returns the absolute redirect target.
func (s *Shortcode) URL() string {
	return s.Scheme() + "://" + s.Destination
}

// Count returns the access count, or zero when it is unknown.
func (s *Shortcode) Count() int64 {
	if s.AccessCount == nil {
		return 0
	}
	return *s.AccessCount
}

// ParseSSL is the permissive boolean parser used for the SSL flag.
// Only boolean true and strings ending in true, t, yes, y or 1
// (case-insensitive) are true.
func ParseSSL(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return sslPattern.MatchString(val)
	case []byte:
		return sslPattern.Match(val)
	case fmt.Stringer:
		return sslPattern.MatchString(val.String())
	default:
		return false
	}
}

// NormalizeName returns the canonical form used to store and compare names.
func NormalizeName(name string) string {
	return strings.ToLower(name)
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func int64Value(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float32:
		return int64(val), true
	case float64:
		return int64(val), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
