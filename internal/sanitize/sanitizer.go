// Package sanitize rejects injection payloads in text flowing from users or
// external APIs into generated output or downstream requests. Detection is
// pattern-based: each family is a table of compiled regexes, independently
// toggleable per call site. URL-bound values are percent-encoded instead of
// rejected, since encoding neutralizes injection without discarding
// legitimate characters.
package sanitize

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"

	"github.com/felixgeelhaar/quizguard/internal/domain"
)

// Family identifies one injection pattern family
type Family string

const (
	FamilySQL           Family = "sql"
	FamilyXSS           Family = "xss"
	FamilyShell         Family = "shell"
	FamilyPathTraversal Family = "path_traversal"
	FamilyTemplate      Family = "template"
)

// Pattern is one injection detection rule
type Pattern struct {
	ID          string
	Family      Family
	Description string
	Regex       *regexp.Regexp
}

// Options control one sanitization call. The Allow* switches skip the
// corresponding family for fields where the syntax is legitimate (for
// example quiz text that discusses SQL). Path traversal is never skippable.
type Options struct {
	MaxLength     int // 0 means the sanitizer default
	AllowSQL      bool
	AllowHTML     bool
	AllowShell    bool
	AllowTemplate bool
}

// Config bounds the sanitizer's resource use
type Config struct {
	MaxStringLength int
	MaxDepth        int
	MaxJSONBytes    int
}

// DefaultConfig returns the sanitizer's default bounds
func DefaultConfig() Config {
	return Config{
		MaxStringLength: 10_000,
		MaxDepth:        10,
		MaxJSONBytes:    1 << 20,
	}
}

// Sanitizer applies the pattern tables under configured resource bounds.
// Stateless across calls and safe for concurrent use.
type Sanitizer struct {
	cfg      Config
	patterns []Pattern
}

// New creates a sanitizer with the default pattern tables
func New(cfg Config) *Sanitizer {
	if cfg.MaxStringLength <= 0 {
		cfg.MaxStringLength = DefaultConfig().MaxStringLength
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}
	if cfg.MaxJSONBytes <= 0 {
		cfg.MaxJSONBytes = DefaultConfig().MaxJSONBytes
	}
	return &Sanitizer{cfg: cfg, patterns: defaultPatterns()}
}

// String checks text against every enabled pattern family and returns it
// unchanged when clean
func (s *Sanitizer) String(text string, opts Options) (string, error) {
	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = s.cfg.MaxStringLength
	}
	if len(text) > maxLength {
		return "", fmt.Errorf("%w: input exceeds %d characters", domain.ErrValidation, maxLength)
	}

	for _, p := range s.patterns {
		if familyAllowed(p.Family, opts) {
			continue
		}
		if p.Regex.MatchString(text) {
			return "", fmt.Errorf("%w: %s (%s)", domain.ErrInjectionDetected, p.Description, p.ID)
		}
	}
	return text, nil
}

func familyAllowed(f Family, opts Options) bool {
	switch f {
	case FamilySQL:
		return opts.AllowSQL
	case FamilyXSS:
		return opts.AllowHTML
	case FamilyShell:
		return opts.AllowShell
	case FamilyTemplate:
		return opts.AllowTemplate
	default:
		return false
	}
}

// Map applies String to every leaf of a string-keyed tree, keys included.
// Recursion depth is bounded explicitly as a DoS guard.
func (s *Sanitizer) Map(m map[string]any, opts Options) error {
	return s.walkMap(m, opts, 0)
}

// List applies String to every leaf of a list tree
func (s *Sanitizer) List(l []any, opts Options) error {
	return s.walkList(l, opts, 0)
}

func (s *Sanitizer) walkValue(v any, opts Options, depth int) error {
	if depth > s.cfg.MaxDepth {
		return fmt.Errorf("%w: structure exceeds maximum depth %d", domain.ErrValidation, s.cfg.MaxDepth)
	}
	switch v := v.(type) {
	case nil, bool, float64, int, int64, json.Number:
		return nil
	case string:
		_, err := s.String(v, opts)
		return err
	case map[string]any:
		return s.walkMap(v, opts, depth)
	case []any:
		return s.walkList(v, opts, depth)
	default:
		return fmt.Errorf("%w: unsupported value type %T", domain.ErrValidation, v)
	}
}

func (s *Sanitizer) walkMap(m map[string]any, opts Options, depth int) error {
	if depth > s.cfg.MaxDepth {
		return fmt.Errorf("%w: structure exceeds maximum depth %d", domain.ErrValidation, s.cfg.MaxDepth)
	}
	for key, value := range m {
		if _, err := s.String(key, opts); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		if err := s.walkValue(value, opts, depth+1); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
	}
	return nil
}

func (s *Sanitizer) walkList(l []any, opts Options, depth int) error {
	if depth > s.cfg.MaxDepth {
		return fmt.Errorf("%w: structure exceeds maximum depth %d", domain.ErrValidation, s.cfg.MaxDepth)
	}
	for i, value := range l {
		if err := s.walkValue(value, opts, depth+1); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}
	return nil
}

// JSONResponse bounds and sanitizes a raw API response body before any of
// its fields are extracted into quiz variables
func (s *Sanitizer) JSONResponse(data []byte, opts Options) (map[string]any, error) {
	if len(data) > s.cfg.MaxJSONBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", domain.ErrValidation, s.cfg.MaxJSONBytes)
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: response is not a JSON object: %v", domain.ErrValidation, err)
	}
	if err := s.Map(parsed, opts); err != nil {
		return nil, err
	}
	return parsed, nil
}

// ForURLParam percent-encodes a value for safe inclusion in a query string
func ForURLParam(s string) string {
	return url.QueryEscape(s)
}

func defaultPatterns() []Pattern {
	return []Pattern{
		// SQL injection
		{
			ID:          "SQL001",
			Family:      FamilySQL,
			Description: "SQL keyword sequence",
			Regex:       regexp.MustCompile(`(?i)\b(union\s+(all\s+)?select|select\s+[\w*,\s]+\s+from|insert\s+into|delete\s+from|drop\s+(table|database|index)|truncate\s+table|update\s+\w+\s+set|alter\s+table|exec(ute)?\s+\w)`),
		},
		{
			ID:          "SQL002",
			Family:      FamilySQL,
			Description: "SQL comment marker",
			Regex:       regexp.MustCompile(`(--|#|/\*|\*/|;\s*--)`),
		},
		{
			ID:          "SQL003",
			Family:      FamilySQL,
			Description: "tautological SQL condition",
			Regex:       regexp.MustCompile(`(?i)('\s*or\s*'?\d|\bor\s+\d+\s*=\s*\d+|'\s*or\s*'[^']*'\s*=\s*')`),
		},

		// XSS
		{
			ID:          "XSS001",
			Family:      FamilyXSS,
			Description: "script-capable HTML tag",
			Regex:       regexp.MustCompile(`(?i)<\s*/?\s*(script|style|iframe|object|embed|meta|link|form|svg)\b`),
		},
		{
			ID:          "XSS002",
			Family:      FamilyXSS,
			Description: "inline event handler attribute",
			Regex:       regexp.MustCompile(`(?i)\bon[a-z]+\s*=`),
		},
		{
			ID:          "XSS003",
			Family:      FamilyXSS,
			Description: "scriptable URL scheme",
			Regex:       regexp.MustCompile(`(?i)(javascript|vbscript)\s*:|data\s*:\s*text/html`),
		},
		{
			ID:          "XSS004",
			Family:      FamilyXSS,
			Description: "CSS expression",
			Regex:       regexp.MustCompile(`(?i)expression\s*\(`),
		},

		// Shell / command injection
		{
			ID:          "SH001",
			Family:      FamilyShell,
			Description: "shell metacharacter",
			Regex:       regexp.MustCompile("[;&|`]"),
		},
		{
			ID:          "SH002",
			Family:      FamilyShell,
			Description: "command or variable substitution",
			Regex:       regexp.MustCompile(`\$\(|\$\{|\$[A-Za-z_]`),
		},

		// Path traversal
		{
			ID:          "PATH001",
			Family:      FamilyPathTraversal,
			Description: "path traversal sequence",
			Regex:       regexp.MustCompile(`(?i)(\.\./|\.\.\\|%2e%2e(%2f|%5c|/|\\)|\.\.%2f|\.\.%5c)`),
		},

		// Template injection
		{
			ID:          "TPL001",
			Family:      FamilyTemplate,
			Description: "template expression delimiter",
			Regex:       regexp.MustCompile(`\{\{.*\}\}|\$\{.*\}|<%.*%>|#\{.*\}|<#.*>`),
		},
	}
}
