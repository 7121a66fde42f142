// Package variable implements the runtime store for quiz variables. The
// store enforces mutation permissions, type coercion, and declared
// constraints on every write; reads expose tag-filtered views.
package variable

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/quizguard/internal/domain"
)

// Store holds the current values of one session's variables, seeded from
// declared defaults. A Store is scoped to a single session and performs no
// locking; the caller provides at-most-one-writer-per-session semantics.
type Store struct {
	definitions map[string]*domain.VariableDefinition
	values      map[string]any
}

// New builds a store from normalized definitions, seeding every variable
// with its default. Construction fails if more than one definition carries
// the leaderboard tag.
func New(definitions map[string]*domain.VariableDefinition) (*Store, error) {
	leaderboard := ""
	for name, def := range definitions {
		if def.Tags.Has(domain.TagLeaderboard) {
			if leaderboard != "" {
				return nil, fmt.Errorf("%w: variables %q and %q both carry the leaderboard tag",
					domain.ErrValidation, leaderboard, name)
			}
			leaderboard = name
		}
	}

	s := &Store{
		definitions: definitions,
		values:      make(map[string]any, len(definitions)),
	}
	for name, def := range definitions {
		value, err := coerce(def, def.Default)
		if err != nil {
			return nil, fmt.Errorf("variable %q: default: %w", name, err)
		}
		s.values[name] = value
	}
	return s, nil
}

// Restore builds a store over previously persisted values, coercing each
// back to its declared type. Variables absent from values fall back to their
// defaults.
func Restore(definitions map[string]*domain.VariableDefinition, values map[string]any) (*Store, error) {
	s, err := New(definitions)
	if err != nil {
		return nil, err
	}
	for name, value := range values {
		def, ok := definitions[name]
		if !ok {
			continue // stale persisted value, definition was removed
		}
		coerced, err := coerce(def, value)
		if err != nil {
			return nil, fmt.Errorf("variable %q: restore: %w", name, err)
		}
		s.values[name] = coerced
	}
	return s, nil
}

// Set writes a variable after the full gate: mutability check, type
// coercion, then constraint check. Nothing commits on failure.
func (s *Store) Set(name string, value any, actor domain.Actor) error {
	def, ok := s.definitions[name]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownVariable, name)
	}
	if def.Tags.Has(domain.TagImmutable) {
		return fmt.Errorf("%w: %q", domain.ErrImmutableVariable, name)
	}
	if !def.CanMutate(actor) {
		return fmt.Errorf("%w: actor %q may not mutate %q", domain.ErrPermissionDenied, actor, name)
	}

	coerced, err := coerce(def, value)
	if err != nil {
		return fmt.Errorf("variable %q: %w", name, err)
	}
	if err := checkConstraints(def, coerced); err != nil {
		return fmt.Errorf("variable %q: %w", name, err)
	}

	s.values[name] = coerced
	return nil
}

// Get returns the current value of a variable
func (s *Store) Get(name string) (any, error) {
	value, ok := s.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownVariable, name)
	}
	return value, nil
}

// Definition returns the definition backing a variable, or nil
func (s *Store) Definition(name string) *domain.VariableDefinition {
	return s.definitions[name]
}

// Values returns a copy of every variable's current value
func (s *Store) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for name, value := range s.values {
		out[name] = value
	}
	return out
}

// Scores returns the current values of score-tagged variables
func (s *Store) Scores() map[string]any {
	return s.filtered(domain.TagScore)
}

// PublicVariables returns the current values of public-tagged variables
func (s *Store) PublicVariables() map[string]any {
	return s.filtered(domain.TagPublic)
}

func (s *Store) filtered(tag domain.VariableTag) map[string]any {
	out := make(map[string]any)
	for name, def := range s.definitions {
		if def.Tags.Has(tag) {
			out[name] = s.values[name]
		}
	}
	return out
}

// LeaderboardScore returns the name and value of the unique
// leaderboard-tagged variable, or ok=false when none is declared
func (s *Store) LeaderboardScore() (name string, value any, ok bool) {
	for n, def := range s.definitions {
		if def.Tags.Has(domain.TagLeaderboard) {
			return n, s.values[n], true
		}
	}
	return "", nil, false
}

// SafeForAPIUse reports whether a variable may appear in outbound templates
func (s *Store) SafeForAPIUse(name string) bool {
	def, ok := s.definitions[name]
	return ok && def.SafeForAPIUse()
}

// -----------------------------------------------------------------------------
// Coercion
// -----------------------------------------------------------------------------

// coerce converts value into the definition's declared type. Numeric casts
// accept strings and cross-numeric forms; booleans accept the usual string
// spellings; arrays are checked for item homogeneity.
func coerce(def *domain.VariableDefinition, value any) (any, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: value is required", domain.ErrValidation)
	}
	return coerceTo(def.Type, def.ArrayItemType, value)
}

func coerceTo(typ, itemType domain.VariableType, value any) (any, error) {
	switch typ {
	case domain.TypeInteger:
		return coerceInteger(value)
	case domain.TypeFloat:
		return coerceFloat(value)
	case domain.TypeBoolean:
		return coerceBoolean(value)
	case domain.TypeString:
		return coerceString(value)
	case domain.TypeArray:
		return coerceArray(itemType, value)
	default:
		return nil, fmt.Errorf("%w: unhandled type %q", domain.ErrValidation, typ)
	}
}

func coerceInteger(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: %v is not an integer", domain.ErrValidation, v)
		}
		return int64(v), nil
	case float32:
		return coerceInteger(float64(v))
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", domain.ErrValidation, v)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("%w: cannot coerce %T to integer", domain.ErrValidation, value)
	}
}

func coerceFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", domain.ErrValidation, v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: cannot coerce %T to float", domain.ErrValidation, value)
	}
}

func coerceBoolean(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1", "on":
			return true, nil
		case "false", "no", "0", "off":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q is not a boolean", domain.ErrValidation, v)
	default:
		return nil, fmt.Errorf("%w: cannot coerce %T to boolean", domain.ErrValidation, value)
	}
}

func coerceString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return nil, fmt.Errorf("%w: cannot coerce %T to string", domain.ErrValidation, value)
	}
}

func coerceArray(itemType domain.VariableType, value any) (any, error) {
	var raw []any
	switch v := value.(type) {
	case []any:
		raw = v
	case []string:
		raw = make([]any, len(v))
		for i, s := range v {
			raw[i] = s
		}
	default:
		return nil, fmt.Errorf("%w: cannot coerce %T to array", domain.ErrValidation, value)
	}

	out := make([]any, len(raw))
	for i, item := range raw {
		coerced, err := coerceTo(itemType, "", item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = coerced
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Constraints
// -----------------------------------------------------------------------------

func checkConstraints(def *domain.VariableDefinition, value any) error {
	c := def.Constraints
	if c == nil {
		return nil
	}

	switch v := value.(type) {
	case int64:
		return checkNumericBounds(c, float64(v))
	case float64:
		return checkNumericBounds(c, v)
	case string:
		return checkStringConstraints(c, v)
	case []any:
		if c.MinItems != nil && len(v) < *c.MinItems {
			return fmt.Errorf("%w: %d items is below minimum %d", domain.ErrValidation, len(v), *c.MinItems)
		}
		if c.MaxItems != nil && len(v) > *c.MaxItems {
			return fmt.Errorf("%w: %d items exceeds maximum %d", domain.ErrValidation, len(v), *c.MaxItems)
		}
	}
	return nil
}

func checkNumericBounds(c *domain.Constraints, v float64) error {
	if c.Min != nil && v < *c.Min {
		return fmt.Errorf("%w: %v is below minimum %v", domain.ErrValidation, v, *c.Min)
	}
	if c.Max != nil && v > *c.Max {
		return fmt.Errorf("%w: %v exceeds maximum %v", domain.ErrValidation, v, *c.Max)
	}
	return nil
}

func checkStringConstraints(c *domain.Constraints, v string) error {
	if c.MinLength != nil && len(v) < *c.MinLength {
		return fmt.Errorf("%w: length %d is below minimum %d", domain.ErrValidation, len(v), *c.MinLength)
	}
	if c.MaxLength != nil && len(v) > *c.MaxLength {
		return fmt.Errorf("%w: length %d exceeds maximum %d", domain.ErrValidation, len(v), *c.MaxLength)
	}
	if len(c.Enum) > 0 {
		for _, allowed := range c.Enum {
			if v == allowed {
				return nil
			}
		}
		return fmt.Errorf("%w: %q is not one of the allowed values", domain.ErrValidation, v)
	}
	if c.Pattern != "" {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return fmt.Errorf("%w: invalid pattern constraint: %v", domain.ErrValidation, err)
		}
		if !re.MatchString(v) {
			return fmt.Errorf("%w: %q does not match the required pattern", domain.ErrValidation, v)
		}
	}
	return nil
}
