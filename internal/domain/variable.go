package domain

import (
	"fmt"
	"strings"
)

// VariableType classifies the value a quiz variable may hold
type VariableType string

const (
	TypeInteger VariableType = "integer"
	TypeFloat   VariableType = "float"
	TypeBoolean VariableType = "boolean"
	TypeString  VariableType = "string"
	TypeArray   VariableType = "array"
)

// IsNumeric reports whether values of this type are numbers
func (t VariableType) IsNumeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// ParseVariableType normalizes a raw type string
func ParseVariableType(s string) (VariableType, error) {
	switch VariableType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeInteger:
		return TypeInteger, nil
	case TypeFloat:
		return TypeFloat, nil
	case TypeBoolean:
		return TypeBoolean, nil
	case TypeString:
		return TypeString, nil
	case TypeArray:
		return TypeArray, nil
	default:
		return "", fmt.Errorf("%w: unknown variable type %q", ErrInvalidInput, s)
	}
}

// Actor identifies who is attempting to mutate a variable
type Actor string

const (
	ActorUser   Actor = "user"
	ActorAPI    Actor = "api"
	ActorEngine Actor = "engine"
)

// ParseActor normalizes a raw actor string
func ParseActor(s string) (Actor, error) {
	switch Actor(strings.ToLower(strings.TrimSpace(s))) {
	case ActorUser:
		return ActorUser, nil
	case ActorAPI:
		return ActorAPI, nil
	case ActorEngine:
		return ActorEngine, nil
	default:
		return "", fmt.Errorf("%w: unknown actor %q", ErrInvalidInput, s)
	}
}

// VariableTag is a closed-set label encoding a variable's purpose,
// visibility, or safety classification
type VariableTag string

const (
	TagScore       VariableTag = "score"
	TagLeaderboard VariableTag = "leaderboard"
	TagPublic      VariableTag = "public"
	TagPrivate     VariableTag = "private"
	TagState       VariableTag = "state"
	TagUserInput   VariableTag = "user_input"
	TagUntrusted   VariableTag = "untrusted"
	TagAPIData     VariableTag = "api_data"
	TagSanitized   VariableTag = "sanitized"
	TagSafeForAPI  VariableTag = "safe_for_api"
	TagImmutable   VariableTag = "immutable"
)

var knownTags = map[VariableTag]bool{
	TagScore:       true,
	TagLeaderboard: true,
	TagPublic:      true,
	TagPrivate:     true,
	TagState:       true,
	TagUserInput:   true,
	TagUntrusted:   true,
	TagAPIData:     true,
	TagSanitized:   true,
	TagSafeForAPI:  true,
	TagImmutable:   true,
}

// ParseVariableTag normalizes a raw tag string
func ParseVariableTag(s string) (VariableTag, error) {
	tag := VariableTag(strings.ToLower(strings.TrimSpace(s)))
	if !knownTags[tag] {
		return "", fmt.Errorf("%w: unknown variable tag %q", ErrInvalidInput, s)
	}
	return tag, nil
}

// tagImplications is the order-independent implication table. It is applied
// as a fixed-point closure: implied tags may themselves imply further tags.
var tagImplications = map[VariableTag][]VariableTag{
	TagLeaderboard: {TagScore},
	TagScore:       {TagPublic},
	TagUserInput:   {TagUntrusted},
	TagAPIData:     {TagSanitized, TagSafeForAPI},
}

// TagSet is the set of tags attached to one variable
type TagSet map[VariableTag]bool

// NewTagSet builds a TagSet from raw strings without applying closure
func NewTagSet(raw []string) (TagSet, error) {
	set := make(TagSet, len(raw))
	for _, s := range raw {
		tag, err := ParseVariableTag(s)
		if err != nil {
			return nil, err
		}
		set[tag] = true
	}
	return set, nil
}

// Has reports whether the set contains tag
func (s TagSet) Has(tag VariableTag) bool { return s[tag] }

// Close applies the implication table until no tag set changes
func (s TagSet) Close() {
	for changed := true; changed; {
		changed = false
		for tag := range s {
			for _, implied := range tagImplications[tag] {
				if !s[implied] {
					s[implied] = true
					changed = true
				}
			}
		}
	}
}

// List returns the tags in an unspecified order
func (s TagSet) List() []VariableTag {
	out := make([]VariableTag, 0, len(s))
	for tag := range s {
		out = append(out, tag)
	}
	return out
}

// Constraints bound the values a variable may take. Nil pointer fields mean
// the bound is unset; the validator fills sensible defaults for unset bounds.
type Constraints struct {
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	MinLength *int     `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Enum      []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	MinItems  *int     `json:"min_items,omitempty" yaml:"min_items,omitempty"`
	MaxItems  *int     `json:"max_items,omitempty" yaml:"max_items,omitempty"`
}

// FallbackPolicy selects what happens when an API-sourced value is missing
// or fails validation
type FallbackPolicy string

const (
	FallbackDefault FallbackPolicy = "default" // fall back to the declared default
	FallbackSkip    FallbackPolicy = "skip"    // leave the current value untouched
	FallbackAbort   FallbackPolicy = "abort"   // surface the failure to the caller
)

// VariableDefinition declares one quiz variable: its type, default value,
// who may mutate it, and its tag classification.
//
// Raw* fields carry the untyped strings as they appear in the quiz document;
// Normalize resolves them into the typed fields and must be called before
// the definition is used by the store or the engine.
type VariableDefinition struct {
	Name         string         `json:"-" yaml:"-"`
	RawType      string         `json:"type" yaml:"type"`
	RawItemType  string         `json:"array_item_type,omitempty" yaml:"array_item_type,omitempty"`
	Default      any            `json:"default" yaml:"default"`
	RawMutableBy []string       `json:"mutable_by,omitempty" yaml:"mutable_by,omitempty"`
	RawTags      []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Constraints  *Constraints   `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Fallback     FallbackPolicy `json:"fallback,omitempty" yaml:"fallback,omitempty"`

	Type          VariableType   `json:"-" yaml:"-"`
	ArrayItemType VariableType   `json:"-" yaml:"-"`
	MutableBy     map[Actor]bool `json:"-" yaml:"-"`
	Tags          TagSet         `json:"-" yaml:"-"`
}

// Normalize resolves raw document fields into their typed forms, validates
// array invariants, applies the tag implication closure, and rejects illegal
// tag combinations. Performed in that order so implied tags are present when
// combinations are checked.
func (d *VariableDefinition) Normalize(name string) error {
	d.Name = name

	typ, err := ParseVariableType(d.RawType)
	if err != nil {
		return fmt.Errorf("variable %q: %w", name, err)
	}
	d.Type = typ

	if d.Type == TypeArray {
		if d.RawItemType == "" {
			return fmt.Errorf("%w: variable %q: array type requires array_item_type", ErrInvalidInput, name)
		}
		item, err := ParseVariableType(d.RawItemType)
		if err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		if item == TypeArray {
			return fmt.Errorf("%w: variable %q: array_item_type cannot itself be array", ErrInvalidInput, name)
		}
		d.ArrayItemType = item
	} else if d.RawItemType != "" {
		return fmt.Errorf("%w: variable %q: array_item_type is only valid for array type", ErrInvalidInput, name)
	}

	d.MutableBy = make(map[Actor]bool, len(d.RawMutableBy))
	for _, raw := range d.RawMutableBy {
		actor, err := ParseActor(raw)
		if err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		d.MutableBy[actor] = true
	}

	tags, err := NewTagSet(d.RawTags)
	if err != nil {
		return fmt.Errorf("variable %q: %w", name, err)
	}
	tags.Close()
	d.Tags = tags

	if d.Fallback == "" {
		d.Fallback = FallbackDefault
	}
	switch d.Fallback {
	case FallbackDefault, FallbackSkip, FallbackAbort:
	default:
		return fmt.Errorf("%w: variable %q: unknown fallback policy %q", ErrInvalidInput, name, d.Fallback)
	}

	return d.checkTagCombinations()
}

func (d *VariableDefinition) checkTagCombinations() error {
	if d.Tags.Has(TagPublic) && d.Tags.Has(TagPrivate) {
		return fmt.Errorf("%w: variable %q: cannot be both public and private", ErrInvalidInput, d.Name)
	}
	if d.Tags.Has(TagScore) && !d.Type.IsNumeric() {
		return fmt.Errorf("%w: variable %q: score tag requires integer or float type, got %s",
			ErrInvalidInput, d.Name, d.Type)
	}
	if d.Tags.Has(TagLeaderboard) && !d.Type.IsNumeric() {
		return fmt.Errorf("%w: variable %q: leaderboard tag requires integer or float type, got %s",
			ErrInvalidInput, d.Name, d.Type)
	}
	return nil
}

// CanMutate reports whether actor is allowed to write this variable
func (d *VariableDefinition) CanMutate(actor Actor) bool {
	if d.Tags.Has(TagImmutable) {
		return false
	}
	return d.MutableBy[actor]
}

// SafeForAPIUse reports whether the variable may be substituted into an
// outbound URL or body template. Numeric types are inherently bounded;
// strings qualify only when constrained by an enum.
func (d *VariableDefinition) SafeForAPIUse() bool {
	if d.Tags.Has(TagSafeForAPI) {
		return true
	}
	if d.Type.IsNumeric() {
		return true
	}
	if d.Type == TypeString {
		return d.Constraints != nil && len(d.Constraints.Enum) > 0
	}
	return false
}
