package sanitize

import (
	"fmt"
	"regexp"

	"github.com/felixgeelhaar/quizguard/internal/domain"
)

// maxPatternLength bounds user-supplied regex patterns before any analysis
const maxPatternLength = 256

// Shapes known to produce catastrophic backtracking in backtracking regex
// engines. Go's regexp is RE2 and immune, but user-supplied patterns may be
// re-evaluated by downstream consumers (web clients, other services), so the
// shapes are rejected at the boundary.
var redosShapes = []struct {
	description string
	regex       *regexp.Regexp
}{
	{
		description: "nested quantifier",
		regex:       regexp.MustCompile(`\([^)]*[+*]\s*\)\s*[+*{]`),
	},
	{
		description: "quantified alternation with overlapping branches",
		regex:       regexp.MustCompile(`\([^)]*\|[^)]*\)\s*[+*{]`),
	},
	{
		description: "quantified backreference",
		regex:       regexp.MustCompile(`\\[0-9]\s*[+*{]`),
	},
	{
		description: "adjacent unbounded quantifiers",
		regex:       regexp.MustCompile(`[+*]\s*[+*]`),
	},
}

// ValidateRegexPattern rejects ReDoS-prone shapes before a user-supplied
// pattern is compiled or stored. Returns the pattern unchanged when safe.
func ValidateRegexPattern(pattern string) (string, error) {
	if pattern == "" {
		return "", fmt.Errorf("%w: pattern is empty", domain.ErrValidation)
	}
	if len(pattern) > maxPatternLength {
		return "", fmt.Errorf("%w: pattern exceeds %d characters", domain.ErrRegexUnsafe, maxPatternLength)
	}

	for _, shape := range redosShapes {
		if shape.regex.MatchString(pattern) {
			return "", fmt.Errorf("%w: %s", domain.ErrRegexUnsafe, shape.description)
		}
	}

	if _, err := regexp.Compile(pattern); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return pattern, nil
}
