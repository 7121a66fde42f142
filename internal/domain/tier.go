package domain

import (
	"fmt"
	"strings"
)

// Tier is a creator's permission level. Tiers are strictly ordered and
// capabilities are monotonic: everything a lower tier may do, every higher
// tier may do as well.
type Tier int

const (
	TierRestricted Tier = iota
	TierStandard
	TierAdvanced
	TierAdmin
)

// String returns the canonical tier name
func (t Tier) String() string {
	switch t {
	case TierRestricted:
		return "RESTRICTED"
	case TierStandard:
		return "STANDARD"
	case TierAdvanced:
		return "ADVANCED"
	case TierAdmin:
		return "ADMIN"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// AtLeast reports whether t grants at least the capabilities of other
func (t Tier) AtLeast(other Tier) bool { return t >= other }

// ParseTier resolves a tier name; the empty string maps to RESTRICTED
// (secure-by-default when the caller's auth layer supplies nothing).
func ParseTier(s string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "RESTRICTED":
		return TierRestricted, nil
	case "STANDARD":
		return TierStandard, nil
	case "ADVANCED":
		return TierAdvanced, nil
	case "ADMIN":
		return TierAdmin, nil
	default:
		return TierRestricted, fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, s)
	}
}

// Tiers lists all tiers in ascending capability order
func Tiers() []Tier {
	return []Tier{TierRestricted, TierStandard, TierAdvanced, TierAdmin}
}
