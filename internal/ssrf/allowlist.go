package ssrf

import "strings"

// Allowlist matches hostnames against exact domains and "*.suffix"
// wildcards. A wildcard entry matches any subdomain of the suffix but not
// the bare suffix itself; list both when both are wanted.
type Allowlist struct {
	exact    map[string]bool
	suffixes []string
}

// NewAllowlist builds an allowlist from configured entries
func NewAllowlist(entries []string) *Allowlist {
	a := &Allowlist{exact: make(map[string]bool)}
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(entry, ".")))
		if entry == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(entry, "*."); ok {
			a.suffixes = append(a.suffixes, "."+rest)
			continue
		}
		a.exact[entry] = true
	}
	return a
}

// Allows reports whether host matches the list
func (a *Allowlist) Allows(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if a.exact[host] {
		return true
	}
	for _, suffix := range a.suffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// Extend returns a new allowlist combining the receiver with additional
// entries, layering a per-creator list over the global one. The receiver is
// not modified.
func (a *Allowlist) Extend(entries []string) *Allowlist {
	combined := NewAllowlist(entries)
	for host := range a.exact {
		combined.exact[host] = true
	}
	combined.suffixes = append(combined.suffixes, a.suffixes...)
	return combined
}

// Empty reports whether the list has no entries
func (a *Allowlist) Empty() bool {
	return len(a.exact) == 0 && len(a.suffixes) == 0
}
