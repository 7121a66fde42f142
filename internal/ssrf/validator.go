// Package ssrf validates externally reachable URLs against server-side
// request forgery. The URL gate is a sequence of syntactic checks; the DNS
// validator re-resolves hostnames at request time; redirect targets are
// re-validated through the same full gate. Safety results are never cached.
package ssrf

import (
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"

	"github.com/felixgeelhaar/quizguard/internal/domain"
)

// maxURLLength bounds URLs before any parsing
const maxURLLength = 2048

// blockedSchemes can never be enabled, independent of allowHTTP
var blockedSchemes = map[string]bool{
	"file": true, "ftp": true, "sftp": true, "tftp": true,
	"gopher": true, "dict": true, "ldap": true, "ldaps": true,
	"jar": true, "netdoc": true, "mailto": true,
	"data": true, "javascript": true, "vbscript": true,
}

// internalTLDs are suffixes that only resolve on internal networks
var internalTLDs = []string{
	".local", ".internal", ".lan", ".corp",
	".private", ".intranet", ".home", ".localdomain",
}

var (
	allDigits     = regexp.MustCompile(`^[0-9]+$`)
	hexHost       = regexp.MustCompile(`^0[xX][0-9a-fA-F]+$`)
	dottedNumeric = regexp.MustCompile(`^[0-9xX.]+$`)
)

// Validator runs the sequential URL gate. Stateless and safe for
// concurrent use.
type Validator struct{}

// NewValidator creates a URL validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateURL runs the full gate and returns the URL unchanged when it
// passes. Every rejection wraps domain.ErrSSRFRejected and is final: SSRF
// rejections are never retried or softened.
func (v *Validator) ValidateURL(rawURL string, allowHTTP bool) (string, error) {
	if len(rawURL) > maxURLLength {
		return "", reject("url exceeds %d characters", maxURLLength)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", reject("malformed url: %v", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if blockedSchemes[scheme] {
		return "", reject("scheme %q is blocked", scheme)
	}
	switch scheme {
	case "https":
	case "http":
		if !allowHTTP {
			return "", reject("scheme http is not allowed here")
		}
	default:
		return "", reject("scheme %q is not allowed", scheme)
	}

	host := u.Hostname()
	if host == "" {
		return "", reject("url has no hostname")
	}

	if isIPLiteral(host) {
		return "", reject("ip-literal hosts are not allowed")
	}

	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") ||
		strings.HasPrefix(lower, "127.") {
		return "", reject("localhost is not allowed")
	}

	for _, tld := range internalTLDs {
		if strings.HasSuffix(lower, tld) {
			return "", reject("internal tld %q is not allowed", tld)
		}
	}

	if u.User != nil {
		return "", reject("embedded credentials are not allowed")
	}

	if err := checkHostnameASCII(host); err != nil {
		return "", err
	}

	// Template placeholders may appear only in the query string or a body
	// template, never in scheme, host, or path.
	prefix := rawURL
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		prefix = rawURL[:i]
	}
	if strings.ContainsAny(prefix, "{}$") {
		return "", reject("template placeholders are not allowed in scheme, host, or path")
	}

	return rawURL, nil
}

// isIPLiteral recognizes hosts written as IP addresses in dotted-IPv4,
// bracketed-IPv6, decimal, hex, or octal form
func isIPLiteral(host string) bool {
	if _, err := netip.ParseAddr(host); err == nil {
		return true
	}
	// A single decimal or hex number is a packed IPv4 address to most
	// HTTP stacks (http://2130706433/ is 127.0.0.1).
	if allDigits.MatchString(host) || hexHost.MatchString(host) {
		return true
	}
	// Dotted forms with hex or leading-zero octal parts are parsed
	// permissively by many resolvers; anything purely numeric-dotted that
	// netip did not accept is still an address spelling.
	if dottedNumeric.MatchString(host) && strings.Contains(host, ".") {
		return true
	}
	return false
}

// checkHostnameASCII rejects non-ASCII and punycode-encoded hostnames,
// closing the unicode-homograph class. Hostnames are NFC-normalized before
// the check so decomposed spellings cannot slip through.
func checkHostnameASCII(host string) error {
	normalized := norm.NFC.String(host)
	for _, r := range normalized {
		if r > 127 {
			return reject("non-ascii hostname %q is not allowed", host)
		}
	}
	for _, label := range strings.Split(normalized, ".") {
		if strings.HasPrefix(strings.ToLower(label), "xn--") {
			decoded, err := idna.Lookup.ToUnicode(label)
			if err != nil {
				return reject("malformed punycode label %q", label)
			}
			return reject("punycode hostname label %q (%q) is not allowed", label, decoded)
		}
	}
	return nil
}

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrSSRFRejected, fmt.Sprintf(format, args...))
}
