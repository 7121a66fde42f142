package ssrf

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/felixgeelhaar/quizguard/internal/domain"
)

// maxRedirects bounds redirect chains; each hop is re-validated in full
const maxRedirects = 5

// NewSafeClient builds an *http.Client whose every connection re-resolves
// the hostname through the DNS validator and whose redirect targets pass
// the full URL gate again. Fetch orchestration (retries, backoff, request
// timeouts) stays with the caller; the client only guarantees that no
// connection reaches a forbidden address.
func NewSafeClient(v *Validator, d *DNSValidator, allowHTTP bool) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("%w: malformed dial address %q", domain.ErrSSRFRejected, addr)
			}
			// Resolution happens here, at connect time, and the connection is
			// pinned to a vetted address. Re-resolving inside the dial closes
			// the window a rebinding attack needs.
			addrs, err := d.Resolve(ctx, host)
			if err != nil {
				return nil, err
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0].String(), port))
		},
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w: more than %d redirects", domain.ErrSSRFRejected, maxRedirects)
			}
			if _, err := v.ValidateURL(req.URL.String(), allowHTTP); err != nil {
				return fmt.Errorf("redirect target: %w", err)
			}
			return nil
		},
	}
}
