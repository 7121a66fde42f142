package permission

import (
	"net/url"
	"sort"
	"strings"

	"github.com/felixgeelhaar/quizguard/internal/domain"
)

// Analyzer extracts the capability manifest a document needs, independent of
// any tier. Moderators compare the manifest against a creator's grant before
// approving an upgrade request.
type Analyzer struct{}

// Requirements walks the document and reports every external touchpoint:
// API hosts and URL patterns, attachment hosts, and upload categories
func (Analyzer) Requirements(doc *domain.Quiz) *domain.Requirements {
	req := &domain.Requirements{APICallCount: len(doc.APIIntegrations)}

	apiHosts := map[string]bool{}
	patterns := map[string]bool{}
	categories := map[string]bool{}
	attachmentHosts := map[string]bool{}

	for _, integration := range doc.APIIntegrations {
		target := integration.TargetURL()
		if target == "" {
			continue
		}
		patterns[target] = true
		if host := templateHost(target); host != "" {
			apiHosts[host] = true
		}
	}

	for _, question := range doc.Questions {
		if question.Data.ImageURL != "" {
			if host := templateHost(question.Data.ImageURL); host != "" {
				attachmentHosts[host] = true
			}
		}
		for _, attachment := range question.Data.Attachments {
			if host := templateHost(attachment.URL); host != "" {
				attachmentHosts[host] = true
			}
			category := strings.ToLower(strings.TrimSpace(attachment.Category))
			if category != "" {
				categories[category] = true
			}
		}
	}

	req.APIHosts = sortedKeys(apiHosts)
	req.URLPatterns = sortedKeys(patterns)
	req.UploadCategories = sortedKeys(categories)
	req.AttachmentHosts = sortedKeys(attachmentHosts)
	return req
}

// templateHost extracts the host of a URL that may contain {placeholder}
// segments. A placeholder inside the host itself yields the raw host string
// so the manifest surfaces it for review rather than hiding it.
func templateHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		// url.Parse chokes on some placeholder forms; fall back to a
		// scheme-strip so the manifest still names the target.
		trimmed := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
		if idx := strings.IndexAny(trimmed, "/?"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		return strings.ToLower(trimmed)
	}
	return strings.ToLower(u.Hostname())
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
