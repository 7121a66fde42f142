// Package permission enforces the creator tier capability table over quiz
// documents: which API integrations a tier may declare, and where its image
// and attachment URLs may point. Violations are permission errors, kept
// separate from structural errors so a structurally valid document can be
// re-evaluated against a different tier without re-validation.
package permission

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/quizguard/internal/config"
	"github.com/felixgeelhaar/quizguard/internal/domain"
	"github.com/felixgeelhaar/quizguard/internal/ssrf"
)

// placeholderPattern matches {variable_name} template placeholders
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Enforcer checks documents against the tier capability table. Stateless
// across calls and safe for concurrent use.
type Enforcer struct {
	cfg          config.Config
	urlValidator *ssrf.Validator
	apiAllowlist *ssrf.Allowlist
	cdnAllowlist *ssrf.Allowlist
}

// NewEnforcer builds an enforcer from the process configuration
func NewEnforcer(cfg config.Config) *Enforcer {
	return &Enforcer{
		cfg:          cfg,
		urlValidator: ssrf.NewValidator(),
		apiAllowlist: ssrf.NewAllowlist(cfg.Allowlists.Global),
		cdnAllowlist: ssrf.NewAllowlist(cfg.Allowlists.ImageCDNs),
	}
}

// ForCreator returns an enforcer whose API allowlist is extended with the
// creator's per-creator entries
func (e *Enforcer) ForCreator(creatorID string) *Enforcer {
	extra, ok := e.cfg.Allowlists.PerCreator[creatorID]
	if !ok {
		return e
	}
	extended := *e
	extended.apiAllowlist = e.apiAllowlist.Extend(extra)
	return &extended
}

// Check runs every permission check for the document at the given tier,
// appending to result. The document's variable definitions must already be
// normalized. Structural problems (unknown methods, missing URLs) are the
// validator's concern and are not reported here.
func (e *Enforcer) Check(doc *domain.Quiz, tier domain.Tier, result *domain.ValidationResult) {
	e.CheckIntegrations(doc, tier, result)
	e.CheckMedia(doc, tier, result)
}

// CheckIntegrations validates every declared API integration against the
// tier's capability row
func (e *Enforcer) CheckIntegrations(doc *domain.Quiz, tier domain.Tier, result *domain.ValidationResult) {
	caps := e.cfg.Tiers.ForTier(tier)

	if !caps.Unbounded() && len(doc.APIIntegrations) > caps.MaxAPICalls {
		result.AddPermissionError("tier %s allows at most %d api integrations, document declares %d",
			tier, caps.MaxAPICalls, len(doc.APIIntegrations))
		result.AddMissingPermission("api_call_ceiling")
	}

	for _, integration := range doc.APIIntegrations {
		e.checkIntegration(doc, integration, tier, caps, result)
	}
}

func (e *Enforcer) checkIntegration(doc *domain.Quiz, integration *domain.APIIntegration,
	tier domain.Tier, caps config.TierCapabilities, result *domain.ValidationResult) {

	name := integration.ID
	if name == "" {
		name = integration.TargetURL()
	}

	if integration.Method != "" && !caps.AllowsMethod(integration.Method) {
		result.AddPermissionError("integration %q: tier %s may not use method %s",
			name, tier, strings.ToUpper(integration.Method))
		result.AddMissingPermission("http_method:" + strings.ToUpper(integration.Method))
	}

	if integration.BodyTemplate != "" && !caps.BodyTemplates {
		result.AddPermissionError("integration %q: tier %s may not use body templates", name, tier)
		result.AddMissingPermission("body_templates")
	}

	if integration.Authentication != nil && !caps.CustomAuth {
		result.AddPermissionError("integration %q: tier %s may not declare custom authentication", name, tier)
		result.AddMissingPermission("custom_auth")
	}

	e.checkURLShape(doc, integration, name, tier, caps, result)
}

func (e *Enforcer) checkURLShape(doc *domain.Quiz, integration *domain.APIIntegration,
	name string, tier domain.Tier, caps config.TierCapabilities, result *domain.ValidationResult) {

	target := integration.TargetURL()
	if target == "" {
		return // structural, reported by the validator
	}
	templated := integration.URLTemplate != "" || placeholderPattern.MatchString(target)
	// Placeholders confined to the query string are query variables, not a
	// full template.
	pathTemplated := integration.URLTemplate != "" || placeholderPattern.MatchString(beforeQuery(target))

	switch caps.URLShape {
	case config.URLShapeFixedAllowlisted:
		if templated || len(integration.QueryParams) > 0 {
			result.AddPermissionError("integration %q: tier %s requires a fixed url without variables",
				name, tier)
			result.AddMissingPermission("url_variables")
			return
		}
		if _, err := e.urlValidator.ValidateURL(target, false); err != nil {
			result.AddPermissionError("integration %q: %v", name, err)
			return
		}
		host := hostOf(target)
		if !e.apiAllowlist.Allows(host) {
			result.AddPermissionError("integration %q: host %q is not on the allowlist for tier %s",
				name, host, tier)
			result.AddMissingPermission("unlisted_api_host")
		}

	case config.URLShapeQueryVariables:
		if pathTemplated {
			result.AddPermissionError("integration %q: tier %s may use variables only in query parameters",
				name, tier)
			result.AddMissingPermission("url_template")
			return
		}
		if _, err := e.urlValidator.ValidateURL(target, false); err != nil {
			result.AddPermissionError("integration %q: %v", name, err)
			return
		}
		// Query variables must be safe for API use at this tier, whether
		// declared in query_params or inline in the query string.
		queryVars := placeholderVariables(afterQuery(target))
		for _, value := range integration.QueryParams {
			queryVars = append(queryVars, placeholderVariables(value)...)
		}
		for _, variable := range queryVars {
			if !variableSafeForAPI(doc, variable) {
				result.AddPermissionError(
					"integration %q: query variable %q is not safe for api use",
					name, variable)
				result.AddMissingPermission("unsafe_variable_in_template")
			}
		}

	case config.URLShapeFullTemplate:
		// Any variable may appear anywhere in the template; the assembled URL
		// is still subject to the full SSRF gate at request time. Fixed URLs
		// are gated now.
		if !templated {
			if _, err := e.urlValidator.ValidateURL(target, false); err != nil {
				result.AddPermissionError("integration %q: %v", name, err)
			}
			return
		}
		if !strings.HasPrefix(strings.ToLower(target), "https://") {
			result.AddPermissionError("integration %q: url templates must be https", name)
		}

	case config.URLShapeAny:
		// Tier-shape checks are bypassed, the SSRF gate is not. Templated
		// URLs are gated at request time after substitution.
		if !templated {
			if _, err := e.urlValidator.ValidateURL(target, false); err != nil {
				result.AddPermissionError("integration %q: %v", name, err)
			}
		}
	}
}

// CheckMedia validates question image URLs and attachments against the
// tier's media policy
func (e *Enforcer) CheckMedia(doc *domain.Quiz, tier domain.Tier, result *domain.ValidationResult) {
	caps := e.cfg.Tiers.ForTier(tier)

	for _, question := range doc.Questions {
		if question.Data.ImageURL != "" {
			e.checkMediaURL(question.Data.ImageURL, question.ID, tier, caps, result)
		}
		for _, attachment := range question.Data.Attachments {
			e.checkMediaURL(attachment.URL, question.ID, tier, caps, result)
			e.checkAttachmentCategory(attachment, question.ID, tier, result)
		}
	}
}

func (e *Enforcer) checkMediaURL(rawURL string, questionID int, tier domain.Tier,
	caps config.TierCapabilities, result *domain.ValidationResult) {

	templated := placeholderPattern.MatchString(rawURL)

	switch caps.ImagePolicy {
	case config.ImagePolicyCDNAllowlist:
		if templated {
			result.AddPermissionError("question %d: tier %s may not use variables in media urls",
				questionID, tier)
			result.AddMissingPermission("media_url_variables")
			return
		}
		if _, err := e.urlValidator.ValidateURL(rawURL, false); err != nil {
			result.AddPermissionError("question %d: %v", questionID, err)
			return
		}
		host := hostOf(rawURL)
		if !e.cdnAllowlist.Allows(host) {
			result.AddPermissionError("question %d: media host %q is not an allowlisted cdn for tier %s",
				questionID, host, tier)
			result.AddMissingPermission("media_any_domain")
		}

	case config.ImagePolicyAnyDomain:
		if templated {
			result.AddPermissionError("question %d: tier %s may not use variables in media urls",
				questionID, tier)
			result.AddMissingPermission("media_url_variables")
			return
		}
		if _, err := e.urlValidator.ValidateURL(rawURL, true); err != nil {
			result.AddPermissionError("question %d: %v", questionID, err)
		}

	case config.ImagePolicyVariables:
		if templated {
			return // substituted URL passes the gate at render time
		}
		if _, err := e.urlValidator.ValidateURL(rawURL, true); err != nil {
			result.AddPermissionError("question %d: %v", questionID, err)
		}

	case config.ImagePolicyAny:
		if !templated {
			if _, err := e.urlValidator.ValidateURL(rawURL, true); err != nil {
				result.AddPermissionError("question %d: %v", questionID, err)
			}
		}
	}
}

// checkAttachmentCategory restricts non-image uploads to ADVANCED and above
func (e *Enforcer) checkAttachmentCategory(attachment domain.Attachment, questionID int,
	tier domain.Tier, result *domain.ValidationResult) {

	category := strings.ToLower(strings.TrimSpace(attachment.Category))
	if category == "" || category == "image" {
		return
	}
	if !tier.AtLeast(domain.TierAdvanced) {
		result.AddPermissionError("question %d: tier %s may not attach %s files",
			questionID, tier, category)
		result.AddMissingPermission("attachment_category:" + category)
	}
}

// variableSafeForAPI looks up a variable and applies the safe-for-api
// predicate; undeclared variables are unsafe by definition
func variableSafeForAPI(doc *domain.Quiz, name string) bool {
	def, ok := doc.Variables[name]
	if !ok {
		return false
	}
	return def.SafeForAPIUse()
}

// placeholderVariables extracts the variable names referenced by a template
func placeholderVariables(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func beforeQuery(rawURL string) string {
	if idx := strings.IndexByte(rawURL, '?'); idx >= 0 {
		return rawURL[:idx]
	}
	return rawURL
}

func afterQuery(rawURL string) string {
	if idx := strings.IndexByte(rawURL, '?'); idx >= 0 {
		return rawURL[idx+1:]
	}
	return ""
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
