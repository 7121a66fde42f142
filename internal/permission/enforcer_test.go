package permission

import (
	"reflect"
	"testing"

	"github.com/felixgeelhaar/quizguard/internal/config"
	"github.com/felixgeelhaar/quizguard/internal/domain"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Allowlists.Global = []string{"api.example.com", "*.trusted.org"}
	return cfg
}

func testDoc(t *testing.T, integrations ...*domain.APIIntegration) *domain.Quiz {
	t.Helper()
	doc := &domain.Quiz{
		Metadata: domain.Metadata{Title: "Permission Fixture"},
		Variables: map[string]*domain.VariableDefinition{
			"score":    {RawType: "integer", Default: 0},
			"nickname": {RawType: "string", RawTags: []string{"user_input"}, Default: ""},
		},
		Questions: []*domain.Question{
			{ID: 1, Data: domain.QuestionData{Type: "text", Text: "Name?"}},
		},
		APIIntegrations: integrations,
	}
	for name, def := range doc.Variables {
		if err := def.Normalize(name); err != nil {
			t.Fatalf("Normalize(%q) error = %v", name, err)
		}
	}
	return doc
}

func check(cfg config.Config, doc *domain.Quiz, tier domain.Tier) *domain.ValidationResult {
	result := &domain.ValidationResult{}
	NewEnforcer(cfg).Check(doc, tier, result)
	return result
}

func TestRestrictedFixedAllowlistedURL(t *testing.T) {
	doc := testDoc(t, &domain.APIIntegration{
		ID:     "lookup",
		Method: "GET",
		Timing: "after_answer",
		URL:    "https://api.example.com/v1/facts",
	})
	result := check(testConfig(), doc, domain.TierRestricted)
	if len(result.PermissionErrors) != 0 {
		t.Fatalf("PermissionErrors = %v, want none", result.PermissionErrors)
	}
}

func TestRestrictedRejectsVariablesAndUnlistedHosts(t *testing.T) {
	tests := []struct {
		name        string
		integration *domain.APIIntegration
		missing     string
	}{
		{
			name: "url template",
			integration: &domain.APIIntegration{
				ID: "templated", Method: "GET",
				URLTemplate: "https://api.example.com/users/{nickname}",
			},
			missing: "url_variables",
		},
		{
			name: "query params",
			integration: &domain.APIIntegration{
				ID: "query", Method: "GET",
				URL:         "https://api.example.com/v1/facts",
				QueryParams: map[string]string{"n": "{score}"},
			},
			missing: "url_variables",
		},
		{
			name: "unlisted host",
			integration: &domain.APIIntegration{
				ID: "unlisted", Method: "GET",
				URL: "https://api.other.net/v1/facts",
			},
			missing: "unlisted_api_host",
		},
	}
	cfg := testConfig()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := check(cfg, testDoc(t, tt.integration), domain.TierRestricted)
			if len(result.PermissionErrors) == 0 {
				t.Fatal("expected permission errors, got none")
			}
			if !contains(result.MissingPermissions, tt.missing) {
				t.Errorf("MissingPermissions = %v, want %q listed", result.MissingPermissions, tt.missing)
			}
		})
	}
}

func TestMethodGate(t *testing.T) {
	doc := testDoc(t, &domain.APIIntegration{
		ID: "poster", Method: "POST",
		URL: "https://api.example.com/v1/submit",
	})
	cfg := testConfig()

	result := check(cfg, doc, domain.TierStandard)
	if !contains(result.MissingPermissions, "http_method:POST") {
		t.Errorf("MissingPermissions = %v, want http_method:POST", result.MissingPermissions)
	}

	result = check(cfg, doc, domain.TierAdvanced)
	if len(result.PermissionErrors) != 0 {
		t.Errorf("ADVANCED PermissionErrors = %v, want none", result.PermissionErrors)
	}
}

func TestCallCeiling(t *testing.T) {
	integrations := make([]*domain.APIIntegration, 6)
	for i := range integrations {
		integrations[i] = &domain.APIIntegration{
			ID: "call", Method: "GET",
			URL: "https://api.example.com/v1/facts",
		}
	}
	result := check(testConfig(), testDoc(t, integrations...), domain.TierRestricted)
	if !contains(result.MissingPermissions, "api_call_ceiling") {
		t.Errorf("MissingPermissions = %v, want api_call_ceiling", result.MissingPermissions)
	}

	// ADMIN has no ceiling.
	result = check(testConfig(), testDoc(t, integrations...), domain.TierAdmin)
	if len(result.PermissionErrors) != 0 {
		t.Errorf("ADMIN PermissionErrors = %v, want none", result.PermissionErrors)
	}
}

func TestStandardQueryVariableSafety(t *testing.T) {
	cfg := testConfig()

	safe := testDoc(t, &domain.APIIntegration{
		ID: "safe", Method: "GET",
		URL:         "https://api.other.net/v1/facts",
		QueryParams: map[string]string{"max": "{score}"},
	})
	result := check(cfg, safe, domain.TierStandard)
	if len(result.PermissionErrors) != 0 {
		t.Fatalf("numeric variable in query: PermissionErrors = %v, want none", result.PermissionErrors)
	}

	inline := testDoc(t, &domain.APIIntegration{
		ID: "inline", Method: "GET",
		URL: "https://api.other.net/v1/facts?max={score}",
	})
	result = check(cfg, inline, domain.TierStandard)
	if len(result.PermissionErrors) != 0 {
		t.Fatalf("inline query variable: PermissionErrors = %v, want none", result.PermissionErrors)
	}

	unsafe := testDoc(t, &domain.APIIntegration{
		ID: "unsafe", Method: "GET",
		URL:         "https://api.other.net/v1/facts",
		QueryParams: map[string]string{"name": "{nickname}"},
	})
	result = check(cfg, unsafe, domain.TierStandard)
	if !contains(result.MissingPermissions, "unsafe_variable_in_template") {
		t.Errorf("MissingPermissions = %v, want unsafe_variable_in_template", result.MissingPermissions)
	}

	undeclared := testDoc(t, &domain.APIIntegration{
		ID: "undeclared", Method: "GET",
		URL:         "https://api.other.net/v1/facts",
		QueryParams: map[string]string{"name": "{ghost}"},
	})
	result = check(cfg, undeclared, domain.TierStandard)
	if len(result.PermissionErrors) == 0 {
		t.Error("undeclared variable in query should be a permission error")
	}
}

func TestBodyTemplateAndAuthGates(t *testing.T) {
	doc := testDoc(t, &domain.APIIntegration{
		ID: "rich", Method: "GET",
		URL:            "https://api.other.net/v1/facts",
		BodyTemplate:   `{"score": {score}}`,
		Authentication: &domain.Authentication{Type: "bearer", ValueRef: "secrets/api"},
	})
	cfg := testConfig()

	result := check(cfg, doc, domain.TierStandard)
	for _, want := range []string{"body_templates", "custom_auth"} {
		if !contains(result.MissingPermissions, want) {
			t.Errorf("MissingPermissions = %v, want %q listed", result.MissingPermissions, want)
		}
	}

	result = check(cfg, doc, domain.TierAdvanced)
	if len(result.PermissionErrors) != 0 {
		t.Errorf("ADVANCED PermissionErrors = %v, want none", result.PermissionErrors)
	}
}

func TestAdvancedTemplateMustBeHTTPS(t *testing.T) {
	doc := testDoc(t, &domain.APIIntegration{
		ID: "insecure", Method: "GET",
		URLTemplate: "http://api.other.net/users/{nickname}",
	})
	result := check(testConfig(), doc, domain.TierAdvanced)
	if len(result.PermissionErrors) == 0 {
		t.Error("http url template should be rejected")
	}
}

func TestMediaPolicies(t *testing.T) {
	cfg := testConfig()
	imageDoc := func(rawURL string) *domain.Quiz {
		doc := testDoc(t)
		doc.Questions[0].Data.ImageURL = rawURL
		return doc
	}

	// RESTRICTED requires an allowlisted CDN.
	result := check(cfg, imageDoc("https://cdn.imgur.com/pic.png"), domain.TierRestricted)
	if len(result.PermissionErrors) != 0 {
		t.Errorf("cdn image at RESTRICTED: PermissionErrors = %v, want none", result.PermissionErrors)
	}
	result = check(cfg, imageDoc("https://random.example.net/pic.png"), domain.TierRestricted)
	if !contains(result.MissingPermissions, "media_any_domain") {
		t.Errorf("MissingPermissions = %v, want media_any_domain", result.MissingPermissions)
	}

	// STANDARD allows any safe domain but no variables.
	result = check(cfg, imageDoc("https://random.example.net/pic.png"), domain.TierStandard)
	if len(result.PermissionErrors) != 0 {
		t.Errorf("any-domain image at STANDARD: PermissionErrors = %v, want none", result.PermissionErrors)
	}
	result = check(cfg, imageDoc("https://cdn.example.net/{nickname}.png"), domain.TierStandard)
	if !contains(result.MissingPermissions, "media_url_variables") {
		t.Errorf("MissingPermissions = %v, want media_url_variables", result.MissingPermissions)
	}

	// ADVANCED allows variables; the substituted URL is gated at render time.
	result = check(cfg, imageDoc("https://cdn.example.net/{nickname}.png"), domain.TierAdvanced)
	if len(result.PermissionErrors) != 0 {
		t.Errorf("templated image at ADVANCED: PermissionErrors = %v, want none", result.PermissionErrors)
	}

	// Fixed media URLs never escape the SSRF gate, not even at ADMIN.
	result = check(cfg, imageDoc("https://127.0.0.1/pic.png"), domain.TierAdmin)
	if len(result.PermissionErrors) == 0 {
		t.Error("loopback image url should be rejected at every tier")
	}
}

func TestAttachmentCategories(t *testing.T) {
	doc := testDoc(t)
	doc.Questions[0].Data.Attachments = []domain.Attachment{
		{URL: "https://files.example.net/clip.mp4", Category: "video"},
	}
	cfg := testConfig()

	result := check(cfg, doc, domain.TierStandard)
	if !contains(result.MissingPermissions, "attachment_category:video") {
		t.Errorf("MissingPermissions = %v, want attachment_category:video", result.MissingPermissions)
	}

	result = check(cfg, doc, domain.TierAdvanced)
	if len(result.PermissionErrors) != 0 {
		t.Errorf("video attachment at ADVANCED: PermissionErrors = %v, want none", result.PermissionErrors)
	}
}

// A document accepted at one tier must be accepted at every higher tier.
func TestTierMonotonicity(t *testing.T) {
	cfg := testConfig()
	docs := map[string]*domain.Quiz{
		"fixed get": testDoc(t, &domain.APIIntegration{
			ID: "a", Method: "GET", URL: "https://api.example.com/v1/facts",
		}),
		"query variable": testDoc(t, &domain.APIIntegration{
			ID: "b", Method: "GET",
			URL:         "https://api.other.net/v1/facts",
			QueryParams: map[string]string{"max": "{score}"},
		}),
		"full template post": testDoc(t, &domain.APIIntegration{
			ID: "c", Method: "POST",
			URLTemplate:  "https://api.other.net/users/{nickname}",
			BodyTemplate: `{"score": {score}}`,
		}),
	}
	tiers := domain.Tiers()
	for name, doc := range docs {
		accepted := false
		for _, tier := range tiers {
			ok := len(check(cfg, doc, tier).PermissionErrors) == 0
			if accepted && !ok {
				t.Errorf("%s: accepted at a lower tier but rejected at %s", name, tier)
			}
			accepted = accepted || ok
		}
		if !accepted {
			t.Errorf("%s: rejected at every tier", name)
		}
	}
}

func TestForCreatorExtendsAllowlist(t *testing.T) {
	cfg := testConfig()
	cfg.Allowlists.PerCreator = map[string][]string{
		"creator-7": {"partner.example.io"},
	}
	doc := testDoc(t, &domain.APIIntegration{
		ID: "partner", Method: "GET",
		URL: "https://partner.example.io/v1/data",
	})
	base := NewEnforcer(cfg)

	result := &domain.ValidationResult{}
	base.Check(doc, domain.TierRestricted, result)
	if len(result.PermissionErrors) == 0 {
		t.Fatal("partner host should be rejected without the per-creator grant")
	}

	result = &domain.ValidationResult{}
	base.ForCreator("creator-7").Check(doc, domain.TierRestricted, result)
	if len(result.PermissionErrors) != 0 {
		t.Errorf("with grant: PermissionErrors = %v, want none", result.PermissionErrors)
	}
}

func TestRequirementsManifest(t *testing.T) {
	doc := testDoc(t,
		&domain.APIIntegration{ID: "a", Method: "GET", URL: "https://api.example.com/v1/facts"},
		&domain.APIIntegration{ID: "b", Method: "GET", URLTemplate: "https://api.other.net/users/{nickname}"},
	)
	doc.Questions[0].Data.ImageURL = "https://cdn.imgur.com/pic.png"
	doc.Questions[0].Data.Attachments = []domain.Attachment{
		{URL: "https://files.example.net/clip.mp4", Category: "video"},
		{URL: "https://files.example.net/sheet.pdf", Category: "document"},
	}

	req := Analyzer{}.Requirements(doc)

	if req.APICallCount != 2 {
		t.Errorf("APICallCount = %d, want 2", req.APICallCount)
	}
	if want := []string{"api.example.com", "api.other.net"}; !reflect.DeepEqual(req.APIHosts, want) {
		t.Errorf("APIHosts = %v, want %v", req.APIHosts, want)
	}
	if want := []string{"document", "video"}; !reflect.DeepEqual(req.UploadCategories, want) {
		t.Errorf("UploadCategories = %v, want %v", req.UploadCategories, want)
	}
	if want := []string{"cdn.imgur.com", "files.example.net"}; !reflect.DeepEqual(req.AttachmentHosts, want) {
		t.Errorf("AttachmentHosts = %v, want %v", req.AttachmentHosts, want)
	}
	if len(req.URLPatterns) != 2 {
		t.Errorf("URLPatterns = %v, want both targets", req.URLPatterns)
	}
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
