// Package config holds the process configuration: tier capability tables,
// URL allowlists, sanitizer bounds, and validator defaults. A Config is
// constructed once at process start and passed explicitly into every
// component that needs it; there is no global configuration state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/quizguard/internal/domain"
)

// URLShape names what forms an integration URL may take at a tier
type URLShape string

const (
	URLShapeFixedAllowlisted URLShape = "fixed_allowlisted" // fixed URL, allowlisted host only
	URLShapeQueryVariables   URLShape = "query_variables"   // fixed URL, variables in query params
	URLShapeFullTemplate     URLShape = "full_template"     // variables anywhere in the template
	URLShapeAny              URLShape = "any"               // validation relaxed (ADMIN)
)

// ImagePolicy names where a question's image URL may point at a tier
type ImagePolicy string

const (
	ImagePolicyCDNAllowlist ImagePolicy = "cdn_allowlist" // allowlisted CDNs, https only
	ImagePolicyAnyDomain    ImagePolicy = "any_domain"    // any https or http domain
	ImagePolicyVariables    ImagePolicy = "variables"     // any domain plus variable substitution
	ImagePolicyAny          ImagePolicy = "any"
)

// TierCapabilities is one tier's row of the capability table
type TierCapabilities struct {
	MaxAPICalls    int         `yaml:"max_api_calls"` // per session; <0 means unbounded
	AllowedMethods []string    `yaml:"allowed_methods"`
	URLShape       URLShape    `yaml:"url_shape"`
	BodyTemplates  bool        `yaml:"body_templates"`
	CustomAuth     bool        `yaml:"custom_auth"`
	ImagePolicy    ImagePolicy `yaml:"image_policy"`
}

// AllowsMethod reports whether the tier may use the given HTTP method
func (c TierCapabilities) AllowsMethod(method string) bool {
	method = strings.ToUpper(strings.TrimSpace(method))
	for _, m := range c.AllowedMethods {
		if strings.ToUpper(m) == method {
			return true
		}
	}
	return false
}

// Unbounded reports whether the tier has no API call ceiling
func (c TierCapabilities) Unbounded() bool { return c.MaxAPICalls < 0 }

// Tiers holds the capability table for every tier
type Tiers struct {
	Restricted TierCapabilities `yaml:"restricted"`
	Standard   TierCapabilities `yaml:"standard"`
	Advanced   TierCapabilities `yaml:"advanced"`
	Admin      TierCapabilities `yaml:"admin"`
}

// ForTier returns the capability row for a tier
func (t Tiers) ForTier(tier domain.Tier) TierCapabilities {
	switch tier {
	case domain.TierStandard:
		return t.Standard
	case domain.TierAdvanced:
		return t.Advanced
	case domain.TierAdmin:
		return t.Admin
	default:
		return t.Restricted
	}
}

// Allowlists carries the configured domain allowlists
type Allowlists struct {
	// Global is consulted for RESTRICTED-tier fixed integration URLs.
	Global []string `yaml:"global"`
	// ImageCDNs is consulted for RESTRICTED-tier image URLs.
	ImageCDNs []string `yaml:"image_cdns"`
	// PerCreator extends Global for individual creators.
	PerCreator map[string][]string `yaml:"per_creator"`
}

// Validation carries the auto-generated constraint defaults the validator
// applies when a definition omits its own
type Validation struct {
	UserStringMaxLength int     `yaml:"user_string_max_length"`
	APIStringMaxLength  int     `yaml:"api_string_max_length"`
	ScoreBound          float64 `yaml:"score_bound"`
	UserArrayMaxItems   int     `yaml:"user_array_max_items"`
	APIArrayMaxItems    int     `yaml:"api_array_max_items"`
}

// Sanitizer carries the sanitizer's resource bounds
type Sanitizer struct {
	MaxStringLength int `yaml:"max_string_length"`
	MaxDepth        int `yaml:"max_depth"`
	MaxJSONBytes    int `yaml:"max_json_bytes"`
}

// Config is the complete process configuration
type Config struct {
	Tiers      Tiers      `yaml:"tiers"`
	Allowlists Allowlists `yaml:"allowlists"`
	Validation Validation `yaml:"validation"`
	Sanitizer  Sanitizer  `yaml:"sanitizer"`
}

// Default returns the built-in configuration. The tier table mirrors the
// published capability matrix; deployments override pieces via file or
// environment.
func Default() Config {
	return Config{
		Tiers: Tiers{
			Restricted: TierCapabilities{
				MaxAPICalls:    5,
				AllowedMethods: []string{"GET"},
				URLShape:       URLShapeFixedAllowlisted,
				ImagePolicy:    ImagePolicyCDNAllowlist,
			},
			Standard: TierCapabilities{
				MaxAPICalls:    20,
				AllowedMethods: []string{"GET"},
				URLShape:       URLShapeQueryVariables,
				ImagePolicy:    ImagePolicyAnyDomain,
			},
			Advanced: TierCapabilities{
				MaxAPICalls:    50,
				AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
				URLShape:       URLShapeFullTemplate,
				BodyTemplates:  true,
				CustomAuth:     true,
				ImagePolicy:    ImagePolicyVariables,
			},
			Admin: TierCapabilities{
				MaxAPICalls:    -1,
				AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
				URLShape:       URLShapeAny,
				BodyTemplates:  true,
				CustomAuth:     true,
				ImagePolicy:    ImagePolicyAny,
			},
		},
		Allowlists: Allowlists{
			ImageCDNs: []string{
				"*.imgur.com",
				"*.cloudinary.com",
				"*.imgix.net",
				"images.unsplash.com",
			},
		},
		Validation: Validation{
			UserStringMaxLength: 1_000,
			APIStringMaxLength:  10_000,
			ScoreBound:          1e9,
			UserArrayMaxItems:   100,
			APIArrayMaxItems:    10_000,
		},
		Sanitizer: Sanitizer{
			MaxStringLength: 10_000,
			MaxDepth:        10,
			MaxJSONBytes:    1 << 20,
		},
	}
}

// FromEnv overlays environment variables onto a config. Only operational
// knobs are exposed this way; the tier table changes via file only.
func FromEnv(cfg Config) Config {
	cfg.Sanitizer.MaxStringLength = getEnvInt("QUIZGUARD_SANITIZER_MAX_STRING", cfg.Sanitizer.MaxStringLength)
	cfg.Sanitizer.MaxDepth = getEnvInt("QUIZGUARD_SANITIZER_MAX_DEPTH", cfg.Sanitizer.MaxDepth)
	cfg.Sanitizer.MaxJSONBytes = getEnvInt("QUIZGUARD_SANITIZER_MAX_JSON_BYTES", cfg.Sanitizer.MaxJSONBytes)
	if extra := getEnv("QUIZGUARD_ALLOWLIST_EXTRA", ""); extra != "" {
		for _, entry := range strings.Split(extra, ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				cfg.Allowlists.Global = append(cfg.Allowlists.Global, entry)
			}
		}
	}
	return cfg
}

// Validate rejects configurations that would weaken safety invariants
func (c Config) Validate() error {
	for _, tier := range domain.Tiers() {
		caps := c.Tiers.ForTier(tier)
		if len(caps.AllowedMethods) == 0 {
			return fmt.Errorf("tier %s: allowed_methods cannot be empty", tier)
		}
		if caps.MaxAPICalls == 0 {
			return fmt.Errorf("tier %s: max_api_calls cannot be zero (use a positive ceiling or -1)", tier)
		}
	}
	if c.Validation.UserStringMaxLength <= 0 || c.Validation.APIStringMaxLength <= 0 {
		return fmt.Errorf("validation string length defaults must be positive")
	}
	if c.Validation.ScoreBound <= 0 {
		return fmt.Errorf("validation score_bound must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
