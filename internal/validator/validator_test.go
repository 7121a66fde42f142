package validator

import (
	"strings"
	"testing"

	"github.com/felixgeelhaar/quizguard/internal/config"
	"github.com/felixgeelhaar/quizguard/internal/domain"
)

func intPtr(i int) *int { return &i }

// fruitDoc is a minimal well-formed document used as the mutation baseline
func fruitDoc() *domain.Quiz {
	return &domain.Quiz{
		Metadata: domain.Metadata{Title: "Fruit Quiz"},
		Variables: map[string]*domain.VariableDefinition{
			"fruits": {
				RawType: "integer", Default: 0,
				RawTags: []string{"score"}, RawMutableBy: []string{"engine"},
			},
			"apples": {
				RawType: "integer", Default: 0,
				RawMutableBy: []string{"engine"},
			},
			"name": {
				RawType: "string", Default: "",
				RawTags: []string{"user_input"}, RawMutableBy: []string{"user"},
			},
		},
		Questions: []*domain.Question{
			{
				ID:   1,
				Data: domain.QuestionData{Type: "boolean", Text: "Do you like apples?"},
				ScoreUpdates: []*domain.ScoreUpdate{
					{Condition: "answer == true", Update: map[string]string{"fruits": "fruits + 1"}},
				},
			},
			{ID: 2, Data: domain.QuestionData{Type: "final_message", Text: "Thanks!"}},
		},
		Transitions: map[string][]*domain.Transition{
			"1": {
				{Expression: "answer == true", NextQuestionID: intPtr(2)},
				{NextQuestionID: intPtr(2)},
			},
		},
	}
}

func validate(t *testing.T, doc *domain.Quiz, tier domain.Tier) *domain.ValidationResult {
	t.Helper()
	return New(config.Default()).Validate(doc, tier)
}

func TestValidDocument(t *testing.T) {
	result := validate(t, fruitDoc(), domain.TierRestricted)
	if !result.Valid() {
		t.Fatalf("Valid() = false; errors = %v, permission errors = %v",
			result.Errors, result.PermissionErrors)
	}
}

func TestStructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Quiz)
		wantErr string
	}{
		{
			name:    "no questions",
			mutate:  func(doc *domain.Quiz) { doc.Questions = nil; doc.Transitions = nil },
			wantErr: "no questions",
		},
		{
			name: "duplicate question ids",
			mutate: func(doc *domain.Quiz) {
				doc.Questions = append(doc.Questions, &domain.Question{
					ID: 1, Data: domain.QuestionData{Type: "text", Text: "again"},
				})
			},
			wantErr: "declared more than once",
		},
		{
			name: "unknown question type",
			mutate: func(doc *domain.Quiz) {
				doc.Questions[0].Data.Type = "essay"
			},
			wantErr: "unknown type",
		},
		{
			name: "multiple choice needs options",
			mutate: func(doc *domain.Quiz) {
				doc.Questions[0].Data.Type = "multiple_choice"
				doc.Questions[0].Data.Options = []string{"only one"}
				doc.Questions[0].ScoreUpdates = nil
				doc.Transitions["1"][0].Expression = "answer == 'only one'"
			},
			wantErr: "at least two options",
		},
		{
			name: "bad variable type",
			mutate: func(doc *domain.Quiz) {
				doc.Variables["fruits"].RawType = "decimal"
			},
			wantErr: "decimal",
		},
		{
			name: "transition target missing",
			mutate: func(doc *domain.Quiz) {
				doc.Transitions["1"][1].NextQuestionID = intPtr(99)
			},
			wantErr: "target question 99",
		},
		{
			name: "transition key not numeric",
			mutate: func(doc *domain.Quiz) {
				doc.Transitions["one"] = doc.Transitions["1"]
				delete(doc.Transitions, "1")
			},
			wantErr: "not a question id",
		},
		{
			name: "score update targets unknown variable",
			mutate: func(doc *domain.Quiz) {
				doc.Questions[0].ScoreUpdates[0].Update = map[string]string{"ghost": "1"}
			},
			wantErr: `unknown variable "ghost"`,
		},
		{
			name: "score update targets non engine-mutable variable",
			mutate: func(doc *domain.Quiz) {
				doc.Questions[0].ScoreUpdates[0].Update = map[string]string{"name": "'x'"}
			},
			wantErr: "not engine-mutable",
		},
		{
			name: "expression type error",
			mutate: func(doc *domain.Quiz) {
				doc.Questions[0].ScoreUpdates[0].Condition = "fruits and true"
			},
			wantErr: "score update",
		},
		{
			name: "expression uses undeclared variable",
			mutate: func(doc *domain.Quiz) {
				doc.Transitions["1"][0].Expression = "pears > 0"
			},
			wantErr: "pears",
		},
		{
			name: "unsafe regex constraint",
			mutate: func(doc *domain.Quiz) {
				doc.Variables["name"].Constraints = &domain.Constraints{Pattern: "(a+)+$"}
			},
			wantErr: "name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := fruitDoc()
			tt.mutate(doc)
			result := validate(t, doc, domain.TierAdmin)
			if result.StructurallyValid() {
				t.Fatalf("StructurallyValid() = true, want errors containing %q", tt.wantErr)
			}
			if !anyContains(result.Errors, tt.wantErr) {
				t.Errorf("Errors = %v, want one containing %q", result.Errors, tt.wantErr)
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	doc := fruitDoc()
	// An always-true transition ahead of another makes the second unreachable.
	doc.Transitions["1"] = []*domain.Transition{
		{NextQuestionID: intPtr(2)},
		{Expression: "answer == true", NextQuestionID: intPtr(2)},
	}
	// A question with no transitions ends the session silently.
	doc.Questions = append(doc.Questions, &domain.Question{
		ID: 3, Data: domain.QuestionData{Type: "text", Text: "dangling"},
	})

	result := validate(t, doc, domain.TierRestricted)
	if !result.StructurallyValid() {
		t.Fatalf("Errors = %v, want none", result.Errors)
	}
	if !anyContains(result.Warnings, "unreachable") {
		t.Errorf("Warnings = %v, want unreachable-transition warning", result.Warnings)
	}
	if !anyContains(result.Warnings, "no transitions") {
		t.Errorf("Warnings = %v, want missing-egress warning", result.Warnings)
	}
}

func TestTransitionListWithoutUnconditionalTailWarns(t *testing.T) {
	doc := fruitDoc()
	// Only a conditional route out of question 1: a mismatched answer
	// dead-ends the session.
	doc.Transitions["1"] = []*domain.Transition{
		{Expression: "answer == true", NextQuestionID: intPtr(2)},
	}

	result := validate(t, doc, domain.TierRestricted)
	if !result.StructurallyValid() {
		t.Fatalf("Errors = %v, want none", result.Errors)
	}
	if !anyContains(result.Warnings, "unconditional") {
		t.Errorf("Warnings = %v, want missing-unconditional-tail warning", result.Warnings)
	}

	// An unconditional tail quiets the warning.
	doc = fruitDoc()
	result = validate(t, doc, domain.TierRestricted)
	if anyContains(result.Warnings, "unconditional") {
		t.Errorf("Warnings = %v, want no tail warning for a trivial-ended list", result.Warnings)
	}
}

func TestDefaultBoundsApplied(t *testing.T) {
	doc := fruitDoc()
	wide := 50_000
	doc.Variables["name"].Constraints = &domain.Constraints{MaxLength: &wide}

	result := validate(t, doc, domain.TierRestricted)
	if !result.StructurallyValid() {
		t.Fatalf("Errors = %v, want none", result.Errors)
	}

	// User-mutable strings are clamped to the configured cap.
	if got := *doc.Variables["name"].Constraints.MaxLength; got != 1_000 {
		t.Errorf("name max length = %d, want 1000", got)
	}
	// Score-tagged numerics receive the score bound.
	c := doc.Variables["fruits"].Constraints
	if c == nil || c.Min == nil || c.Max == nil {
		t.Fatal("fruits: score bounds not applied")
	}
	if *c.Min != -1e9 || *c.Max != 1e9 {
		t.Errorf("fruits bounds = [%v, %v], want [-1e9, 1e9]", *c.Min, *c.Max)
	}
	// Non-score numerics keep creator freedom.
	if c := doc.Variables["apples"].Constraints; c.Min != nil || c.Max != nil {
		t.Error("apples: bounds should not be defaulted")
	}
}

func TestIntegrationChecks(t *testing.T) {
	tests := []struct {
		name        string
		integration *domain.APIIntegration
		wantErr     string
	}{
		{
			name: "timing is mandatory",
			integration: &domain.APIIntegration{
				ID: "a", Method: "GET", URL: "https://api.example.com/v1",
			},
			wantErr: "timing is mandatory",
		},
		{
			name: "unknown timing",
			integration: &domain.APIIntegration{
				ID: "a", Method: "GET", Timing: "whenever", URL: "https://api.example.com/v1",
			},
			wantErr: "unknown timing",
		},
		{
			name: "unknown method",
			integration: &domain.APIIntegration{
				ID: "a", Method: "FETCH", Timing: "after_answer", URL: "https://api.example.com/v1",
			},
			wantErr: "unknown method",
		},
		{
			name: "url and template are exclusive",
			integration: &domain.APIIntegration{
				ID: "a", Method: "GET", Timing: "after_answer",
				URL: "https://api.example.com/v1", URLTemplate: "https://api.example.com/{name}",
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "missing url",
			integration: &domain.APIIntegration{
				ID: "a", Method: "GET", Timing: "after_answer",
			},
			wantErr: "missing url",
		},
		{
			name: "extract response to non api-mutable variable",
			integration: &domain.APIIntegration{
				ID: "a", Method: "GET", Timing: "after_answer",
				URL:             "https://api.example.com/v1",
				ExtractResponse: map[string]string{"$.count": "fruits"},
			},
			wantErr: "not api-mutable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := fruitDoc()
			doc.APIIntegrations = []*domain.APIIntegration{tt.integration}
			result := validate(t, doc, domain.TierAdmin)
			if !anyContains(result.Errors, tt.wantErr) {
				t.Errorf("Errors = %v, want one containing %q", result.Errors, tt.wantErr)
			}
		})
	}
}

// Permission problems must not contaminate the structural error list.
func TestPermissionErrorsStayDisjoint(t *testing.T) {
	doc := fruitDoc()
	doc.APIIntegrations = []*domain.APIIntegration{{
		ID: "poster", Method: "POST", Timing: "after_answer",
		URL: "https://api.example.com/v1/submit",
	}}

	result := validate(t, doc, domain.TierRestricted)
	if !result.StructurallyValid() {
		t.Fatalf("Errors = %v, want none", result.Errors)
	}
	if result.Valid() {
		t.Fatal("Valid() = true, want permission rejection at RESTRICTED")
	}
	if len(result.PermissionErrors) == 0 {
		t.Error("PermissionErrors empty, want POST rejection")
	}
}

func TestParseYAMLAndJSON(t *testing.T) {
	yamlDoc := `
metadata:
  title: Parsed Quiz
variables:
  points:
    type: integer
    default: 0
    tags: [score]
    mutable_by: [engine]
questions:
  - id: 1
    data:
      type: boolean
      text: Ready?
transitions:
  "1":
    - next_question_id: null
`
	doc, err := Parse([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("Parse(yaml) error = %v", err)
	}
	if doc.Metadata.Title != "Parsed Quiz" || len(doc.Questions) != 1 {
		t.Errorf("yaml parse: got title %q, %d questions", doc.Metadata.Title, len(doc.Questions))
	}
	if result := validate(t, doc, domain.TierRestricted); !result.Valid() {
		t.Errorf("parsed yaml doc invalid: %v %v", result.Errors, result.PermissionErrors)
	}

	jsonDoc := `{
  "metadata": {"title": "Parsed Quiz"},
  "variables": {
    "points": {"type": "integer", "default": 0, "tags": ["score"], "mutable_by": ["engine"]}
  },
  "questions": [{"id": 1, "data": {"type": "boolean", "text": "Ready?"}}],
  "transitions": {"1": [{"next_question_id": null}]}
}`
	doc, err = Parse([]byte(jsonDoc))
	if err != nil {
		t.Fatalf("Parse(json) error = %v", err)
	}
	if doc.Metadata.Title != "Parsed Quiz" {
		t.Errorf("json parse: title = %q", doc.Metadata.Title)
	}

	if _, err := Parse([]byte("{not valid")); err == nil {
		t.Error("Parse(garbage) error = nil, want parse failure")
	}
}

func anyContains(list []string, substr string) bool {
	for _, item := range list {
		if strings.Contains(item, substr) {
			return true
		}
	}
	return false
}
