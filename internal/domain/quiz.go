package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// QuestionType classifies the answer shape a question expects
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionText           QuestionType = "text"
	QuestionNumber         QuestionType = "number"
	QuestionBoolean        QuestionType = "boolean"
	QuestionFinalMessage   QuestionType = "final_message"
)

// KnownQuestionTypes lists every legal question type
var KnownQuestionTypes = []QuestionType{
	QuestionMultipleChoice,
	QuestionText,
	QuestionNumber,
	QuestionBoolean,
	QuestionFinalMessage,
}

// ParseQuestionType normalizes a raw question type string
func ParseQuestionType(s string) (QuestionType, bool) {
	qt := QuestionType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnownQuestionTypes {
		if qt == known {
			return qt, true
		}
	}
	return "", false
}

// Metadata carries quiz-level descriptive fields
type Metadata struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Author      string `json:"author,omitempty" yaml:"author,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Attachment is a file or media reference attached to a question
type Attachment struct {
	URL      string `json:"url" yaml:"url"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"` // image, audio, video, document
}

// QuestionData holds the presentable content of a question
type QuestionData struct {
	Type        string         `json:"type" yaml:"type"`
	Text        string         `json:"text" yaml:"text"`
	Options     []string       `json:"options,omitempty" yaml:"options,omitempty"`
	ImageURL    string         `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	Constraints map[string]any `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// ScoreUpdate applies a set of variable updates when its condition holds.
// Update maps variable name to an expression evaluated against the current
// scores; Condition is evaluated against scores plus the submitted answer.
type ScoreUpdate struct {
	Condition string            `json:"condition" yaml:"condition"`
	Update    map[string]string `json:"update" yaml:"update"`
}

// Question is one node of the quiz state machine
type Question struct {
	ID           int            `json:"id" yaml:"id"`
	Data         QuestionData   `json:"data" yaml:"data"`
	ScoreUpdates []*ScoreUpdate `json:"score_updates,omitempty" yaml:"score_updates,omitempty"`
}

// Transition selects the next question. The first transition in a question's
// list whose expression evaluates true wins; a nil NextQuestionID completes
// the quiz. An empty expression means the literal "true".
type Transition struct {
	Expression     string `json:"expression,omitempty" yaml:"expression,omitempty"`
	NextQuestionID *int   `json:"next_question_id" yaml:"next_question_id"`
}

// ConditionExpression returns the transition expression, defaulting to "true"
func (t *Transition) ConditionExpression() string {
	if strings.TrimSpace(t.Expression) == "" {
		return "true"
	}
	return t.Expression
}

// IsTrivial reports whether the transition matches unconditionally
func (t *Transition) IsTrivial() bool {
	return strings.TrimSpace(t.ConditionExpression()) == "true"
}

// IntegrationTiming selects when an API integration fires
type IntegrationTiming string

const (
	TimingOnQuizStart    IntegrationTiming = "on_quiz_start"
	TimingBeforeQuestion IntegrationTiming = "before_question"
	TimingAfterAnswer    IntegrationTiming = "after_answer"
)

// ParseIntegrationTiming normalizes a raw timing string
func ParseIntegrationTiming(s string) (IntegrationTiming, bool) {
	switch IntegrationTiming(strings.ToLower(strings.TrimSpace(s))) {
	case TimingOnQuizStart:
		return TimingOnQuizStart, true
	case TimingBeforeQuestion:
		return TimingBeforeQuestion, true
	case TimingAfterAnswer:
		return TimingAfterAnswer, true
	default:
		return "", false
	}
}

// Authentication declares how an API integration authenticates. Value is a
// reference into the caller's secret store, never an inline credential.
type Authentication struct {
	Type     string `json:"type" yaml:"type"` // bearer, header, basic
	Header   string `json:"header,omitempty" yaml:"header,omitempty"`
	ValueRef string `json:"value_ref" yaml:"value_ref"`
}

// APIIntegration declares one outbound HTTP call a quiz may trigger.
// Exactly one of URL or URLTemplate is expected; QueryParams and BodyTemplate
// may contain {variable} placeholders subject to tier rules.
type APIIntegration struct {
	ID              string            `json:"id" yaml:"id"`
	Method          string            `json:"method" yaml:"method"`
	Timing          string            `json:"timing" yaml:"timing"`
	QuestionID      *int              `json:"question_id,omitempty" yaml:"question_id,omitempty"`
	URL             string            `json:"url,omitempty" yaml:"url,omitempty"`
	URLTemplate     string            `json:"url_template,omitempty" yaml:"url_template,omitempty"`
	QueryParams     map[string]string `json:"query_params,omitempty" yaml:"query_params,omitempty"`
	BodyTemplate    string            `json:"body_template,omitempty" yaml:"body_template,omitempty"`
	Authentication  *Authentication   `json:"authentication,omitempty" yaml:"authentication,omitempty"`
	ExtractResponse map[string]string `json:"extract_response,omitempty" yaml:"extract_response,omitempty"`
}

// TargetURL returns whichever of URL or URLTemplate is populated
func (a *APIIntegration) TargetURL() string {
	if a.URL != "" {
		return a.URL
	}
	return a.URLTemplate
}

// Quiz is a complete creator-authored quiz document. Immutable once
// validated; read-only to the engine. Transition keys are question IDs in
// their JSON-object string form.
type Quiz struct {
	Metadata        Metadata                       `json:"metadata" yaml:"metadata"`
	Variables       map[string]*VariableDefinition `json:"variables" yaml:"variables"`
	Questions       []*Question                    `json:"questions" yaml:"questions"`
	Transitions     map[string][]*Transition       `json:"transitions" yaml:"transitions"`
	APIIntegrations []*APIIntegration              `json:"api_integrations,omitempty" yaml:"api_integrations,omitempty"`
}

// QuestionByID returns the question with the given ID, or nil
func (q *Quiz) QuestionByID(id int) *Question {
	for _, question := range q.Questions {
		if question.ID == id {
			return question
		}
	}
	return nil
}

// FirstQuestion returns the first declared question, or nil for an empty quiz
func (q *Quiz) FirstQuestion() *Question {
	if len(q.Questions) == 0 {
		return nil
	}
	return q.Questions[0]
}

// TransitionsFor returns the ordered transition list for a question ID
func (q *Quiz) TransitionsFor(id int) []*Transition {
	return q.Transitions[strconv.Itoa(id)]
}

// ValidationResult separates structural errors from tier-specific permission
// errors so structural correctness and tier eligibility stay independently
// testable. Warnings are never fatal.
type ValidationResult struct {
	Errors             []string `json:"errors"`
	Warnings           []string `json:"warnings"`
	PermissionErrors   []string `json:"permission_errors"`
	MissingPermissions []string `json:"missing_permissions,omitempty"`
}

// AddError records a structural error
func (r *ValidationResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AddWarning records a non-fatal warning
func (r *ValidationResult) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// AddPermissionError records a tier capability violation
func (r *ValidationResult) AddPermissionError(format string, args ...any) {
	r.PermissionErrors = append(r.PermissionErrors, fmt.Sprintf(format, args...))
}

// AddMissingPermission records the capability a higher tier would grant
func (r *ValidationResult) AddMissingPermission(capability string) {
	for _, existing := range r.MissingPermissions {
		if existing == capability {
			return
		}
	}
	r.MissingPermissions = append(r.MissingPermissions, capability)
}

// StructurallyValid reports whether the document passed structural checks
func (r *ValidationResult) StructurallyValid() bool { return len(r.Errors) == 0 }

// Valid reports whether the document is usable at the evaluated tier
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0 && len(r.PermissionErrors) == 0
}

// Requirements is the manifest of external capabilities a quiz needs,
// extractable without running full validation
type Requirements struct {
	APIHosts         []string `json:"api_hosts,omitempty"`
	URLPatterns      []string `json:"url_patterns,omitempty"`
	UploadCategories []string `json:"upload_categories,omitempty"`
	AttachmentHosts  []string `json:"attachment_hosts,omitempty"`
	APICallCount     int      `json:"api_call_count"`
}
