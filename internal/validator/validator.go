// Package validator performs the full upload-time check of a quiz document:
// structural integrity, variable normalization with default safety bounds,
// expression type-checking, transition resolution, and tier permission
// enforcement. Structural errors and permission errors are reported in
// disjoint lists so a document can be re-evaluated against a different tier
// without re-parsing.
package validator

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/quizguard/internal/config"
	"github.com/felixgeelhaar/quizguard/internal/domain"
	"github.com/felixgeelhaar/quizguard/internal/expr"
	"github.com/felixgeelhaar/quizguard/internal/permission"
	"github.com/felixgeelhaar/quizguard/internal/sanitize"
	"github.com/felixgeelhaar/quizguard/internal/variable"
)

var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// Validator checks quiz documents against one process configuration.
// Safe for concurrent use.
type Validator struct {
	cfg      config.Config
	enforcer *permission.Enforcer
}

// New builds a validator from the process configuration
func New(cfg config.Config) *Validator {
	return &Validator{cfg: cfg, enforcer: permission.NewEnforcer(cfg)}
}

// ForCreator returns a validator whose allowlists include the creator's
// per-creator grants
func (v *Validator) ForCreator(creatorID string) *Validator {
	return &Validator{cfg: v.cfg, enforcer: v.enforcer.ForCreator(creatorID)}
}

// Parse decodes a quiz document from YAML or JSON bytes. JSON parses as a
// YAML subset, so one decoder covers both upload formats.
func Parse(data []byte) (*domain.Quiz, error) {
	var doc domain.Quiz
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return &doc, nil
}

// Validate runs every check on the document at the given tier. The document
// is normalized in place: variable definitions gain their typed fields and
// default safety bounds.
func (v *Validator) Validate(doc *domain.Quiz, tier domain.Tier) *domain.ValidationResult {
	result := &domain.ValidationResult{}

	v.checkStructure(doc, result)
	v.checkVariables(doc, result)

	bindings := defaultBindings(doc, result)
	v.checkQuestions(doc, bindings, result)
	v.checkTransitions(doc, bindings, result)
	v.checkIntegrations(doc, result)

	// Permission checks need normalized variables, so they run last.
	v.enforcer.Check(doc, tier, result)
	return result
}

// ---- Structure ----

func (v *Validator) checkStructure(doc *domain.Quiz, result *domain.ValidationResult) {
	if strings.TrimSpace(doc.Metadata.Title) == "" {
		result.AddWarning("metadata: title is empty")
	}
	if len(doc.Questions) == 0 {
		result.AddError("document declares no questions")
	}

	seen := map[int]bool{}
	for _, question := range doc.Questions {
		if seen[question.ID] {
			result.AddError("question id %d is declared more than once", question.ID)
		}
		seen[question.ID] = true
	}
}

// ---- Variables ----

func (v *Validator) checkVariables(doc *domain.Quiz, result *domain.ValidationResult) {
	for name, def := range doc.Variables {
		if err := def.Normalize(name); err != nil {
			result.AddError("%v", err)
			continue
		}
		if def.Constraints != nil && def.Constraints.Pattern != "" {
			if _, err := sanitize.ValidateRegexPattern(def.Constraints.Pattern); err != nil {
				result.AddError("variable %q: %v", name, err)
			}
		}
		v.applyDefaultBounds(def)
	}
}

// applyDefaultBounds fills in the safety limits a creator left unspecified.
// Creator-provided constraints are tightened, never loosened: a creator bound
// wider than the default is clamped to the default.
func (v *Validator) applyDefaultBounds(def *domain.VariableDefinition) {
	if def.Constraints == nil {
		def.Constraints = &domain.Constraints{}
	}
	c := def.Constraints
	apiMutable := def.MutableBy[domain.ActorAPI]

	switch def.Type {
	case domain.TypeString:
		limit := v.cfg.Validation.UserStringMaxLength
		if apiMutable {
			limit = v.cfg.Validation.APIStringMaxLength
		}
		if c.MaxLength == nil || *c.MaxLength > limit {
			c.MaxLength = &limit
		}
	case domain.TypeInteger, domain.TypeFloat:
		if !def.Tags.Has(domain.TagScore) {
			return
		}
		lower, upper := -v.cfg.Validation.ScoreBound, v.cfg.Validation.ScoreBound
		if c.Min == nil || *c.Min < lower {
			c.Min = &lower
		}
		if c.Max == nil || *c.Max > upper {
			c.Max = &upper
		}
	case domain.TypeArray:
		limit := v.cfg.Validation.UserArrayMaxItems
		if apiMutable {
			limit = v.cfg.Validation.APIArrayMaxItems
		}
		if c.MaxItems == nil || *c.MaxItems > limit {
			c.MaxItems = &limit
		}
	}
}

// defaultBindings seeds a variable store so expressions type-check against
// realistically typed values. A nil return means the document's variables are
// too broken to type-check against; expression checks are skipped then.
func defaultBindings(doc *domain.Quiz, result *domain.ValidationResult) map[string]any {
	for _, def := range doc.Variables {
		if def.Type == "" {
			return nil // normalization already failed and was reported
		}
	}
	store, err := variable.New(doc.Variables)
	if err != nil {
		result.AddError("%v", err)
		return nil
	}
	return store.Values()
}

// answerBindings extends bindings with an answer value typed for the question
func answerBindings(bindings map[string]any, question *domain.Question) map[string]any {
	out := make(map[string]any, len(bindings)+1)
	for name, value := range bindings {
		out[name] = value
	}
	switch qt, _ := domain.ParseQuestionType(question.Data.Type); qt {
	case domain.QuestionNumber:
		out["answer"] = float64(0)
	case domain.QuestionBoolean:
		out["answer"] = false
	default:
		out["answer"] = ""
	}
	return out
}

// ---- Questions ----

func (v *Validator) checkQuestions(doc *domain.Quiz, bindings map[string]any, result *domain.ValidationResult) {
	for _, question := range doc.Questions {
		qt, ok := domain.ParseQuestionType(question.Data.Type)
		if !ok {
			result.AddError("question %d: unknown type %q", question.ID, question.Data.Type)
			continue
		}
		if qt == domain.QuestionMultipleChoice && len(question.Data.Options) < 2 {
			result.AddError("question %d: multiple_choice requires at least two options", question.ID)
		}
		if qt == domain.QuestionFinalMessage && len(question.ScoreUpdates) > 0 {
			result.AddWarning("question %d: score updates on a final_message never run", question.ID)
		}
		v.checkScoreUpdates(doc, question, bindings, result)
	}
}

func (v *Validator) checkScoreUpdates(doc *domain.Quiz, question *domain.Question,
	bindings map[string]any, result *domain.ValidationResult) {

	var augmented map[string]any
	if bindings != nil {
		augmented = answerBindings(bindings, question)
	}

	for i, update := range question.ScoreUpdates {
		if augmented != nil && update.Condition != "" {
			if err := expr.TypeCheck(update.Condition, augmented); err != nil {
				result.AddError("question %d score update %d: condition: %v", question.ID, i, err)
			}
		}
		for target, expression := range update.Update {
			def, declared := doc.Variables[target]
			if !declared {
				result.AddError("question %d score update %d: unknown variable %q", question.ID, i, target)
				continue
			}
			if !def.CanMutate(domain.ActorEngine) {
				result.AddError("question %d score update %d: variable %q is not engine-mutable",
					question.ID, i, target)
			}
			if augmented != nil {
				if err := expr.TypeCheck(expression, augmented); err != nil {
					result.AddError("question %d score update %d: %q: %v", question.ID, i, target, err)
				}
			}
		}
	}
}

// ---- Transitions ----

func (v *Validator) checkTransitions(doc *domain.Quiz, bindings map[string]any, result *domain.ValidationResult) {
	hasEgress := map[int]bool{}

	for key, transitions := range doc.Transitions {
		questionID, err := strconv.Atoi(key)
		if err != nil {
			result.AddError("transitions: key %q is not a question id", key)
			continue
		}
		question := doc.QuestionByID(questionID)
		if question == nil {
			result.AddError("transitions: question %d does not exist", questionID)
			continue
		}
		hasEgress[questionID] = len(transitions) > 0

		var augmented map[string]any
		if bindings != nil {
			augmented = answerBindings(bindings, question)
		}

		for i, transition := range transitions {
			if augmented != nil {
				if err := expr.TypeCheck(transition.ConditionExpression(), augmented); err != nil {
					result.AddError("question %d transition %d: %v", questionID, i, err)
				}
			}
			if transition.NextQuestionID != nil && doc.QuestionByID(*transition.NextQuestionID) == nil {
				result.AddError("question %d transition %d: target question %d does not exist",
					questionID, i, *transition.NextQuestionID)
			}
			// Everything after an always-true condition is unreachable.
			if transition.IsTrivial() && i < len(transitions)-1 {
				result.AddWarning("question %d: transitions after index %d are unreachable", questionID, i)
			}
		}

		// Without an unconditional tail, a session can dead-end when no
		// condition matches.
		if n := len(transitions); n > 0 && !transitions[n-1].IsTrivial() {
			result.AddWarning("question %d: transition list does not end in an unconditional transition",
				questionID)
		}
	}

	for _, question := range doc.Questions {
		qt, _ := domain.ParseQuestionType(question.Data.Type)
		if qt == domain.QuestionFinalMessage {
			continue
		}
		if !hasEgress[question.ID] {
			result.AddWarning("question %d has no transitions; the session will end there", question.ID)
		}
	}
}

// ---- Integrations ----

func (v *Validator) checkIntegrations(doc *domain.Quiz, result *domain.ValidationResult) {
	for _, integration := range doc.APIIntegrations {
		name := integration.ID
		if name == "" {
			name = integration.TargetURL()
		}

		if strings.TrimSpace(integration.Timing) == "" {
			result.AddError("integration %q: timing is mandatory", name)
		} else if _, ok := domain.ParseIntegrationTiming(integration.Timing); !ok {
			result.AddError("integration %q: unknown timing %q", name, integration.Timing)
		}

		if integration.Method != "" && !knownMethods[strings.ToUpper(integration.Method)] {
			result.AddError("integration %q: unknown method %q", name, integration.Method)
		}

		if integration.URL != "" && integration.URLTemplate != "" {
			result.AddError("integration %q: url and url_template are mutually exclusive", name)
		}
		if integration.TargetURL() == "" {
			result.AddError("integration %q: missing url", name)
		}

		if integration.QuestionID != nil && doc.QuestionByID(*integration.QuestionID) == nil {
			result.AddError("integration %q: question %d does not exist", name, *integration.QuestionID)
		}

		for path, target := range integration.ExtractResponse {
			def, declared := doc.Variables[target]
			if !declared {
				result.AddError("integration %q: extract_response %q targets unknown variable %q",
					name, path, target)
				continue
			}
			if !def.CanMutate(domain.ActorAPI) {
				result.AddError("integration %q: extract_response %q targets variable %q which is not api-mutable",
					name, path, target)
			}
		}
	}
}
