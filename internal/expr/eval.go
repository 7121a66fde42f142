// Package expr provides the sandboxed expression evaluator used for quiz
// scoring and transition conditions. The grammar is closed: numeric, boolean
// and string literals, list literals, binary arithmetic, comparisons,
// boolean connectives, membership tests, and identifier lookup restricted to
// the supplied bindings. Everything else fails with
// domain.ErrUnsupportedExpression before it can execute.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/felixgeelhaar/quizguard/internal/domain"
)

// ErrDivisionByZero is returned when an expression divides by zero at
// evaluation time. TypeCheck tolerates it since placeholder bindings may
// legitimately hold zero.
var ErrDivisionByZero = errors.New("division by zero")

// Evaluate parses expression and evaluates it against bindings. Identifiers
// resolve only through bindings; an unknown identifier fails with
// domain.ErrUnauthorizedVariable. The evaluation is deterministic and free
// of side effects.
func Evaluate(expression string, bindings map[string]any) (any, error) {
	root, err := parse(expression)
	if err != nil {
		return nil, err
	}
	return eval(root, bindings)
}

// EvaluateBool evaluates expression and requires a boolean result, as quiz
// conditions must produce
func EvaluateBool(expression string, bindings map[string]any) (bool, error) {
	result, err := Evaluate(expression, bindings)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: condition %q produced %T, want boolean",
			domain.ErrUnsupportedExpression, expression, result)
	}
	return b, nil
}

// TypeCheck evaluates expression against representative bindings and reports
// grammar or type errors. Division by zero is tolerated: placeholder values
// are often zero and the check is about shape, not arithmetic.
func TypeCheck(expression string, bindings map[string]any) error {
	_, err := Evaluate(expression, bindings)
	if errors.Is(err, ErrDivisionByZero) {
		return nil
	}
	return err
}

func eval(n node, bindings map[string]any) (any, error) {
	switch n := n.(type) {
	case literalNode:
		return n.value, nil

	case identNode:
		value, ok := bindings[n.name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnauthorizedVariable, n.name)
		}
		return normalize(value), nil

	case listNode:
		out := make([]any, 0, len(n.elements))
		for _, el := range n.elements {
			v, err := eval(el, bindings)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case unaryNode:
		return evalUnary(n, bindings)

	case binaryNode:
		return evalBinary(n, bindings)

	default:
		return nil, fmt.Errorf("%w: unknown node type %T", domain.ErrUnsupportedExpression, n)
	}
}

func evalUnary(n unaryNode, bindings map[string]any) (any, error) {
	operand, err := eval(n.operand, bindings)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "-":
		switch v := operand.(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		}
		return nil, fmt.Errorf("%w: cannot negate %T", domain.ErrUnsupportedExpression, operand)
	case "not":
		b, ok := operand.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: 'not' requires a boolean, got %T",
				domain.ErrUnsupportedExpression, operand)
		}
		return !b, nil
	}
	return nil, fmt.Errorf("%w: unknown unary operator %q", domain.ErrUnsupportedExpression, n.op)
}

func evalBinary(n binaryNode, bindings map[string]any) (any, error) {
	// Logical operators short-circuit.
	if n.op == "and" || n.op == "or" {
		left, err := evalBool(n.left, bindings)
		if err != nil {
			return nil, err
		}
		if n.op == "and" && !left {
			return false, nil
		}
		if n.op == "or" && left {
			return true, nil
		}
		return evalBool(n.right, bindings)
	}

	left, err := eval(n.left, bindings)
	if err != nil {
		return nil, err
	}
	right, err := eval(n.right, bindings)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "+", "-", "*", "/", "%", "**":
		return evalArithmetic(n.op, left, right)
	case "==":
		return valuesEqual(left, right), nil
	case "!=":
		return !valuesEqual(left, right), nil
	case "<", "<=", ">", ">=":
		return evalOrdering(n.op, left, right)
	case "in":
		return evalMembership(left, right)
	}
	return nil, fmt.Errorf("%w: unknown operator %q", domain.ErrUnsupportedExpression, n.op)
}

func evalBool(n node, bindings map[string]any) (bool, error) {
	v, err := eval(n, bindings)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: logical operand must be boolean, got %T",
			domain.ErrUnsupportedExpression, v)
	}
	return b, nil
}

func evalArithmetic(op string, left, right any) (any, error) {
	// String concatenation is the one non-numeric arithmetic form.
	if op == "+" {
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
		}
	}

	li, lok := left.(int64)
	ri, rok := right.(int64)
	if lok && rok && op != "/" && op != "**" {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "%":
			if ri == 0 {
				return nil, ErrDivisionByZero
			}
			return li % ri, nil
		}
	}

	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: operator %q requires numeric operands, got %T and %T",
			domain.ErrUnsupportedExpression, op, left, right)
	}

	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, ErrDivisionByZero
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, ErrDivisionByZero
		}
		return math.Mod(lf, rf), nil
	case "**":
		return math.Pow(lf, rf), nil
	}
	return nil, fmt.Errorf("%w: unknown arithmetic operator %q", domain.ErrUnsupportedExpression, op)
}

func evalOrdering(op string, left, right any) (any, error) {
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			switch op {
			case "<":
				return ls < rs, nil
			case "<=":
				return ls <= rs, nil
			case ">":
				return ls > rs, nil
			case ">=":
				return ls >= rs, nil
			}
		}
	}

	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: operator %q cannot compare %T and %T",
			domain.ErrUnsupportedExpression, op, left, right)
	}
	switch op {
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return nil, fmt.Errorf("%w: unknown comparison %q", domain.ErrUnsupportedExpression, op)
}

func evalMembership(needle, haystack any) (any, error) {
	switch h := haystack.(type) {
	case []any:
		for _, el := range h {
			if valuesEqual(needle, el) {
				return true, nil
			}
		}
		return false, nil
	case string:
		s, ok := needle.(string)
		if !ok {
			return nil, fmt.Errorf("%w: 'in' on a string requires a string needle, got %T",
				domain.ErrUnsupportedExpression, needle)
		}
		return strings.Contains(h, s), nil
	default:
		return nil, fmt.Errorf("%w: 'in' requires a list or string right-hand side, got %T",
			domain.ErrUnsupportedExpression, haystack)
	}
}

// valuesEqual compares two values with numeric cross-type equality
// (1 == 1.0 holds)
func valuesEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// toFloat widens any supported numeric representation to float64
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// normalize widens binding values into the evaluator's canonical
// representations: int64, float64, bool, string, []any
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64, float64, bool, string, []any:
		return n
	case float32:
		return float64(n)
	case []string:
		out := make([]any, len(n))
		for i, s := range n {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(n))
		for i, x := range n {
			out[i] = int64(x)
		}
		return out
	default:
		return v
	}
}
