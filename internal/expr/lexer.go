package expr

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/felixgeelhaar/quizguard/internal/domain"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenString
	tokenIdent
	tokenOperator // + - * / % **
	tokenCompare  // == != < <= > >=
	tokenKeyword  // and or not in true false
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
	tokenComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "true": true, "false": true,
}

// maxExpressionLength bounds expression size before any parsing happens
const maxExpressionLength = 1024

// lex splits an expression into tokens. Anything outside the closed token
// set fails with ErrUnsupportedExpression before it can reach the parser.
func lex(input string) ([]token, error) {
	if len(input) > maxExpressionLength {
		return nil, fmt.Errorf("%w: expression exceeds %d characters",
			domain.ErrUnsupportedExpression, maxExpressionLength)
	}

	var tokens []token
	runes := []rune(input)
	i := 0

	for i < len(runes) {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case unicode.IsDigit(r) || (r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			seenDot := false
			for i < len(runes) && (unicode.IsDigit(runes[i]) || (runes[i] == '.' && !seenDot)) {
				if runes[i] == '.' {
					seenDot = true
				}
				i++
			}
			tokens = append(tokens, token{tokenNumber, string(runes[start:i]), start})

		case r == '\'' || r == '"':
			quote := r
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < len(runes) {
				if runes[i] == quote {
					closed = true
					i++
					break
				}
				sb.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("%w: unterminated string literal at position %d",
					domain.ErrUnsupportedExpression, start)
			}
			tokens = append(tokens, token{tokenString, sb.String(), start})

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			word := string(runes[start:i])
			if keywords[strings.ToLower(word)] {
				tokens = append(tokens, token{tokenKeyword, strings.ToLower(word), start})
			} else {
				tokens = append(tokens, token{tokenIdent, word, start})
			}

		case r == '(':
			tokens = append(tokens, token{tokenLParen, "(", i})
			i++
		case r == ')':
			tokens = append(tokens, token{tokenRParen, ")", i})
			i++
		case r == '[':
			tokens = append(tokens, token{tokenLBracket, "[", i})
			i++
		case r == ']':
			tokens = append(tokens, token{tokenRBracket, "]", i})
			i++
		case r == ',':
			tokens = append(tokens, token{tokenComma, ",", i})
			i++

		case r == '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				tokens = append(tokens, token{tokenOperator, "**", i})
				i += 2
			} else {
				tokens = append(tokens, token{tokenOperator, "*", i})
				i++
			}
		case r == '+' || r == '-' || r == '/' || r == '%':
			tokens = append(tokens, token{tokenOperator, string(r), i})
			i++

		case r == '=':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{tokenCompare, "==", i})
				i += 2
			} else {
				// Assignment is not part of the grammar.
				return nil, fmt.Errorf("%w: assignment is not allowed", domain.ErrUnsupportedExpression)
			}
		case r == '!':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{tokenCompare, "!=", i})
				i += 2
			} else {
				return nil, fmt.Errorf("%w: unexpected character %q at position %d",
					domain.ErrUnsupportedExpression, string(r), i)
			}
		case r == '<':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{tokenCompare, "<=", i})
				i += 2
			} else {
				tokens = append(tokens, token{tokenCompare, "<", i})
				i++
			}
		case r == '>':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{tokenCompare, ">=", i})
				i += 2
			} else {
				tokens = append(tokens, token{tokenCompare, ">", i})
				i++
			}

		default:
			return nil, fmt.Errorf("%w: unexpected character %q at position %d",
				domain.ErrUnsupportedExpression, string(r), i)
		}
	}

	tokens = append(tokens, token{tokenEOF, "", len(runes)})
	return tokens, nil
}
