package expr

import (
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/quizguard/internal/domain"
)

// node is the closed set of expression tree variants. Evaluation proceeds by
// structural match over these types and nothing else; there is no node for
// calls, attribute access, indexing, loops, or assignment.
type node interface {
	exprNode()
}

type literalNode struct {
	value any // int64, float64, bool, or string
}

type identNode struct {
	name string
}

type listNode struct {
	elements []node
}

type unaryNode struct {
	op      string // "-" or "not"
	operand node
}

type binaryNode struct {
	op          string // arithmetic, comparison, logical, or membership
	left, right node
}

func (literalNode) exprNode() {}
func (identNode) exprNode()   {}
func (listNode) exprNode()    {}
func (unaryNode) exprNode()   {}
func (binaryNode) exprNode()  {}

// parser is a recursive-descent parser over the lexed token stream
type parser struct {
	tokens []token
	pos    int
}

// parse builds the expression tree for input
func parse(input string) (node, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenEOF {
		return nil, fmt.Errorf("%w: unexpected %q after expression",
			domain.ErrUnsupportedExpression, p.peek().text)
	}
	return root, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptKeyword(word string) bool {
	if p.peek().kind == tokenKeyword && p.peek().text == word {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptOperator(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokenOperator {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.next()
			return op, true
		}
	}
	return "", false
}

// parseOr handles "a or b or c"
func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "or", left: left, right: right}
	}
	return left, nil
}

// parseAnd handles "a and b and c"
func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "and", left: left, right: right}
	}
	return left, nil
}

// parseNot handles "not a"
func (p *parser) parseNot() (node, error) {
	if p.acceptKeyword("not") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: "not", operand: operand}, nil
	}
	return p.parseComparison()
}

// parseComparison handles a single comparison or membership test.
// Comparisons do not chain: "a < b < c" is rejected.
func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	switch {
	case t.kind == tokenCompare:
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if p.peek().kind == tokenCompare {
			return nil, fmt.Errorf("%w: chained comparisons are not allowed",
				domain.ErrUnsupportedExpression)
		}
		return binaryNode{op: t.text, left: left, right: right}, nil

	case t.kind == tokenKeyword && t.text == "in":
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: "in", left: left, right: right}, nil
	}

	return left, nil
}

// parseAdditive handles + and -
func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOperator("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

// parseMultiplicative handles *, / and %
func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOperator("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

// parsePower handles ** (right-associative)
func (p *parser) parsePower() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if _, ok := p.acceptOperator("**"); ok {
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: "**", left: left, right: right}, nil
	}
	return left, nil
}

// parseUnary handles numeric negation
func (p *parser) parseUnary() (node, error) {
	if _, ok := p.acceptOperator("-"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: "-", operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()

	switch t.kind {
	case tokenNumber:
		if i, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return literalNode{value: i}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed number %q", domain.ErrUnsupportedExpression, t.text)
		}
		return literalNode{value: f}, nil

	case tokenString:
		return literalNode{value: t.text}, nil

	case tokenKeyword:
		switch t.text {
		case "true":
			return literalNode{value: true}, nil
		case "false":
			return literalNode{value: false}, nil
		}
		return nil, fmt.Errorf("%w: unexpected keyword %q", domain.ErrUnsupportedExpression, t.text)

	case tokenIdent:
		// An identifier followed by "(" would be a function call, which the
		// grammar does not contain.
		if p.peek().kind == tokenLParen {
			return nil, fmt.Errorf("%w: function calls are not allowed", domain.ErrUnsupportedExpression)
		}
		return identNode{name: t.text}, nil

	case tokenLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokenRParen {
			return nil, fmt.Errorf("%w: missing closing parenthesis", domain.ErrUnsupportedExpression)
		}
		return inner, nil

	case tokenLBracket:
		var elements []node
		if p.peek().kind != tokenRBracket {
			for {
				el, err := p.parseOr()
				if err != nil {
					return nil, err
				}
				elements = append(elements, el)
				if p.peek().kind == tokenComma {
					p.next()
					continue
				}
				break
			}
		}
		if p.next().kind != tokenRBracket {
			return nil, fmt.Errorf("%w: missing closing bracket", domain.ErrUnsupportedExpression)
		}
		return listNode{elements: elements}, nil

	default:
		return nil, fmt.Errorf("%w: unexpected %q", domain.ErrUnsupportedExpression, t.text)
	}
}
