package constraint

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	kwMatches    = "matches"
	kwCompatible = "compatible"
	kwWith       = "with"
	kwWithin     = "within"
)

func isKeyword(s string) bool {
	switch s {
	case kwMatches, kwCompatible, kwWith, kwWithin:
		return true
	}
	return false
}

// Parse compiles one constraint expression. Malformed input yields a
// domain.SyntaxError carrying the byte offset of the offending token.
func Parse(src string) (Expression, error) {
	if strings.TrimSpace(src) == "" {
		return Expression{}, syntaxError(src, 0, "empty expression")
	}
	toks, err := lex(src)
	if err != nil {
		return Expression{}, err
	}
	p := &parser{src: src, toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return Expression{}, err
	}
	return Expression{Source: src, Root: root}, nil
}

// MustParse is like Parse but panics on error. It is meant for expressions
// fixed at compile time.
func MustParse(src string) Expression {
	expr, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return expr
}

type parser struct {
	src  string
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return syntaxError(p.src, t.pos, fmt.Sprintf(format, args...))
}

func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	t := p.next()
	var node Node
	switch {
	case t.kind == tokOp:
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		node = Comparison{Op: Op(t.text), Left: left, Right: right}
	case t.kind == tokIdent && t.text == kwMatches:
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		node = Predicate{Name: PredicateMatches, Args: []Operand{left, right}}
	case t.kind == tokIdent && t.text == kwCompatible:
		if w := p.next(); w.kind != tokIdent || w.text != kwWith {
			return nil, p.errorf(w, `expected "with" after "compatible", found %s`, w.describe())
		}
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		node = Predicate{Name: PredicateCompatibleWith, Args: []Operand{left, right}}
	case t.kind == tokIdent && t.text == kwWithin:
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		node = Membership{Subject: left, Set: right}
	default:
		return nil, p.errorf(t, "expected operator or predicate, found %s", t.describe())
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s after complete expression", t.describe())
	}
	return node, nil
}

func (p *parser) parseOperand() (Operand, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Operand{}, p.errorf(t, "invalid number %q", t.text)
		}
		return Operand{Kind: Literal, Number: f, Pos: t.pos}, nil
	case tokString:
		return Operand{Kind: Literal, Text: t.text, IsString: true, Pos: t.pos}, nil
	case tokIdent:
		if isKeyword(t.text) {
			return Operand{}, p.errorf(t, "expected operand, found keyword %q", t.text)
		}
		if p.peek().kind != tokDot {
			return Operand{Kind: Variable, Name: t.text, Pos: t.pos}, nil
		}
		q := Qualifier(t.text)
		if q != Upstream && q != Downstream {
			return Operand{}, p.errorf(t, "unknown qualifier %q, want upstream or downstream", t.text)
		}
		p.next()
		name := p.next()
		if name.kind != tokIdent || isKeyword(name.text) {
			return Operand{}, p.errorf(name, "expected parameter name after %q, found %s", t.text+".", name.describe())
		}
		return Operand{Kind: Qualified, Qualifier: q, Name: name.text, Pos: t.pos}, nil
	}
	return Operand{}, p.errorf(t, "expected operand, found %s", t.describe())
}
