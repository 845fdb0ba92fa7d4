package constraint

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"pidcheck/pkg/domain"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokDot
	tokOp
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokIdent:
		return "identifier"
	case tokDot:
		return `"."`
	case tokOp:
		return "operator"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) describe() string {
	if t.kind == tokEOF {
		return t.kind.String()
	}
	return fmt.Sprintf("%s %q", t.kind, t.text)
}

// lex splits src into tokens. It never returns an empty slice: the last token
// is always tokEOF.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '.':
			toks = append(toks, token{kind: tokDot, text: ".", pos: i})
			i++
		case r == '"' || r == '\'':
			end := strings.IndexRune(src[i+1:], r)
			if end < 0 {
				return nil, syntaxError(src, i, "unterminated string literal")
			}
			toks = append(toks, token{kind: tokString, text: src[i+1 : i+1+end], pos: i})
			i += end + 2
		case isDigit(r) || (r == '-' && i+1 < len(src) && isDigit(rune(src[i+1]))):
			n := scanNumber(src[i:])
			toks = append(toks, token{kind: tokNumber, text: src[i : i+n], pos: i})
			i += n
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(src) {
				r, size = utf8.DecodeRuneInString(src[i:])
				if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case strings.ContainsRune("<>=!", r):
			op := src[i : i+1]
			if i+1 < len(src) && src[i+1] == '=' {
				op = src[i : i+2]
			}
			switch Op(op) {
			case OpGT, OpGE, OpLT, OpLE, OpEQ, OpNE:
			default:
				return nil, syntaxError(src, i, fmt.Sprintf("unknown operator %q", op))
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		default:
			return nil, syntaxError(src, i, fmt.Sprintf("unexpected character %q", r))
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// scanNumber returns the length of the numeric literal at the start of s:
// an optional sign, digits, an optional fraction and an optional exponent.
func scanNumber(s string) int {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	for i < len(s) && isDigit(rune(s[i])) {
		i++
	}
	if i+1 < len(s) && s[i] == '.' && isDigit(rune(s[i+1])) {
		i++
		for i < len(s) && isDigit(rune(s[i])) {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(rune(s[j])) {
			for j < len(s) && isDigit(rune(s[j])) {
				j++
			}
			i = j
		}
	}
	return i
}

func syntaxError(src string, pos int, msg string) error {
	return domain.SyntaxError{Expression: src, Position: pos, Message: msg}
}
