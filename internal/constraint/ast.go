// Package constraint parses constraint expressions attached to component types
// into a small tagged AST.
//
// Grammar:
//
//	expr    := operand op operand
//	         | operand "matches" operand
//	         | operand "compatible" "with" operand
//	         | operand "within" operand
//	op      := ">" | ">=" | "<" | "<=" | "==" | "!="
//	operand := number | string | identifier | qualifier "." identifier
//	qualifier := "upstream" | "downstream"
package constraint

import (
	"strconv"
	"strings"
)

// Op is a comparison operator.
type Op string

const (
	OpGT Op = ">"
	OpGE Op = ">="
	OpLT Op = "<"
	OpLE Op = "<="
	OpEQ Op = "=="
	OpNE Op = "!="
)

// Ordering reports whether the operator needs an ordering between operands,
// as opposed to plain equality.
func (o Op) Ordering() bool {
	return o != OpEQ && o != OpNE
}

// OperandKind tags an operand.
type OperandKind int

const (
	// Literal is a number or quoted string written in the expression.
	Literal OperandKind = iota
	// Variable is a bare identifier resolved against the instance.
	Variable
	// Qualified is upstream.X or downstream.X.
	Qualified
)

func (k OperandKind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Variable:
		return "variable"
	case Qualified:
		return "qualified"
	}
	return "unknown"
}

// Qualifier selects the neighbour a qualified reference is resolved through.
type Qualifier string

const (
	Upstream   Qualifier = "upstream"
	Downstream Qualifier = "downstream"
)

// Operand is one side of a constraint node.
type Operand struct {
	Kind      OperandKind
	Name      string
	Qualifier Qualifier
	Number    float64
	Text      string
	IsString  bool
	// Pos is the byte offset of the operand in the source expression.
	Pos int
}

// String renders the operand in source form.
func (o Operand) String() string {
	switch o.Kind {
	case Variable:
		return o.Name
	case Qualified:
		return string(o.Qualifier) + "." + o.Name
	}
	if o.IsString {
		return strconv.Quote(o.Text)
	}
	return strconv.FormatFloat(o.Number, 'g', -1, 64)
}

// IsReference reports whether the operand must be resolved against the graph.
func (o Operand) IsReference() bool { return o.Kind != Literal }

// NodeKind tags the root of a parsed constraint.
type NodeKind string

const (
	KindComparison NodeKind = "comparison"
	KindMembership NodeKind = "membership"
	KindPredicate  NodeKind = "predicate"
)

// Node is the root of a parsed constraint: a Comparison, Membership or
// Predicate value.
type Node interface {
	Kind() NodeKind
	Operands() []Operand
	String() string
}

// Comparison is "left op right".
type Comparison struct {
	Op    Op
	Left  Operand
	Right Operand
}

func (Comparison) Kind() NodeKind { return KindComparison }
func (c Comparison) Operands() []Operand { return []Operand{c.Left, c.Right} }
func (c Comparison) String() string { return c.Left.String() + " " + string(c.Op) + " " + c.Right.String() }

// Membership is "subject within set": the subject must lie inside the
// inclusive range described by set.
type Membership struct {
	Subject Operand
	Set     Operand
}

func (Membership) Kind() NodeKind { return KindMembership }
func (m Membership) Operands() []Operand { return []Operand{m.Subject, m.Set} }
func (m Membership) String() string { return m.Subject.String() + " within " + m.Set.String() }

// PredicateName names a qualitative predicate.
type PredicateName string

const (
	PredicateMatches        PredicateName = "matches"
	PredicateCompatibleWith PredicateName = "compatible with"
)

// Predicate is a symbolic check over its arguments such as "a matches b".
type Predicate struct {
	Name PredicateName
	Args []Operand
}

func (Predicate) Kind() NodeKind { return KindPredicate }
func (p Predicate) Operands() []Operand { return append([]Operand(nil), p.Args...) }
func (p Predicate) String() string {
	parts := make([]string, 0, len(p.Args))
	for _, a := range p.Args {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, " "+string(p.Name)+" ")
}

// Expression is one compiled constraint.
type Expression struct {
	Source string
	Root   Node
}

// String returns the canonical rendering of the expression.
func (e Expression) String() string {
	if e.Root == nil {
		return e.Source
	}
	return e.Root.String()
}

// References returns the non-literal operands of the expression in source order.
func (e Expression) References() []Operand {
	if e.Root == nil {
		return nil
	}
	var out []Operand
	for _, op := range e.Root.Operands() {
		if op.IsReference() {
			out = append(out, op)
		}
	}
	return out
}
