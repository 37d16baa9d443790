// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair

import (
	"strings"
)

// Kind identifies the node kind of an expression for compiler dispatch.
type Kind int

const (
	KindColumn Kind = iota
	KindLiteral
	KindParam
	KindLabel
	KindList
	KindGrouping
	KindBinary
	KindUnary
	KindFunc
	KindArray
	KindStruct
)

var kindNames = map[Kind]string{
	KindColumn:   "column",
	KindLiteral:  "literal",
	KindParam:    "parameter",
	KindLabel:    "label",
	KindList:     "clause list",
	KindGrouping: "grouping",
	KindBinary:   "binary",
	KindUnary:    "unary",
	KindFunc:     "function call",
	KindArray:    "array",
	KindStruct:   "struct",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Expr is a SQL expression node. Expressions are immutable once built and
// safe for concurrent use.
type Expr interface {
	// Kind identifies the node for compiler dispatch.
	Kind() Kind

	// Type is the BigQuery type the expression evaluates to. It is nil
	// for untyped expressions such as the NULL literal.
	Type() Type

	// SelfGroup returns the expression as it must appear as an operand of
	// the given operator, wrapped in parentheses where the expression
	// would otherwise bind too loosely.
	SelfGroup(against Operator) Expr
}

// Named is an expression carrying a result name, such as a column reference
// or a labelled expression. StructOf derives its field names from it.
type Named interface {
	Expr

	// Name returns the result name of the expression.
	Name() string
}

// operand prepares e for use as an operand of against. A nil expression is
// passed through and reported when the tree is compiled.
func operand(e Expr, against Operator) Expr {
	if e == nil {
		return nil
	}
	return e.SelfGroup(against)
}

// ColumnExpr is a reference to a table column. The name may be a dotted path
// such as "dataset.person.name"; each part is quoted independently when
// rendered.
type ColumnExpr struct {
	path string
	typ  Type
}

// Column returns a reference to the named column with the given type.
func Column(name string, t Type) *ColumnExpr {
	return &ColumnExpr{path: name, typ: t}
}

// Star selects all columns of the enclosing scope.
var Star = &ColumnExpr{path: "*"}

func (c *ColumnExpr) Kind() Kind { return KindColumn }

func (c *ColumnExpr) Type() Type { return c.typ }

func (c *ColumnExpr) SelfGroup(against Operator) Expr { return c }

// Name returns the last element of the column path.
func (c *ColumnExpr) Name() string {
	if i := strings.LastIndex(c.path, "."); i >= 0 {
		return c.path[i+1:]
	}
	return c.path
}

// ParamExpr is a named query parameter. It renders as @name and its value is
// collected into the compiled statement's parameter list.
type ParamExpr struct {
	name  string
	value any
	typ   Type
}

// Param returns a named query parameter bound to the given value. The type
// is inferred from the value where possible.
func Param(name string, value any) *ParamExpr {
	typ, err := literalType(value)
	if err != nil {
		typ = nil
	}
	return &ParamExpr{name: name, value: value, typ: typ}
}

func (p *ParamExpr) Kind() Kind { return KindParam }

func (p *ParamExpr) Type() Type { return p.typ }

func (p *ParamExpr) SelfGroup(against Operator) Expr { return p }

// LabelExpr names an expression. It renders as "expr AS name" within a
// columns clause and as the bare expression elsewhere.
type LabelExpr struct {
	expr Expr
	name string
}

// Label names the given expression.
func Label(e Expr, name string) *LabelExpr {
	return &LabelExpr{expr: e, name: name}
}

func (l *LabelExpr) Kind() Kind { return KindLabel }

func (l *LabelExpr) Type() Type {
	if l.expr == nil {
		return nil
	}
	return l.expr.Type()
}

func (l *LabelExpr) SelfGroup(against Operator) Expr { return l }

// Name returns the label.
func (l *LabelExpr) Name() string { return l.name }

// ListExpr is a comma separated list of expressions.
type ListExpr struct {
	items []Expr
}

// ClauseList joins the given expressions into a comma separated list.
func ClauseList(items ...Expr) *ListExpr {
	return &ListExpr{items: append([]Expr(nil), items...)}
}

func (l *ListExpr) Kind() Kind { return KindList }

func (l *ListExpr) Type() Type { return nil }

func (l *ListExpr) SelfGroup(against Operator) Expr { return l }

// groupingExpr wraps an expression in parentheses.
type groupingExpr struct {
	inner Expr
}

func (g *groupingExpr) Kind() Kind { return KindGrouping }

func (g *groupingExpr) Type() Type {
	if g.inner == nil {
		return nil
	}
	return g.inner.Type()
}

func (g *groupingExpr) SelfGroup(against Operator) Expr { return g }

// BinaryExpr applies a binary operator to two operands.
type BinaryExpr struct {
	left  Expr
	op    Operator
	right Expr
	typ   Type
}

func (b *BinaryExpr) Kind() Kind { return KindBinary }

func (b *BinaryExpr) Type() Type { return b.typ }

// Operator returns the operator applied by the node.
func (b *BinaryExpr) Operator() Operator { return b.op }

func (b *BinaryExpr) SelfGroup(against Operator) Expr {
	if b.op.precedence() < against.precedence() {
		return &groupingExpr{inner: b}
	}
	return b
}

func compare(left Expr, op Operator, right Expr) *BinaryExpr {
	return &BinaryExpr{
		left:  operand(left, op),
		op:    op,
		right: operand(right, op),
		typ:   Bool,
	}
}

// Eq compares two expressions for equality.
func Eq(left, right Expr) *BinaryExpr { return compare(left, OpEq, right) }

// Ne compares two expressions for inequality.
func Ne(left, right Expr) *BinaryExpr { return compare(left, OpNe, right) }

// Lt builds a less-than comparison.
func Lt(left, right Expr) *BinaryExpr { return compare(left, OpLt, right) }

// Le builds a less-than-or-equal comparison.
func Le(left, right Expr) *BinaryExpr { return compare(left, OpLe, right) }

// Gt builds a greater-than comparison.
func Gt(left, right Expr) *BinaryExpr { return compare(left, OpGt, right) }

// Ge builds a greater-than-or-equal comparison.
func Ge(left, right Expr) *BinaryExpr { return compare(left, OpGe, right) }

// And combines two conditions with AND.
func And(left, right Expr) *BinaryExpr { return compare(left, OpAnd, right) }

// Or combines two conditions with OR.
func Or(left, right Expr) *BinaryExpr { return compare(left, OpOr, right) }

// In tests membership of left in the given values.
func In(left Expr, values ...Expr) *BinaryExpr {
	return &BinaryExpr{
		left:  operand(left, OpIn),
		op:    OpIn,
		right: &groupingExpr{inner: ClauseList(values...)},
		typ:   Bool,
	}
}

// UnaryExpr applies a unary operator to an operand.
type UnaryExpr struct {
	op      Operator
	operand Expr
	typ     Type
}

func (u *UnaryExpr) Kind() Kind { return KindUnary }

func (u *UnaryExpr) Type() Type { return u.typ }

func (u *UnaryExpr) SelfGroup(against Operator) Expr {
	if u.op.precedence() < against.precedence() {
		return &groupingExpr{inner: u}
	}
	return u
}

// Not negates a condition.
func Not(e Expr) *UnaryExpr {
	return &UnaryExpr{op: OpNot, operand: operand(e, OpNot), typ: Bool}
}

// IsNull tests an expression for NULL.
func IsNull(e Expr) *UnaryExpr {
	return &UnaryExpr{op: OpIsNull, operand: operand(e, OpIsNull), typ: Bool}
}

// IsNotNull tests an expression for not NULL.
func IsNotNull(e Expr) *UnaryExpr {
	return &UnaryExpr{op: OpIsNotNull, operand: operand(e, OpIsNotNull), typ: Bool}
}

// Desc marks an ORDER BY expression as descending.
func Desc(e Expr) *UnaryExpr {
	var t Type
	if e != nil {
		t = e.Type()
	}
	return &UnaryExpr{op: OpDesc, operand: operand(e, OpDesc), typ: t}
}

// FuncExpr is a function call such as COUNT(*) or SUM(amount).
type FuncExpr struct {
	name string
	args []Expr
	typ  Type
}

// Func builds a call of the named SQL function returning the given type.
func Func(name string, t Type, args ...Expr) *FuncExpr {
	return &FuncExpr{name: name, args: append([]Expr(nil), args...), typ: t}
}

func (f *FuncExpr) Kind() Kind { return KindFunc }

func (f *FuncExpr) Type() Type { return f.typ }

func (f *FuncExpr) SelfGroup(against Operator) Expr { return f }

// ArrayExpr is an ARRAY literal such as [1, 2, 3]. Its element type is taken
// from the first typed element.
type ArrayExpr struct {
	items []Expr
}

// ArrayOf builds an ARRAY literal from the given elements.
func ArrayOf(items ...Expr) *ArrayExpr {
	return &ArrayExpr{items: append([]Expr(nil), items...)}
}

func (a *ArrayExpr) Kind() Kind { return KindArray }

func (a *ArrayExpr) Type() Type {
	for _, item := range a.items {
		if item != nil && item.Type() != nil {
			return Array(item.Type())
		}
	}
	return Array(nil)
}

func (a *ArrayExpr) SelfGroup(against Operator) Expr { return a }

var (
	_ Named = (*ColumnExpr)(nil)
	_ Named = (*LabelExpr)(nil)
	_ Expr  = (*LiteralExpr)(nil)
	_ Expr  = (*StructExpr)(nil)
)
