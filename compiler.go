// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/canonical/structair/internal/render"
)

// compileContext carries the state of one compilation: the columns clause
// flag steering label rendering and the named parameters bound so far.
type compileContext struct {
	withinColumns bool
	params        []any
	bound         map[string]*ParamExpr
}

func newCompileContext() *compileContext {
	return &compileContext{bound: map[string]*ParamExpr{}}
}

// bindParam records a parameter the first time it is seen. Binding two
// different parameters under one name is an error; revisiting the same node
// is not.
func (ctx *compileContext) bindParam(p *ParamExpr) error {
	if prev, ok := ctx.bound[p.name]; ok {
		if prev == p {
			return nil
		}
		return fmt.Errorf("cannot bind parameter %q twice", p.name)
	}
	ctx.bound[p.name] = p
	ctx.params = append(ctx.params, sql.Named(p.name, p.value))
	return nil
}

type visitFunc func(c *compiler, e Expr, ctx *compileContext) (string, error)

// compiler renders expression trees as BigQuery Standard SQL text. Dispatch
// is table driven: one visitor per node kind and, for binary nodes, one per
// operator. The tables are populated at construction and never mutated, so
// a compiler is safe for concurrent use.
type compiler struct {
	dialect *Dialect
	kinds   map[Kind]visitFunc
	binary  map[Operator]visitFunc
}

func newCompiler(d *Dialect) *compiler {
	c := &compiler{dialect: d}
	c.kinds = map[Kind]visitFunc{
		KindColumn:   (*compiler).visitColumn,
		KindLiteral:  (*compiler).visitLiteral,
		KindParam:    (*compiler).visitParam,
		KindLabel:    (*compiler).visitLabel,
		KindList:     (*compiler).visitList,
		KindGrouping: (*compiler).visitGrouping,
		KindBinary:   (*compiler).visitBinary,
		KindUnary:    (*compiler).visitUnary,
		KindFunc:     (*compiler).visitFuncCall,
		KindArray:    (*compiler).visitArray,
		KindStruct:   (*compiler).visitStruct,
	}
	c.binary = map[Operator]visitFunc{
		OpFieldAccess: (*compiler).visitFieldAccess,
	}
	for _, op := range []Operator{OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpIn, OpAnd, OpOr} {
		c.binary[op] = (*compiler).visitInfix
	}
	return c
}

// process renders one node, dispatching on its kind.
func (c *compiler) process(e Expr, ctx *compileContext) (string, error) {
	if e == nil {
		return "", fmt.Errorf("cannot compile nil expression")
	}
	visit, ok := c.kinds[e.Kind()]
	if !ok {
		return "", fmt.Errorf("cannot compile expression: no rendering rule for %s node", e.Kind())
	}
	return visit(c, e, ctx)
}

// processList renders the expressions as a comma separated list.
func (c *compiler) processList(items []Expr, ctx *compileContext) (string, error) {
	parts := make([]string, len(items))
	for i, item := range items {
		part, err := c.process(item, ctx)
		if err != nil {
			return "", err
		}
		parts[i] = part
	}
	return strings.Join(parts, ", "), nil
}

func (c *compiler) visitColumn(e Expr, ctx *compileContext) (string, error) {
	col := e.(*ColumnExpr)
	if col.path == "" {
		return "", fmt.Errorf("cannot compile column with empty name")
	}
	return render.IdentPath(col.path), nil
}

func (c *compiler) visitLiteral(e Expr, ctx *compileContext) (string, error) {
	l := e.(*LiteralExpr)
	if l.err != nil {
		return "", fmt.Errorf("cannot compile literal: %s", l.err)
	}
	return renderLiteral(l.value)
}

var validParamNameRx = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func (c *compiler) visitParam(e Expr, ctx *compileContext) (string, error) {
	p := e.(*ParamExpr)
	if !validParamNameRx.MatchString(p.name) {
		return "", fmt.Errorf("cannot use %q as a parameter name", p.name)
	}
	if err := ctx.bindParam(p); err != nil {
		return "", err
	}
	return "@" + p.name, nil
}

func (c *compiler) visitLabel(e Expr, ctx *compileContext) (string, error) {
	l := e.(*LabelExpr)
	inner, err := c.process(l.expr, ctx)
	if err != nil {
		return "", err
	}
	if !ctx.withinColumns {
		return inner, nil
	}
	return inner + " AS " + render.Ident(l.name), nil
}

func (c *compiler) visitList(e Expr, ctx *compileContext) (string, error) {
	return c.processList(e.(*ListExpr).items, ctx)
}

func (c *compiler) visitGrouping(e Expr, ctx *compileContext) (string, error) {
	inner, err := c.process(e.(*groupingExpr).inner, ctx)
	if err != nil {
		return "", err
	}
	return "(" + inner + ")", nil
}

func (c *compiler) visitBinary(e Expr, ctx *compileContext) (string, error) {
	b := e.(*BinaryExpr)
	visit, ok := c.binary[b.op]
	if !ok {
		return "", fmt.Errorf("cannot compile expression: no rendering rule for operator %q", string(b.op))
	}
	return visit(c, e, ctx)
}

// visitInfix renders a binary node with its operator token between the
// operands. It is never registered for OpFieldAccess, which has no token.
func (c *compiler) visitInfix(e Expr, ctx *compileContext) (string, error) {
	b := e.(*BinaryExpr)
	left, err := c.process(b.left, ctx)
	if err != nil {
		return "", err
	}
	right, err := c.process(b.right, ctx)
	if err != nil {
		return "", err
	}
	return left + " " + b.op.infix() + " " + right, nil
}

// visitFieldAccess renders left.name. The field name is written exactly as
// it was bound, without quoting.
func (c *compiler) visitFieldAccess(e Expr, ctx *compileContext) (string, error) {
	b := e.(*BinaryExpr)
	left, err := c.process(b.left, ctx)
	if err != nil {
		return "", err
	}
	index, ok := b.right.(*LiteralExpr)
	if !ok {
		return "", fmt.Errorf("cannot compile field access: right operand is not a field name")
	}
	name, ok := index.value.(string)
	if !ok {
		return "", fmt.Errorf("cannot compile field access: right operand is not a field name")
	}
	return left + "." + name, nil
}

func (c *compiler) visitUnary(e Expr, ctx *compileContext) (string, error) {
	u := e.(*UnaryExpr)
	inner, err := c.process(u.operand, ctx)
	if err != nil {
		return "", err
	}
	if u.op.postfix() {
		return inner + " " + string(u.op), nil
	}
	return string(u.op) + " " + inner, nil
}

func (c *compiler) visitFuncCall(e Expr, ctx *compileContext) (string, error) {
	f := e.(*FuncExpr)
	if f.name == "" {
		return "", fmt.Errorf("cannot compile function call with empty name")
	}
	defer func(w bool) { ctx.withinColumns = w }(ctx.withinColumns)
	ctx.withinColumns = false
	args, err := c.processList(f.args, ctx)
	if err != nil {
		return "", err
	}
	return f.name + "(" + args + ")", nil
}

func (c *compiler) visitArray(e Expr, ctx *compileContext) (string, error) {
	a := e.(*ArrayExpr)
	defer func(w bool) { ctx.withinColumns = w }(ctx.withinColumns)
	ctx.withinColumns = false
	items, err := c.processList(a.items, ctx)
	if err != nil {
		return "", err
	}
	return "[" + items + "]", nil
}

// visitStruct renders a struct literal. A literal tagged with a projected
// field renders as that field's identifier alone. Otherwise the clauses are
// rendered as a columns clause, keeping the AS of any labels, and wrapped
// in struct(...).
func (c *compiler) visitStruct(e Expr, ctx *compileContext) (string, error) {
	s := e.(*StructExpr)
	if s.field != "" {
		return render.Ident(s.field), nil
	}
	defer func(w bool) { ctx.withinColumns = w }(ctx.withinColumns)
	ctx.withinColumns = true
	clauses := make([]Expr, len(s.clauses))
	for i, clause := range s.clauses {
		clauses[i] = clause
	}
	values, err := c.processList(clauses, ctx)
	if err != nil {
		return "", err
	}
	return "struct(" + values + ")", nil
}
