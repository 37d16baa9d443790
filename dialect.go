// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair

import (
	"sync"
)

// Dialect bundles the expression compiler and type compiler targeting
// BigQuery Standard SQL. A Dialect is safe for concurrent use.
type Dialect struct {
	compiler *compiler

	tcOnce sync.Once
	tc     *TypeCompiler
}

func newDialect() *Dialect {
	d := &Dialect{}
	d.compiler = newCompiler(d)
	return d
}

var (
	defaultOnce    sync.Once
	defaultDialect *Dialect
)

// Default returns the dialect shared by the whole process. The statement
// builders and StructType.ColumnSpec compile against it.
func Default() *Dialect {
	defaultOnce.Do(func() {
		defaultDialect = newDialect()
	})
	return defaultDialect
}

// TypeCompiler returns the dialect's type compiler, creating it on first
// use. The same compiler is returned from then on.
func (d *Dialect) TypeCompiler() *TypeCompiler {
	d.tcOnce.Do(func() {
		d.tc = newTypeCompiler(d)
	})
	return d.tc
}

// CompileExpr compiles a bare expression fragment into a statement holding
// its SQL text and the parameters bound within it.
func (d *Dialect) CompileExpr(e Expr) (*Statement, error) {
	ctx := newCompileContext()
	sql, err := d.compiler.process(e, ctx)
	if err != nil {
		return nil, err
	}
	return newStatement(sql, ctx.params, false), nil
}
