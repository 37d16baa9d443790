// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair

import (
	"fmt"
	"strconv"

	"github.com/canonical/structair/internal/render"
)

// Statement is a compiled SQL statement: the SQL text plus the named
// parameter values collected while compiling. A Statement is immutable and
// can be run any number of times, on any number of databases.
type Statement struct {
	// cacheID is used to look up the driver prepared statements
	// associated with this statement.
	cacheID uint64
	sql     string
	params  []any
	// outputs records whether the statement selects columns, deciding
	// whether running it produces rows or a plain result.
	outputs bool
}

// SQL returns the SQL text of the statement.
func (s *Statement) SQL() string { return s.sql }

// Params returns the parameter values of the statement as sql.NamedArg
// values, in the order they were first bound.
func (s *Statement) Params() []any { return append([]any(nil), s.params...) }

// CompileExpr compiles a bare expression fragment against the default
// dialect.
func CompileExpr(e Expr) (*Statement, error) {
	return Default().CompileExpr(e)
}

// MustCompileExpr is the same as CompileExpr but panics on error.
func MustCompileExpr(e Expr) *Statement {
	s, err := CompileExpr(e)
	if err != nil {
		panic(err)
	}
	return s
}

// SelectBuilder assembles a SELECT statement.
type SelectBuilder struct {
	table    string
	columns  []Expr
	where    Expr
	groupBy  []Expr
	orderBy  []Expr
	limit    int
	hasLimit bool
}

// SelectFrom starts a SELECT of the given columns from the given table.
func SelectFrom(table string, columns ...Expr) *SelectBuilder {
	return &SelectBuilder{table: table, columns: append([]Expr(nil), columns...)}
}

// Where sets the WHERE condition.
func (b *SelectBuilder) Where(cond Expr) *SelectBuilder {
	b.where = cond
	return b
}

// GroupBy sets the GROUP BY expressions.
func (b *SelectBuilder) GroupBy(exprs ...Expr) *SelectBuilder {
	b.groupBy = append([]Expr(nil), exprs...)
	return b
}

// OrderBy sets the ORDER BY expressions. Wrap an expression in Desc for
// descending order.
func (b *SelectBuilder) OrderBy(exprs ...Expr) *SelectBuilder {
	b.orderBy = append([]Expr(nil), exprs...)
	return b
}

// Limit sets the LIMIT row count.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = n
	b.hasLimit = true
	return b
}

// Build compiles the statement against the default dialect.
func (b *SelectBuilder) Build() (*Statement, error) {
	return b.build(Default())
}

// MustBuild is the same as Build but panics on error.
func (b *SelectBuilder) MustBuild() *Statement {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func (b *SelectBuilder) build(d *Dialect) (*Statement, error) {
	if b.table == "" {
		return nil, fmt.Errorf("cannot build SELECT: no table")
	}
	if len(b.columns) == 0 {
		return nil, fmt.Errorf("cannot build SELECT: no columns")
	}
	ctx := newCompileContext()
	var sb render.Builder
	sb.Write("SELECT ")
	ctx.withinColumns = true
	columns, err := d.compiler.processList(b.columns, ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot build SELECT: %s", err)
	}
	ctx.withinColumns = false
	sb.Write(columns)
	sb.Write(" FROM ")
	sb.Write(render.IdentPath(b.table))
	if b.where != nil {
		cond, err := d.compiler.process(b.where, ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot build SELECT: %s", err)
		}
		sb.Write(" WHERE ")
		sb.Write(cond)
	}
	if len(b.groupBy) > 0 {
		group, err := d.compiler.processList(b.groupBy, ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot build SELECT: %s", err)
		}
		sb.Write(" GROUP BY ")
		sb.Write(group)
	}
	if len(b.orderBy) > 0 {
		order, err := d.compiler.processList(b.orderBy, ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot build SELECT: %s", err)
		}
		sb.Write(" ORDER BY ")
		sb.Write(order)
	}
	if b.hasLimit {
		sb.Write(" LIMIT ")
		sb.Write(strconv.Itoa(b.limit))
	}
	return newStatement(sb.String(), ctx.params, true), nil
}

// InsertBuilder assembles an INSERT statement.
type InsertBuilder struct {
	table   string
	columns []string
	rows    [][]Expr
}

// InsertInto starts an INSERT into the given table and columns.
func InsertInto(table string, columns ...string) *InsertBuilder {
	return &InsertBuilder{table: table, columns: append([]string(nil), columns...)}
}

// Values appends one row of values. It can be called repeatedly to insert
// several rows with one statement.
func (b *InsertBuilder) Values(values ...Expr) *InsertBuilder {
	b.rows = append(b.rows, values)
	return b
}

// Build compiles the statement against the default dialect.
func (b *InsertBuilder) Build() (*Statement, error) {
	return b.build(Default())
}

// MustBuild is the same as Build but panics on error.
func (b *InsertBuilder) MustBuild() *Statement {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func (b *InsertBuilder) build(d *Dialect) (*Statement, error) {
	if b.table == "" {
		return nil, fmt.Errorf("cannot build INSERT: no table")
	}
	if len(b.columns) == 0 {
		return nil, fmt.Errorf("cannot build INSERT: no columns")
	}
	if len(b.rows) == 0 {
		return nil, fmt.Errorf("cannot build INSERT: no values")
	}
	ctx := newCompileContext()
	var sb render.Builder
	sb.Write("INSERT INTO ")
	sb.Write(render.IdentPath(b.table))
	sb.Write(" (")
	sb.WriteList(len(b.columns), func(i int) string {
		return render.Ident(b.columns[i])
	})
	sb.Write(") VALUES ")
	for i, row := range b.rows {
		if len(row) != len(b.columns) {
			return nil, fmt.Errorf("cannot build INSERT: row %d has %d values, expected %d", i, len(row), len(b.columns))
		}
		values, err := d.compiler.processList(row, ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot build INSERT: %s", err)
		}
		if i > 0 {
			sb.Write(", ")
		}
		sb.Write("(")
		sb.Write(values)
		sb.Write(")")
	}
	return newStatement(sb.String(), ctx.params, false), nil
}

// CreateTableBuilder assembles a CREATE TABLE statement.
type CreateTableBuilder struct {
	table       string
	ifNotExists bool
	columns     []StructField
}

// CreateTable starts a CREATE TABLE for the given table.
func CreateTable(table string) *CreateTableBuilder {
	return &CreateTableBuilder{table: table}
}

// IfNotExists makes the statement a no-op when the table already exists.
func (b *CreateTableBuilder) IfNotExists() *CreateTableBuilder {
	b.ifNotExists = true
	return b
}

// Column appends a column definition. The type renders through the
// dialect's type compiler, so STRUCT columns render their full column
// specification.
func (b *CreateTableBuilder) Column(name string, t Type) *CreateTableBuilder {
	b.columns = append(b.columns, StructField{Name: name, Type: t})
	return b
}

// Build compiles the statement against the default dialect.
func (b *CreateTableBuilder) Build() (*Statement, error) {
	return b.build(Default())
}

// MustBuild is the same as Build but panics on error.
func (b *CreateTableBuilder) MustBuild() *Statement {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func (b *CreateTableBuilder) build(d *Dialect) (*Statement, error) {
	if b.table == "" {
		return nil, fmt.Errorf("cannot build CREATE TABLE: no table")
	}
	if len(b.columns) == 0 {
		return nil, fmt.Errorf("cannot build CREATE TABLE: no columns")
	}
	var sb render.Builder
	sb.Write("CREATE TABLE ")
	if b.ifNotExists {
		sb.Write("IF NOT EXISTS ")
	}
	sb.Write(render.IdentPath(b.table))
	sb.Write(" (")
	for i, col := range b.columns {
		spec, err := d.TypeCompiler().Process(col.Type)
		if err != nil {
			return nil, fmt.Errorf("cannot build CREATE TABLE: column %q: %s", col.Name, err)
		}
		if i > 0 {
			sb.Write(", ")
		}
		sb.Write(render.Ident(col.Name))
		sb.Write(" ")
		sb.Write(spec)
	}
	sb.Write(")")
	return newStatement(sb.String(), nil, false), nil
}
