// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair

// StructExpr is a BigQuery struct literal built from named clauses. It
// renders as struct(clause1, clause2, ...), with each clause labelled.
type StructExpr struct {
	clauses []Named
	field   string
	typ     *StructType
}

// StructOf builds a struct literal from the given named clauses. Its STRUCT
// type is derived from the clause names and types, in clause order. An
// empty clause list is legal and renders as struct().
func StructOf(clauses ...Named) *StructExpr {
	fields := make([]StructField, len(clauses))
	for i, c := range clauses {
		fields[i] = StructField{Name: c.Name(), Type: c.Type()}
	}
	return &StructExpr{
		clauses: append([]Named(nil), clauses...),
		typ:     Struct(fields...),
	}
}

// WithField returns a copy of the literal tagged with a single projected
// field. A tagged literal renders as the quoted field identifier alone,
// standing for that field of the struct rather than the whole constructor.
func (s *StructExpr) WithField(name string) *StructExpr {
	c := *s
	c.field = name
	return &c
}

func (s *StructExpr) Kind() Kind { return KindStruct }

func (s *StructExpr) Type() Type { return s.typ }

// SelfGroup returns the literal itself. The constructor call carries its
// own delimiters and never needs parentheses.
func (s *StructExpr) SelfGroup(against Operator) Expr { return s }
