// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair

import (
	"errors"
	"fmt"
	"strings"
)

// StructField is one named field of a STRUCT type.
type StructField struct {
	Name string
	Type Type
}

// StructType describes a BigQuery STRUCT (RECORD) column type: an ordered
// sequence of named, typed fields.
//
// Field names are looked up case insensitively. Two fields whose names
// differ only in case are both rendered, but the later one wins for lookup.
type StructType struct {
	fields []StructField
	byName map[string]Type
}

// Struct returns the STRUCT type with the given fields, in the given order.
// Field names are not validated: duplicates are kept as given.
func Struct(fields ...StructField) *StructType {
	t := &StructType{
		fields: append([]StructField(nil), fields...),
		byName: make(map[string]Type, len(fields)),
	}
	for _, f := range fields {
		t.byName[strings.ToLower(f.Name)] = f.Type
	}
	return t
}

// Fields returns the fields of the type in declaration order.
func (t *StructType) Fields() []StructField {
	return append([]StructField(nil), t.fields...)
}

// String implements fmt.Stringer using the column specification shape.
// Unlike ColumnSpec it renders nested types locally and cannot fail.
func (t *StructType) String() string {
	var sb strings.Builder
	sb.WriteString("STRUCT<")
	for i, f := range t.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		sb.WriteString(" ")
		sb.WriteString(typeName(f.Type))
	}
	sb.WriteString(">")
	return sb.String()
}

func (*StructType) isType() {}

// ColumnSpec renders the type as a BigQuery column specification, for
// example STRUCT<a INT64, b STRING>. Nested field types are rendered by the
// default dialect's type compiler, which is bound on first use and reused
// for the lifetime of the process.
func (t *StructType) ColumnSpec() (string, error) {
	return t.columnSpec(Default().TypeCompiler().Process)
}

// columnSpec assembles the column specification, rendering each field type
// through process. Field names are rendered as declared, unquoted.
func (t *StructType) columnSpec(process func(Type) (string, error)) (string, error) {
	var sb strings.Builder
	sb.WriteString("STRUCT<")
	for i, f := range t.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		spec, err := process(f.Type)
		if err != nil {
			return "", fmt.Errorf("cannot render column spec for field %q: %s", f.Name, err)
		}
		sb.WriteString(f.Name)
		sb.WriteString(" ")
		sb.WriteString(spec)
	}
	sb.WriteString(">")
	return sb.String(), nil
}

// resolveIndex performs the index style lookup of a field. On success it
// returns the field access operator, the coerced field name operand and the
// type of the field. The key must be a string; lookup folds case. The
// operand keeps the spelling of the key, not of the declared field.
func (t *StructType) resolveIndex(key any) (Operator, Expr, Type, error) {
	name, ok := key.(string)
	if !ok {
		return "", nil, nil, keyTypeError(key)
	}
	sub, ok := t.byName[strings.ToLower(name)]
	if !ok {
		return "", nil, nil, keyNotFoundError(name)
	}
	index, err := fieldIndex(name)
	if err != nil {
		return "", nil, nil, err
	}
	return OpFieldAccess, index, sub, nil
}

// Index builds a STRUCT field access expression, looking the field up by
// key. The key must be a string; lookup is case insensitive. The type of
// the returned expression is the type of the field, so accesses chain
// through nested STRUCTs.
func Index(e Expr, key any) (*BinaryExpr, error) {
	st, err := structTypeOf(e)
	if err != nil {
		return nil, err
	}
	op, index, sub, err := st.resolveIndex(key)
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{
		left:  e.SelfGroup(op),
		op:    op,
		right: index,
		typ:   sub,
	}, nil
}

// Field builds a STRUCT field access expression, looking the field up by
// name as Index does. A missing field is reported as ErrFieldNotFound
// rather than ErrKeyNotFound.
func Field(e Expr, name string) (*BinaryExpr, error) {
	st, err := structTypeOf(e)
	if err != nil {
		return nil, err
	}
	if _, ok := st.byName[strings.ToLower(name)]; !ok {
		return nil, fieldNotFoundError(name)
	}
	b, err := Index(e, name)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, fieldNotFoundError(name)
	}
	return b, err
}

func structTypeOf(e Expr) (*StructType, error) {
	if e == nil {
		return nil, fmt.Errorf("cannot access field of nil expression")
	}
	st, ok := e.Type().(*StructType)
	if !ok {
		return nil, fmt.Errorf("cannot access field of non-STRUCT expression of type %s", typeName(e.Type()))
	}
	return st, nil
}
