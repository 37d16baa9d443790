// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair

// Type describes a BigQuery Standard SQL column type. The set of
// implementations is fixed: the scalar types below, ArrayType and StructType.
type Type interface {
	// String returns the canonical BigQuery name of the type.
	String() string

	isType()
}

// ScalarType is a leaf type such as INT64 or STRING.
type ScalarType struct {
	name string
}

func (t ScalarType) String() string { return t.name }

func (ScalarType) isType() {}

// The scalar types of BigQuery Standard SQL.
var (
	Bool       = ScalarType{"BOOL"}
	Bytes      = ScalarType{"BYTES"}
	Date       = ScalarType{"DATE"}
	DateTime   = ScalarType{"DATETIME"}
	Float64    = ScalarType{"FLOAT64"}
	Geography  = ScalarType{"GEOGRAPHY"}
	Int64      = ScalarType{"INT64"}
	Numeric    = ScalarType{"NUMERIC"}
	BigNumeric = ScalarType{"BIGNUMERIC"}
	String     = ScalarType{"STRING"}
	Time       = ScalarType{"TIME"}
	Timestamp  = ScalarType{"TIMESTAMP"}
)

// ArrayType is an ARRAY type with a fixed element type.
type ArrayType struct {
	Elem Type
}

// Array returns the ARRAY type with the given element type.
func Array(elem Type) ArrayType {
	return ArrayType{Elem: elem}
}

func (t ArrayType) String() string { return "ARRAY<" + typeName(t.Elem) + ">" }

func (ArrayType) isType() {}

// typeName names t for diagnostics, tolerating the nil type carried by
// untyped NULL expressions.
func typeName(t Type) string {
	if t == nil {
		return "NULL"
	}
	return t.String()
}
