// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair

// Operator identifies a SQL operator. Binary operators render infix, unary
// operators render as a prefix or postfix token. OpFieldAccess is special:
// it marks STRUCT field access nodes for the compiler and has no SQL token
// of its own.
type Operator string

const (
	OpEq Operator = "="
	OpNe Operator = "!="
	OpLt Operator = "<"
	OpLe Operator = "<="
	OpGt Operator = ">"
	OpGe Operator = ">="
	OpIn Operator = "IN"

	OpAnd Operator = "AND"
	OpOr  Operator = "OR"
	OpNot Operator = "NOT"

	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"

	OpDesc Operator = "DESC"

	// OpFieldAccess marks the binary node built by Index and Field. The
	// node renders as left.name, never with an infix token.
	OpFieldAccess Operator = "."
)

// infix returns the SQL token written between the operands of a binary
// operator. OpFieldAccess is a syntax marker only: asking for its token is a
// programming error and panics.
func (o Operator) infix() string {
	if o == OpFieldAccess {
		panic("structair: field access has no infix SQL form")
	}
	return string(o)
}

// postfix reports whether a unary operator follows its operand.
func (o Operator) postfix() bool {
	switch o {
	case OpIsNull, OpIsNotNull, OpDesc:
		return true
	}
	return false
}

// precedence orders operators for parenthesization. SelfGroup wraps an
// expression whose operator binds less tightly than the one it is becoming
// an operand of.
func (o Operator) precedence() int {
	switch o {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	case OpNot:
		return 3
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpIn, OpIsNull, OpIsNotNull:
		return 4
	case OpFieldAccess:
		return 6
	}
	return 5
}
