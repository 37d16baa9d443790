// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/canonical/structair/internal/render"
)

// LiteralExpr is a constant rendered inline into the SQL text. A value that
// cannot be rendered does not fail construction; the error is returned when
// the expression is compiled.
type LiteralExpr struct {
	value any
	typ   Type
	err   error
}

// Literal returns an expression rendering the given Go value as a SQL
// literal. The type is inferred from the value: bool, string, []byte,
// integers and floats map to their BigQuery equivalents, *big.Rat to
// NUMERIC, time.Time to TIMESTAMP, civil.Date, civil.Time and
// civil.DateTime to their calendar types and nil to an untyped NULL.
func Literal(value any) *LiteralExpr {
	typ, err := literalType(value)
	return &LiteralExpr{value: value, typ: typ, err: err}
}

func (l *LiteralExpr) Kind() Kind { return KindLiteral }

func (l *LiteralExpr) Type() Type { return l.typ }

func (l *LiteralExpr) SelfGroup(against Operator) Expr { return l }

// fieldIndex coerces a field name into the operand carried on the right
// side of a field access node.
func fieldIndex(name any) (*LiteralExpr, error) {
	s, ok := name.(string)
	if !ok {
		return nil, keyTypeError(name)
	}
	return &LiteralExpr{value: s, typ: String}, nil
}

// literalType infers the BigQuery type of a Go value, or reports that the
// value cannot be rendered as a literal.
func literalType(value any) (Type, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		return Bool, nil
	case string:
		return String, nil
	case []byte:
		return Bytes, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return Int64, nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("cannot make INT64 literal of %d: out of range", v)
		}
		return Int64, nil
	case float32:
		return floatType(float64(v))
	case float64:
		return floatType(v)
	case *big.Rat:
		if v == nil {
			return nil, nil
		}
		return Numeric, nil
	case time.Time:
		return Timestamp, nil
	case civil.Date:
		return Date, nil
	case civil.Time:
		return Time, nil
	case civil.DateTime:
		return DateTime, nil
	}
	return nil, fmt.Errorf("cannot make literal of type %T", value)
}

func floatType(v float64) (Type, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("cannot make FLOAT64 literal of %v", v)
	}
	return Float64, nil
}

// renderLiteral renders a checked literal value as SQL text.
func renderLiteral(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		return render.QuoteString(v), nil
	case []byte:
		return render.QuoteBytes(v), nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return formatFloat(float64(v)), nil
	case float64:
		return formatFloat(v), nil
	case *big.Rat:
		if v == nil {
			return "NULL", nil
		}
		return "NUMERIC " + render.QuoteString(formatNumeric(v)), nil
	case time.Time:
		return "TIMESTAMP " + render.QuoteString(v.UTC().Format("2006-01-02 15:04:05.999999")+"+00"), nil
	case civil.Date:
		return "DATE " + render.QuoteString(v.String()), nil
	case civil.Time:
		return "TIME " + render.QuoteString(v.String()), nil
	case civil.DateTime:
		return "DATETIME " + render.QuoteString(v.Date.String()+" "+v.Time.String()), nil
	}
	return "", fmt.Errorf("cannot make literal of type %T", value)
}

// formatFloat renders a float so that it reads back as FLOAT64, not INT64.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// formatNumeric renders a rational at NUMERIC's scale of nine digits,
// trimming trailing zeros.
func formatNumeric(v *big.Rat) string {
	s := v.FloatString(9)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
