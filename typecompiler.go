// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair

import (
	"fmt"
)

// TypeCompiler renders Types as BigQuery column specifications.
type TypeCompiler struct {
	dialect *Dialect
}

func newTypeCompiler(d *Dialect) *TypeCompiler {
	return &TypeCompiler{dialect: d}
}

// Process renders the given type as the text used in column definitions,
// such as INT64, ARRAY<STRING> or STRUCT<a INT64>.
func (tc *TypeCompiler) Process(t Type) (string, error) {
	switch t := t.(type) {
	case nil:
		return "", fmt.Errorf("cannot render missing type")
	case ScalarType:
		return t.name, nil
	case ArrayType:
		elem, err := tc.Process(t.Elem)
		if err != nil {
			return "", fmt.Errorf("cannot render array element type: %s", err)
		}
		return "ARRAY<" + elem + ">", nil
	case *StructType:
		return t.columnSpec(tc.Process)
	}
	return "", fmt.Errorf("cannot render type %s", t)
}
