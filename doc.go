/*
Package structair builds and compiles BigQuery Standard SQL expressions from
Go values, with first class support for STRUCT (record) columns.

Expressions are immutable trees assembled from typed nodes: column
references, literals, named parameters, comparisons, function calls, array
and struct literals. Compiling a tree produces a [Statement] holding the SQL
text and the parameter values bound within it, which can then be run through
the package's thin layer over database/sql.

# Struct types

A STRUCT column type is an ordered sequence of named, typed fields:

	person := structair.Struct(
		structair.StructField{Name: "name", Type: structair.String},
		structair.StructField{Name: "age", Type: structair.Int64},
	)

The type renders its own column specification, used in DDL:

	spec, err := person.ColumnSpec()
	// STRUCT<name STRING, age INT64>

Fields of a struct valued expression are projected with [Index] or [Field].
Both look the name up case insensitively against the expression's declared
type and return a new expression typed as the field, so accesses chain
through nested structs:

	col := structair.Column("person", person)
	age, err := structair.Field(col, "age")
	// compiles to: person.age

Index reports a missing field as [ErrKeyNotFound] and a non-string key as
[ErrKeyType]; Field reports a missing field as [ErrFieldNotFound].

# Struct literals

[StructOf] builds a struct value from named clauses. Its STRUCT type is
derived from the clause names and types, in clause order:

	lit := structair.StructOf(
		structair.Label(structair.Literal(1), "a"),
		structair.Label(structair.Literal("hi"), "b"),
	)
	// compiles to: struct(1 AS a, 'hi' AS b)

# Statements

The statement builders assemble complete statements around compiled
expressions:

	stmt := structair.SelectFrom("people",
		structair.Column("name", structair.String),
	).Where(structair.Eq(
		structair.Column("id", structair.Int64),
		structair.Param("id", 0),
	)).MustBuild()

A Statement is immutable and can be run any number of times. [DB.Query]
binds it to a database, optionally rebinding parameter values by name, and
the results are scanned into structs with `db` field tags or into maps.
*/
package structair
