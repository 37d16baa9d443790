// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package render contains the low-level text assembly used when compiling
// expressions into BigQuery Standard SQL. It knows how to quote identifiers,
// escape string and bytes literals and accumulate comma separated lists, and
// nothing about expression trees.
package render

import (
	"bytes"
	"fmt"
	"strings"
)

// Builder accumulates a SQL string piece by piece.
type Builder struct {
	buf bytes.Buffer
}

// Write appends a raw SQL chunk.
func (b *Builder) Write(sql string) {
	b.buf.WriteString(sql)
}

// WriteList appends the provided list, comma separating each element written
// by the writer.
func (b *Builder) WriteList(n int, writer func(i int) string) {
	for i := 0; i < n; i++ {
		if i != 0 {
			b.buf.WriteString(", ")
		}
		b.buf.WriteString(writer(i))
	}
}

// String returns the SQL accumulated so far.
func (b *Builder) String() string {
	return b.buf.String()
}

// reservedWords are the BigQuery Standard SQL reserved keywords. Identifiers
// colliding with one of these must be quoted.
var reservedWords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`
		ALL AND ANY ARRAY AS ASC ASSERT_ROWS_MODIFIED AT BETWEEN BY CASE
		CAST COLLATE CONTAINS CREATE CROSS CUBE CURRENT DEFAULT DEFINE
		DESC DISTINCT ELSE END ENUM ESCAPE EXCEPT EXCLUDE EXISTS EXTRACT
		FALSE FETCH FOLLOWING FOR FROM FULL GROUP GROUPING GROUPS HASH
		HAVING IF IGNORE IN INNER INTERSECT INTERVAL INTO IS JOIN LATERAL
		LEFT LIKE LIMIT LOOKUP MERGE NATURAL NEW NO NOT NULL NULLS OF ON
		OR ORDER OUTER OVER PARTITION PRECEDING PROTO QUALIFY RANGE
		RECURSIVE RESPECT RIGHT ROLLUP ROWS SELECT SET SOME STRUCT
		TABLESAMPLE THEN TO TREAT TRUE UNBOUNDED UNION UNNEST USING WHEN
		WHERE WINDOW WITH WITHIN`) {
		reservedWords[w] = true
	}
}

// bareIdent reports whether name can appear in SQL without quoting.
func bareIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z'):
		case '0' <= r && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return !reservedWords[strings.ToUpper(name)]
}

// Ident quotes a single identifier if quoting is required, using BigQuery
// backtick quoting.
func Ident(name string) string {
	if bareIdent(name) {
		return name
	}
	var sb strings.Builder
	sb.WriteByte('`')
	for _, r := range name {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '`':
			sb.WriteString("\\`")
		case '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('`')
	return sb.String()
}

// IdentPath quotes a dotted identifier path part by part, e.g.
// "dataset.order.id" becomes "dataset.`order`.id". A star part is kept as
// is, so "t.*" renders unquoted.
func IdentPath(path string) string {
	parts := strings.Split(path, ".")
	for i, part := range parts {
		if part == "*" {
			continue
		}
		parts[i] = Ident(part)
	}
	return strings.Join(parts, ".")
}

// QuoteString renders s as a BigQuery single quoted string literal.
func QuoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// QuoteBytes renders b as a BigQuery bytes literal, e.g. b'\x00abc'.
func QuoteBytes(b []byte) string {
	var sb strings.Builder
	sb.WriteString("b'")
	for _, c := range b {
		switch {
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '\'':
			sb.WriteString(`\'`)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, `\x%02x`, c)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}
