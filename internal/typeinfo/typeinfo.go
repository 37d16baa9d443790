// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package typeinfo inspects the Go values that query results are scanned
// into. Structs declare the result columns they take with "db" field tags;
// maps with string keys take any column under the column's name.
package typeinfo

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
)

// structField holds reflection information about one tagged struct field.
type structField struct {
	// name is the member name within the struct.
	name string

	// index for Type.Field.
	index int

	// tag is the column name declared by the field's "db" tag.
	tag string

	// structType is the reflected type of the struct containing the field.
	structType reflect.Type
}

// structInfo indexes the tagged fields of a struct type by column name.
type structInfo struct {
	structType reflect.Type
	tagToField map[string]*structField
}

// structInfoCache caches reflection information across queries.
var structInfoMutex sync.RWMutex
var structInfoCache = make(map[reflect.Type]*structInfo)

// getStructInfo returns the tagged field index of t, computing and caching
// it on first use.
func getStructInfo(t reflect.Type) (*structInfo, error) {
	structInfoMutex.RLock()
	info, found := structInfoCache[t]
	structInfoMutex.RUnlock()
	if found {
		return info, nil
	}

	info = &structInfo{
		structType: t,
		tagToField: make(map[string]*structField),
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		// Fields without a "db" tag are not scanned into.
		tag := f.Tag.Get("db")
		if tag == "" {
			continue
		}
		if !f.IsExported() {
			return nil, fmt.Errorf("field %q of struct %s not exported", f.Name, t.Name())
		}
		name, err := parseTag(tag)
		if err != nil {
			return nil, fmt.Errorf("cannot parse tag for field %s.%s: %s", t.Name(), f.Name, err)
		}
		if dupe, ok := info.tagToField[name]; ok {
			return nil, fmt.Errorf("db tag %q of field %s.%s already used by field %s.%s", name, t.Name(), f.Name, t.Name(), dupe.name)
		}
		info.tagToField[name] = &structField{
			name:       f.Name,
			index:      i,
			tag:        name,
			structType: t,
		}
	}
	if len(info.tagToField) == 0 {
		return nil, fmt.Errorf(`no "db" tags found in struct %s`, t.Name())
	}

	structInfoMutex.Lock()
	structInfoCache[t] = info
	structInfoMutex.Unlock()

	return info, nil
}

var validColNameRx = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z_0-9]*$`)

// parseTag validates a "db" tag and returns the column name it declares.
func parseTag(tag string) (string, error) {
	if i := strings.IndexByte(tag, ','); i >= 0 {
		return "", fmt.Errorf("unsupported flag %q in tag %q", tag[i+1:], tag)
	}
	if !validColNameRx.MatchString(tag) {
		return "", fmt.Errorf("invalid column name in 'db' tag: %q", tag)
	}
	return tag, nil
}
