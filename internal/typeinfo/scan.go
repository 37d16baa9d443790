// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"database/sql"
	"fmt"
	"reflect"
)

var scannerInterface = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// outputArg is one destination argument prepared for scanning. info is nil
// when the argument is a map.
type outputArg struct {
	info  *structInfo
	value reflect.Value
	name  string
	used  bool
}

// scanProxy defers moving a scanned value into its final destination until
// the row scan as a whole has succeeded.
//
// rows.Scan returns an error when it scans NULL into a type that cannot be
// set to nil. Fields that are not pointers and do not implement sql.Scanner
// are therefore scanned via a pointer; if Scan leaves the pointer nil the
// field is zeroed instead. Map entries are scanned into a fresh value and
// only then stored under their key.
type scanProxy struct {
	original reflect.Value
	scan     reflect.Value
	key      reflect.Value
}

func (sp scanProxy) onSuccess() {
	if sp.key.IsValid() {
		sp.original.SetMapIndex(sp.key, sp.scan)
		return
	}
	var val reflect.Value
	if !sp.scan.IsNil() {
		val = sp.scan.Elem()
	} else {
		val = reflect.Zero(sp.original.Type())
	}
	sp.original.Set(val)
}

// ScanArgs binds the result columns to members of the output arguments:
// each column scans into the field carrying its name as a "db" tag in
// exactly one of the struct arguments, or failing that into the map
// argument under the column name. Structs are passed as non-nil pointers,
// maps as non-nil maps, and at most one map can be passed.
//
// Every column must find a destination and every argument must receive at
// least one column. The returned pointers feed rows.Scan; onSuccess must be
// called after a successful scan to finish the deferred assignments.
func ScanArgs(columns []string, args []any) (ptrs []any, onSuccess func(), err error) {
	outputs, mapIndex, err := prepareOutputs(args)
	if err != nil {
		return nil, nil, err
	}

	var proxies []scanProxy
	for _, column := range columns {
		target := -1
		for i := range outputs {
			out := &outputs[i]
			if out.info == nil {
				continue
			}
			if _, ok := out.info.tagToField[column]; ok {
				if target != -1 {
					return nil, nil, fmt.Errorf("cannot scan column %q: tagged in both %s and %s", column, outputs[target].name, out.name)
				}
				target = i
			}
		}
		if target == -1 {
			target = mapIndex
		}
		if target == -1 {
			return nil, nil, fmt.Errorf("cannot scan column %q: no output argument takes it", column)
		}
		outputs[target].used = true
		ptr, proxy, err := outputs[target].scanTarget(column)
		if err != nil {
			return nil, nil, err
		}
		ptrs = append(ptrs, ptr)
		if proxy != nil {
			proxies = append(proxies, *proxy)
		}
	}

	for _, out := range outputs {
		if !out.used {
			return nil, nil, fmt.Errorf("%s not referenced by any result column", out.name)
		}
	}

	onSuccess = func() {
		for _, proxy := range proxies {
			proxy.onSuccess()
		}
	}
	return ptrs, onSuccess, nil
}

// prepareOutputs validates the output arguments. It returns them in order
// along with the index of the map argument, or -1 if there is none.
func prepareOutputs(args []any) ([]outputArg, int, error) {
	outputs := make([]outputArg, 0, len(args))
	mapIndex := -1
	for _, arg := range args {
		if arg == nil {
			return nil, -1, fmt.Errorf("need valid output argument, got nil")
		}
		v := reflect.ValueOf(arg)
		switch v.Kind() {
		case reflect.Map:
			if v.Type().Key().Kind() != reflect.String {
				return nil, -1, fmt.Errorf("map type %s must have key type string, found type %s", v.Type().Name(), v.Type().Key().Kind())
			}
			if v.IsNil() {
				return nil, -1, fmt.Errorf("need valid output argument, got nil map")
			}
			if mapIndex != -1 {
				return nil, -1, fmt.Errorf("cannot use more than one map output argument")
			}
			mapIndex = len(outputs)
			outputs = append(outputs, outputArg{
				value: v,
				name:  fmt.Sprintf("map %q", v.Type().Name()),
			})
		case reflect.Pointer:
			if v.IsNil() {
				return nil, -1, fmt.Errorf("need valid output argument, got nil pointer")
			}
			elem := v.Elem()
			if elem.Kind() != reflect.Struct {
				return nil, -1, fmt.Errorf("need pointer to struct, got pointer to %s", elem.Kind())
			}
			info, err := getStructInfo(elem.Type())
			if err != nil {
				return nil, -1, err
			}
			outputs = append(outputs, outputArg{
				info:  info,
				value: elem,
				name:  fmt.Sprintf("struct %q", elem.Type().Name()),
			})
		default:
			return nil, -1, fmt.Errorf("need map or pointer to struct, got %s", v.Kind())
		}
	}
	return outputs, mapIndex, nil
}

// scanTarget returns the pointer rows.Scan writes the named column into,
// with a proxy when the destination cannot be scanned into directly.
func (out *outputArg) scanTarget(column string) (any, *scanProxy, error) {
	if out.info == nil {
		scanVal := reflect.New(out.value.Type().Elem()).Elem()
		return scanVal.Addr().Interface(), &scanProxy{original: out.value, scan: scanVal, key: reflect.ValueOf(column)}, nil
	}

	field := out.info.tagToField[column]
	val := out.value.Field(field.index)
	if !val.CanSet() {
		return nil, nil, fmt.Errorf("internal error: cannot set field %s of struct %s", field.name, field.structType.Name())
	}
	pt := reflect.PointerTo(val.Type())
	if val.Type().Kind() != reflect.Pointer && !pt.Implements(scannerInterface) {
		scanVal := reflect.New(pt).Elem()
		return scanVal.Addr().Interface(), &scanProxy{original: val, scan: scanVal}, nil
	}
	return val.Addr().Interface(), nil, nil
}
