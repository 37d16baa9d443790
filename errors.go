// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair

import (
	"errors"
	"fmt"
)

// ErrKeyType is returned by Index when the key is not a string. STRUCT
// fields can only be looked up by name.
var ErrKeyType = errors.New("STRUCT fields can only be accessed with string field names")

// ErrKeyNotFound is returned by Index when no field matches the key under
// case insensitive comparison.
var ErrKeyNotFound = errors.New("field not found")

// ErrFieldNotFound is returned by Field when no field matches the name under
// case insensitive comparison.
var ErrFieldNotFound = errors.New("no such field")

func keyTypeError(key any) error {
	return fmt.Errorf("%w, not %#v", ErrKeyType, key)
}

func keyNotFoundError(name string) error {
	return fmt.Errorf("%w: %q", ErrKeyNotFound, name)
}

func fieldNotFoundError(name string) error {
	return fmt.Errorf("%w: %q", ErrFieldNotFound, name)
}
