package devserve

import (
	"errors"
	"fmt"
)

// ErrEntryPointMissing is wrapped by EntryPointError when the entry-point
// file does not exist under the served root.
var ErrEntryPointMissing = errors.New("devserve: entry point not found")

// ErrInvalidUTF8 is wrapped by EntryPointError when the entry-point file is
// not valid UTF-8 text.
var ErrInvalidUTF8 = errors.New("devserve: entry point is not valid UTF-8")

// EntryPointError describes a failure to load the entry-point document.
type EntryPointError struct {
	Path  string
	Cause error
}

func (e *EntryPointError) Error() string {
	return fmt.Sprintf("devserve: load entry point %s: %v", e.Path, e.Cause)
}

func (e *EntryPointError) Unwrap() error { return e.Cause }

// ConfigError is returned by Config.Validate for an out-of-range field.
type ConfigError struct {
	Field string
	Value string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("devserve: invalid %s: %q", e.Field, e.Value)
}
