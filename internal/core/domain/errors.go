package domain

import (
	"errors"
	"fmt"
)

// ErrMissingSource is returned when a required check source does not exist.
var ErrMissingSource = errors.New("check source does not exist")

// ErrInvalidInterval is returned when a section interval is not a positive integer.
var ErrInvalidInterval = errors.New("invalid section interval")

// ConfigError marks a condition that cannot heal by retrying.
// The agent stops instead of reconnecting.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a ConfigError.
func NewConfigError(op string, err error) error {
	return &ConfigError{Op: op, Err: err}
}

// IsConfigError reports whether err carries a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
