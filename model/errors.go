package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidConfig matches every error raised while turning a document into
// a Config: malformed syntax, mismatched value types, missing fields.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigError reports a structural problem with a configuration document.
// Field is the dotted document path when the problem is tied to one.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %v", ErrInvalidConfig, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", ErrInvalidConfig, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }
