package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyConfigured is returned when setup is submitted after the
	// application has been configured.
	ErrAlreadyConfigured = errors.New("application is already configured")

	// ErrNotConfigured is returned by read paths that need a configured
	// application.
	ErrNotConfigured = errors.New("application is not configured")

	// ErrInvalidPort is matched by every *PortError.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidRecord is matched by every *FieldError.
	ErrInvalidRecord = errors.New("invalid configuration")
)

// PortError reports a port string that cannot be used.
type PortError struct {
	Value string
	Err   error
}

func (e *PortError) Error() string {
	return fmt.Sprintf("invalid port %q: %v", e.Value, e.Err)
}

func (e *PortError) Unwrap() []error { return []error{ErrInvalidPort, e.Err} }

// FieldError reports a configuration field that fails its constraint.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() []error { return []error{ErrInvalidRecord, e.Err} }
