package services

import (
	"errors"
	"fmt"
)

var (
	ErrDriverNotRegistered      = errors.New("dynamic_field_driver_not_registered")
	ErrExtensionBaseUnknown     = errors.New("dynamic_field_extension_base_unknown")
	ErrExtensionBehaviorUnknown = errors.New("dynamic_field_extension_behavior_unknown")
	ErrExtensionDriverMismatch  = errors.New("dynamic_field_extension_driver_mismatch")
	ErrInvalidValue             = errors.New("dynamic_field_value_invalid")
	ErrSearchNotSupported       = errors.New("dynamic_field_search_not_supported")
	ErrDefaultValueExpr         = errors.New("dynamic_field_default_value_expr_invalid")
)

// ValidationError reports the first item of a value that failed validation.
// Pattern is empty when the item failed the type check.
type ValidationError struct {
	Value   string
	Pattern string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Pattern != "" {
		return fmt.Sprintf("value %q does not match %q: %s", e.Value, e.Pattern, e.Message)
	}
	return fmt.Sprintf("value %q is invalid: %s", e.Value, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidValue
}
