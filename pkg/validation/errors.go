package validation

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every caller-correctable input error.
var ErrValidation = errors.New("validation failed")

// FieldError reports a single invalid input field.
type FieldError struct {
	Item   string // owning item, e.g. "lineItems[2] (Tower A)"
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Item == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Item, e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// Fieldf builds a FieldError with a formatted reason.
func Fieldf(item, field, format string, args ...any) *FieldError {
	return &FieldError{Item: item, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Collector accumulates field errors so all offending fields are reported
// together.
type Collector struct {
	errs []error
}

// Add records an error when it is non-nil.
func (c *Collector) Add(err error) {
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

// Addf records a FieldError.
func (c *Collector) Addf(item, field, format string, args ...any) {
	c.errs = append(c.errs, Fieldf(item, field, format, args...))
}

// Err joins the recorded errors, or returns nil when there are none.
func (c *Collector) Err() error {
	return errors.Join(c.errs...)
}

// FieldErrors flattens err into its FieldErrors so callers can surface
// each offending field.
func FieldErrors(err error) []*FieldError {
	switch e := err.(type) {
	case nil:
		return nil
	case *FieldError:
		return []*FieldError{e}
	case interface{ Unwrap() []error }:
		var out []*FieldError
		for _, inner := range e.Unwrap() {
			out = append(out, FieldErrors(inner)...)
		}
		return out
	default:
		return FieldErrors(errors.Unwrap(err))
	}
}
