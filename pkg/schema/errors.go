package schema

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError reports one reply field that does not match the response schema.
type FieldError struct {
	Path   string // e.g. "response.user_name"
	Reason string
	Value  any
}

func (e *FieldError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: %s (got %T)", e.Path, e.Reason, e.Value)
}

// ReplyError collects every FieldError of a rejected reply.
type ReplyError struct {
	Fields []*FieldError
}

func (e *ReplyError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "reply does not match schema: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the field errors to errors.As.
func (e *ReplyError) Unwrap() []error {
	errs := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		errs[i] = f
	}
	return errs
}

// FieldErrors returns the field errors carried by err, if any.
func FieldErrors(err error) []*FieldError {
	var re *ReplyError
	if errors.As(err, &re) {
		return re.Fields
	}
	return nil
}
