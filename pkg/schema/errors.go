package schema

import (
	"fmt"
	"strings"
)

// FieldError describes one validation failure, naming the pipeline and
// the offending field.
type FieldError struct {
	Pipeline string
	Field    string
	Message  string
}

func (e FieldError) Error() string {
	if e.Pipeline == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Pipeline, e.Field, e.Message)
}

// Errors collects every failure found while validating one candidate, so
// that independent invariants are reported together.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *Errors) add(pipeline, field, format string, v ...interface{}) {
	*e = append(*e, FieldError{Pipeline: pipeline, Field: field, Message: fmt.Sprintf(format, v...)})
}
