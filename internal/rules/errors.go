package rules

import (
	"errors"
	"fmt"
)

// ErrValidation marks parse errors caused by an unknown field or unsupported operator.
var ErrValidation = errors.New("rule validation failed")

// ParseError reports malformed rule text.
type ParseError struct {
	Line int    // 1-based source line in batch parsing, 0 otherwise
	Text string // offending rule text
	Msg  string

	validation bool
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error {
	if e.validation {
		return ErrValidation
	}
	return nil
}

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

func validationErrorf(format string, args ...any) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...), validation: true}
}
