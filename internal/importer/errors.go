package importer

import (
	"errors"
	"fmt"
)

// ErrUnknownFormat is returned when no registered parser recognizes the data.
var ErrUnknownFormat = errors.New("unrecognized statement format")

// FormatError reports a statement that was recognized but could not be parsed.
// It aborts the import of the whole file.
type FormatError struct {
	Format string
	Line   int // 1-based line in the statement, 0 when not tied to a line
	Msg    string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s statement line %d: %s", e.Format, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s statement: %s", e.Format, e.Msg)
}
