package rules

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spending-frustration/spending/internal/model"
)

// DisabledMarker prefixes an inactive rule in an exported rule file. The
// line still reads as a comment to ParseLines.
const DisabledMarker = "# disabled:"

// WriteExport writes recs one per line in order, inactive ones behind
// DisabledMarker.
func WriteExport(w io.Writer, recs []model.RuleRecord) error {
	bw := bufio.NewWriter(w)
	for _, r := range recs {
		if r.Active {
			fmt.Fprintln(bw, r.Text)
		} else {
			fmt.Fprintln(bw, DisabledMarker, r.Text)
		}
	}
	return bw.Flush()
}

// ParseExport parses a file written by WriteExport. Marked lines come back
// inactive; every other line follows ParseLines.
func ParseExport(text string) ([]*Rule, error) {
	return parseLines(strings.Split(text, "\n"), true)
}
