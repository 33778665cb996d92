package importer

import (
	"strings"

	"github.com/spending-frustration/spending/internal/export"
	"github.com/spending-frustration/spending/internal/model"
)

// CSVParser re-imports files written by "transactions export".
type CSVParser struct{}

// Format returns the parser name.
func (p *CSVParser) Format() string { return "csv" }

// Match reports whether data starts with the export header.
func (p *CSVParser) Match(data string) bool { return export.IsExport(data) }

// Parse reads exported rows and assigns them to userID.
func (p *CSVParser) Parse(data, userID string) ([]*model.Transaction, error) {
	txns, err := export.ReadTransactions(strings.NewReader(strings.TrimPrefix(data, "\ufeff")))
	if err != nil {
		return nil, &FormatError{Format: p.Format(), Msg: err.Error()}
	}
	for _, t := range txns {
		t.UserID = userID
	}
	return txns, nil
}
