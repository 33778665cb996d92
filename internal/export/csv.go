package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spending-frustration/spending/internal/model"
)

// Header is the first line of a transaction export.
const Header = "date,amount,merchant,category,tags,notes,type"

const (
	numFields   = 7
	dateFormat  = "2006-01-02"
	tagSep      = " " // rule tag tokens never contain whitespace
	colDate     = 0
	colAmount   = 1
	colMerchant = 2
	colCategory = 3
	colTags     = 4
	colNotes    = 5
	colType     = 6
)

// IsExport reports whether data starts with the export header.
func IsExport(data string) bool {
	data = strings.TrimPrefix(data, "\ufeff")
	line, _, _ := strings.Cut(data, "\n")
	return strings.TrimRight(line, "\r") == Header
}

// ReadTransactions reads an export, header included. UserID is left empty.
func ReadTransactions(r io.Reader) ([]*model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var txns []*model.Transaction
	for i, rec := range records[1:] {
		t, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// WriteTransactions writes txns with a header row.
func WriteTransactions(w io.Writer, txns []*model.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, t := range txns {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a transaction to a CSV row.
func MarshalTransaction(t *model.Transaction) []string {
	row := make([]string, numFields)
	row[colDate] = formatDate(t.Date)
	row[colAmount] = t.Amount.String()
	row[colMerchant] = t.Merchant
	row[colCategory] = t.Category
	row[colTags] = strings.Join(t.Tags, tagSep)
	row[colNotes] = t.Notes
	row[colType] = string(t.Type)
	return row
}

// UnmarshalTransaction converts a CSV row to a transaction.
func UnmarshalTransaction(record []string) (*model.Transaction, error) {
	if len(record) != numFields {
		return nil, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := parseDate(record[colDate])
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return nil, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	t := &model.Transaction{
		Date:     date,
		Amount:   amount,
		Merchant: record[colMerchant],
		Category: record[colCategory],
		Notes:    record[colNotes],
		Type:     model.TransactionType(record[colType]),
	}
	for _, tag := range strings.Fields(record[colTags]) {
		t.AddTag(tag)
	}
	return t, nil
}

// formatDate writes a plain date unless t carries a time of day.
func formatDate(t time.Time) string {
	if h, m, s := t.Clock(); h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0 {
		return t.Format(dateFormat)
	}
	return t.Format(time.RFC3339Nano)
}

func parseDate(s string) (time.Time, error) {
	if len(s) == len(dateFormat) {
		d, err := time.Parse(dateFormat, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
		}
		return d, nil
	}
	d, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return d, nil
}
