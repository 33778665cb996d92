package importer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spending-frustration/spending/internal/model"
)

// MBankParser parses mBank SK semicolon-separated statement exports.
type MBankParser struct{}

const (
	mbankHeaderMarker = "#Dátum zaúčtovania transakcie"
	mbankBankMarker   = "mBank S.A."
	mbankDateFormat   = "02-01-2006"
	mbankExecFormat   = "2006-01-02"
	mbankNumFields    = 11

	mbankColPostingDate = 0
	mbankColTxnDate     = 1
	mbankColOperation   = 2
	mbankColDescription = 3
	mbankColParty       = 4
	mbankColAccount     = 5
	mbankColKS          = 6
	mbankColVS          = 7
	mbankColSS          = 8
	mbankColAmount      = 9
	mbankColBalance     = 10

	mbankExecMarker = "DÁTUM VYKONANIA TRANSAKCIE"
	mbankName       = "mBank"
	unknownMerchant = "UNKNOWN"
)

type mbankState int

const (
	stateIterate mbankState = iota
	stateClient
	stateAccountType
	stateCurrency
	stateIBAN
	stateBIC
	stateTransactions
)

var mbankMarkers = []struct {
	prefix string
	state  mbankState
}{
	{"#Klient", stateClient},
	{"#Typ účtu", stateAccountType},
	{"#Mena účtu", stateCurrency},
	{"#IBAN", stateIBAN},
	{"#BIC", stateBIC},
}

// cardDescription is the card-payment description sub-format:
// "<merchant> [/ <location>] DÁTUM VYKONANIA TRANSAKCIE: YYYY-MM-DD".
// The location follows the last " / "; a bare "/" stays in the merchant name.
var cardDescription = regexp.MustCompile(`^(.+?)(?:\s+/\s+([^/]*?))?\s+` + mbankExecMarker + `:\s*(\d{4}-\d{2}-\d{2})$`)

// classifier fills the type-specific parts of a transaction.
type classifier func(row *mbankRow, t *model.Transaction) error

var mbankClassifiers = map[string]classifier{
	"PLATBA KARTOU":                classifyCardPayment,
	"VÝBER Z BANKOMATU":            classifyWithdrawal,
	"PREVOD V RÁMCI MBANK":         classifyTransfer,
	"MEDZIBANKOVÝ PREVOD":          classifyTransfer,
	"PRIJATÝ PREVOD V RÁMCI MBANK": classifyTransfer,
	"PRIJATÝ MEDZIBANKOVÝ PREVOD":  classifyTransfer,
	"TRVALÝ PRÍKAZ":                classifyTransfer,
	"SEPA PREVOD":                  classifyTransfer,
	"POPLATOK":                     classifyAccountFee,
	"POPLATOK ZA VEDENIE ÚČTU":     classifyAccountFee,
	"ZRUŠENIE PLATBY KARTOU":       classifyCancelled,
	"ZRUŠENÁ PLATBA":               classifyCancelled,
}

// Format returns the parser name.
func (p *MBankParser) Format() string { return "mbank" }

// Match reports whether data looks like an mBank statement.
func (p *MBankParser) Match(data string) bool {
	return strings.Contains(data, mbankHeaderMarker) && strings.Contains(data, mbankBankMarker)
}

// mbankStatement is the parse state of one statement.
type mbankStatement struct {
	userID      string
	state       mbankState
	client      string
	accountType string
	currency    string
	iban        string
	bic         string
	account     *model.BankAccount
}

// mbankRow holds the cleaned fields of one data line.
type mbankRow struct {
	line   int
	fields []string
}

func (r *mbankRow) get(col int) string { return r.fields[col] }

// Parse reads an mBank statement. Rows with fewer than 11 fields are skipped;
// any other malformed row fails the whole statement.
func (p *MBankParser) Parse(data, userID string) ([]*model.Transaction, error) {
	if !p.Match(data) {
		return nil, &FormatError{Format: p.Format(), Msg: "missing mBank statement markers"}
	}

	st := &mbankStatement{userID: userID}
	var txns []*model.Transaction
	for i, line := range strings.Split(data, "\n") {
		lineNo := i + 1
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		switch st.state {
		case stateIterate:
			if err := st.iterate(line, lineNo); err != nil {
				return nil, err
			}
		case stateClient, stateAccountType, stateCurrency, stateIBAN, stateBIC:
			st.capture(line)
		case stateTransactions:
			t, err := st.parseRow(line, lineNo)
			if err != nil {
				return nil, err
			}
			if t != nil {
				txns = append(txns, t)
			}
		}
	}

	if st.state != stateTransactions {
		return nil, &FormatError{Format: p.Format(), Msg: "transaction header not found"}
	}
	return txns, nil
}

func (st *mbankStatement) iterate(line string, lineNo int) error {
	if strings.HasPrefix(line, mbankHeaderMarker) {
		if err := st.buildAccount(lineNo); err != nil {
			return err
		}
		st.state = stateTransactions
		return nil
	}
	for _, m := range mbankMarkers {
		if strings.HasPrefix(line, m.prefix) {
			st.state = m.state
			return nil
		}
	}
	return nil
}

// capture stores the metadata value for the current state. Lines that are
// empty once separators are trimmed do not count.
func (st *mbankStatement) capture(line string) {
	value := cleanField(strings.TrimRight(strings.TrimSpace(line), "; \t"))
	if value == "" {
		return
	}
	switch st.state {
	case stateClient:
		st.client = value
	case stateAccountType:
		st.accountType = value
	case stateCurrency:
		st.currency = value
	case stateIBAN:
		st.iban = compactIBAN(value)
	case stateBIC:
		st.bic = value
	}
	st.state = stateIterate
}

func (st *mbankStatement) buildAccount(lineNo int) error {
	if st.account != nil {
		return nil
	}
	var missing []string
	if st.currency == "" {
		missing = append(missing, "currency")
	}
	if st.iban == "" {
		missing = append(missing, "IBAN")
	}
	if len(missing) > 0 {
		return &FormatError{
			Format: "mbank",
			Line:   lineNo,
			Msg:    "missing account " + strings.Join(missing, " and "),
		}
	}
	st.account = &model.BankAccount{
		AccountName: st.client,
		AccountType: st.accountType,
		IBAN:        st.iban,
		BIC:         st.bic,
		Currency:    st.currency,
	}
	return nil
}

// parseRow returns nil, nil for lines that are not transaction rows.
func (st *mbankStatement) parseRow(line string, lineNo int) (*model.Transaction, error) {
	if strings.HasPrefix(line, "#") {
		return nil, nil
	}
	parts := strings.Split(line, ";")
	if len(parts) < mbankNumFields {
		return nil, nil
	}
	row := &mbankRow{line: lineNo, fields: make([]string, len(parts))}
	for i, part := range parts {
		row.fields[i] = cleanField(part)
	}
	if row.get(mbankColPostingDate) == "" {
		return nil, nil
	}

	fail := func(format string, args ...any) error {
		return &FormatError{Format: "mbank", Line: lineNo, Msg: fmt.Sprintf(format, args...)}
	}

	posting, err := time.Parse(mbankDateFormat, row.get(mbankColPostingDate))
	if err != nil {
		return nil, fail("parsing posting date %q: %v", row.get(mbankColPostingDate), err)
	}
	date := posting
	if raw := row.get(mbankColTxnDate); raw != "" {
		date, err = time.Parse(mbankDateFormat, raw)
		if err != nil {
			return nil, fail("parsing transaction date %q: %v", raw, err)
		}
	}
	amount, err := parseAmount(row.get(mbankColAmount))
	if err != nil {
		return nil, fail("parsing amount %q: %v", row.get(mbankColAmount), err)
	}

	details := &model.Details{
		RawType:        row.get(mbankColOperation),
		Description:    row.get(mbankColDescription),
		PostingDate:    posting,
		ConstantSymbol: row.get(mbankColKS),
		VariableSymbol: row.get(mbankColVS),
		SpecificSymbol: row.get(mbankColSS),
	}
	if raw := row.get(mbankColBalance); raw != "" {
		bal, err := parseAmount(raw)
		if err != nil {
			return nil, fail("parsing balance %q: %v", raw, err)
		}
		details.BalanceAfter = &bal
	}

	t := &model.Transaction{
		UserID:  st.userID,
		Date:    date,
		Amount:  amount,
		Account: st.account,
		Details: details,
	}

	if classify, ok := mbankClassifiers[normalizeOperation(row.get(mbankColOperation))]; ok {
		if err := classify(row, t); err != nil {
			return nil, fail("%v", err)
		}
	}
	if t.Merchant == "" {
		t.Merchant = fallbackMerchant(row)
	}
	return t, nil
}

func classifyCardPayment(row *mbankRow, t *model.Transaction) error {
	desc := row.get(mbankColDescription)
	m := cardDescription.FindStringSubmatch(desc)
	if m == nil {
		return fmt.Errorf("card payment description %q does not match the expected format", desc)
	}
	executed, err := time.Parse(mbankExecFormat, m[3])
	if err != nil {
		return fmt.Errorf("parsing execution date %q: %w", m[3], err)
	}

	name := collapseSpaces(m[1])
	location := collapseSpaces(m[2])
	t.Type = model.TypeCardPayment
	t.Date = executed
	t.Merchant = name
	t.Counterparty = &model.Counterparty{
		Name:     name,
		Merchant: &model.Merchant{Name: name, Location: location},
	}
	t.Details.Location = location
	return nil
}

func classifyWithdrawal(row *mbankRow, t *model.Transaction) error {
	if err := classifyCardPayment(row, t); err != nil {
		return err
	}
	t.Type = model.TypeWithdrawal
	return nil
}

func classifyTransfer(row *mbankRow, t *model.Transaction) error {
	name := collapseSpaces(row.get(mbankColParty))
	t.Type = model.TypeTransfer
	t.Merchant = name
	t.Counterparty = &model.Counterparty{
		Name: name,
		Bank: &model.BankAccount{
			AccountName: name,
			IBAN:        compactIBAN(row.get(mbankColAccount)),
		},
	}
	t.Details.Message = row.get(mbankColDescription)
	return nil
}

func classifyAccountFee(_ *mbankRow, t *model.Transaction) error {
	t.Type = model.TypeAccountFee
	t.Merchant = mbankName
	t.Counterparty = &model.Counterparty{
		Name: mbankName,
		Bank: &model.BankAccount{AccountName: mbankName},
	}
	return nil
}

func classifyCancelled(row *mbankRow, t *model.Transaction) error {
	t.Type = model.TypeCancelledPayment
	t.Merchant = fallbackMerchant(row)
	t.Counterparty = &model.Counterparty{Name: t.Merchant}
	return nil
}

// fallbackMerchant picks the counterparty, then the description up to the
// execution-date marker, then the operation type.
func fallbackMerchant(row *mbankRow) string {
	if party := collapseSpaces(row.get(mbankColParty)); party != "" {
		return party
	}
	desc, _, _ := strings.Cut(row.get(mbankColDescription), mbankExecMarker)
	if desc = strings.Trim(collapseSpaces(desc), " /"); desc != "" {
		return desc
	}
	if op := collapseSpaces(row.get(mbankColOperation)); op != "" {
		return op
	}
	return unknownMerchant
}

// parseAmount handles "1 234,56": space or NBSP thousands, comma decimal.
func parseAmount(raw string) (decimal.Decimal, error) {
	s := strings.NewReplacer(" ", "", "\u00a0", "", ",", ".").Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(s)
}

func cleanField(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `'"`))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func compactIBAN(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func normalizeOperation(s string) string {
	return strings.ToUpper(collapseSpaces(s))
}
