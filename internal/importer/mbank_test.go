package importer

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spending-frustration/spending/internal/model"
)

const mbankFixture = "../../testdata/mbank_statement.csv"

func readFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(mbankFixture)
	require.NoError(t, err)
	return string(data)
}

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// header returns a minimal statement preamble ending in the transaction header line.
func header() string {
	return strings.Join([]string{
		"mBank S.A.;",
		"#Mena účtu;",
		"EUR;",
		"#IBAN;",
		"SK31 8360 5207 0042 0000 1234;",
		"#Dátum zaúčtovania transakcie;#Dátum uskutočnenia transakcie;#Popis;#Správa;#Príjemca;#Účet;#KS;#VS;#SS;#Suma;#Zostatok;",
	}, "\n") + "\n"
}

func TestMBankParser_Match(t *testing.T) {
	p := &MBankParser{}
	assert.True(t, p.Match(readFixture(t)))
	assert.True(t, p.Match("mBank S.A.\n#Dátum zaúčtovania transakcie;"))
	assert.False(t, p.Match("#Dátum zaúčtovania transakcie;x;y"))
	assert.False(t, p.Match("mBank S.A. statement without header"))
	assert.False(t, p.Match(""))
}

func TestMBankParser_Parse(t *testing.T) {
	p := &MBankParser{}
	txns, err := p.Parse(readFixture(t), "user-1")
	require.NoError(t, err)
	require.Len(t, txns, 8)

	for _, txn := range txns {
		assert.Equal(t, "user-1", txn.UserID)
		assert.Equal(t, 2024, txn.Date.Year())
		assert.False(t, txn.Amount.IsZero())
		require.NotNil(t, txn.Account)
		assert.Equal(t, "SK3183605207004200001234", txn.Account.IBAN)
		assert.Equal(t, "EUR", txn.Account.Currency)
		assert.NotEmpty(t, txn.Merchant)
	}

	// Shared account descriptor.
	assert.Same(t, txns[0].Account, txns[7].Account)
	assert.Equal(t, "JÁN TESTOVACÍ", txns[0].Account.AccountName)
	assert.Equal(t, "mKonto Business", txns[0].Account.AccountType)
	assert.Equal(t, "BREXSKBX", txns[0].Account.BIC)
}

func TestMBankParser_Amounts(t *testing.T) {
	txns, err := (&MBankParser{}).Parse(readFixture(t), "u")
	require.NoError(t, err)

	want := []string{"-23.40", "1500.00", "-100.00", "-650.00", "-8.90", "8.90", "-2.00", "0.05"}
	require.Len(t, txns, len(want))
	for i, w := range want {
		assert.Equal(t, w, txns[i].Amount.StringFixed(2), "row %d", i)
	}
	require.NotNil(t, txns[1].Details.BalanceAfter)
	assert.Equal(t, "2976.60", txns[1].Details.BalanceAfter.StringFixed(2))
}

func TestMBankParser_CardPayment(t *testing.T) {
	txns, err := (&MBankParser{}).Parse(readFixture(t), "u")
	require.NoError(t, err)

	card := txns[0]
	assert.Equal(t, model.TypeCardPayment, card.Type)
	assert.Equal(t, "LIDL DAKUJEME ZA NAKUP", card.Merchant)
	require.NotNil(t, card.Counterparty)
	require.NotNil(t, card.Counterparty.Merchant)
	assert.Equal(t, "LIDL DAKUJEME ZA NAKUP", card.Counterparty.Merchant.Name)
	assert.Equal(t, "BRATISLAVA", card.Counterparty.Merchant.Location)
	assert.Equal(t, day(2024, 8, 1), card.Date)
	assert.Equal(t, day(2024, 8, 2), card.Details.PostingDate)
	assert.Equal(t, "PLATBA KARTOU", card.Details.RawType)

	bolt := txns[4]
	assert.Equal(t, "BOLT.EU", bolt.Counterparty.Merchant.Name)
	assert.Empty(t, bolt.Counterparty.Merchant.Location)
	assert.Equal(t, day(2024, 8, 14), bolt.Date)
}

func TestMBankParser_Withdrawal(t *testing.T) {
	txns, err := (&MBankParser{}).Parse(readFixture(t), "u")
	require.NoError(t, err)

	w := txns[2]
	assert.Equal(t, model.TypeWithdrawal, w.Type)
	require.NotNil(t, w.Counterparty.Merchant)
	assert.Equal(t, "ATM MBANK", w.Counterparty.Merchant.Name)
	assert.Equal(t, "ZILINA", w.Counterparty.Merchant.Location)
}

func TestMBankParser_Transfers(t *testing.T) {
	txns, err := (&MBankParser{}).Parse(readFixture(t), "u")
	require.NoError(t, err)

	salary := txns[1]
	assert.Equal(t, model.TypeTransfer, salary.Type)
	assert.Equal(t, "ACME S.R.O.", salary.Merchant)
	require.NotNil(t, salary.Counterparty.Bank)
	assert.Equal(t, "SK8911000000002987654321", salary.Counterparty.Bank.IBAN)
	assert.Equal(t, "ACME S.R.O.", salary.Counterparty.Bank.AccountName)
	assert.Equal(t, "VYPLATA 08/2024", salary.Details.Message)
	assert.Equal(t, "0308", salary.Details.ConstantSymbol)
	assert.Equal(t, "202408", salary.Details.VariableSymbol)

	standing := txns[3]
	assert.Equal(t, model.TypeTransfer, standing.Type)
	assert.Equal(t, "12345", standing.Details.VariableSymbol)
}

func TestMBankParser_FeeCancelledUnknown(t *testing.T) {
	txns, err := (&MBankParser{}).Parse(readFixture(t), "u")
	require.NoError(t, err)

	cancelled := txns[5]
	assert.Equal(t, model.TypeCancelledPayment, cancelled.Type)
	assert.Equal(t, "BOLT.EU", cancelled.Merchant)

	fee := txns[6]
	assert.Equal(t, model.TypeAccountFee, fee.Type)
	require.NotNil(t, fee.Counterparty.Bank)
	assert.Equal(t, "mBank", fee.Counterparty.Bank.AccountName)
	assert.Equal(t, "mBank", fee.Merchant)

	interest := txns[7]
	assert.Equal(t, model.TypeUnknown, interest.Type)
	assert.Nil(t, interest.Counterparty)
	assert.Equal(t, "KREDITNÝ ÚROK", interest.Merchant)
	assert.Equal(t, "ÚROK", interest.Details.RawType)
}

func TestMBankParser_ShortRowsSkipped(t *testing.T) {
	data := header() +
		"02-08-2024;01-08-2024;\"ÚROK\";\"X\";\"\";'';;;;1,00;1,00;\n" +
		"too;short;row\n" +
		";\n"
	txns, err := (&MBankParser{}).Parse(data, "u")
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestMBankParser_ThousandsSeparators(t *testing.T) {
	data := header() +
		"02-08-2024;02-08-2024;\"ÚROK\";\"X\";\"\";'';;;;-12 345,67;1 000,00;\n"
	txns, err := (&MBankParser{}).Parse(data, "u")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "-12345.67", txns[0].Amount.StringFixed(2))
	assert.Equal(t, "1000.00", txns[0].Details.BalanceAfter.StringFixed(2))
}

func TestMBankParser_CardDescription(t *testing.T) {
	tests := []struct {
		desc     string
		merchant string
		location string
	}{
		{"LIDL DAKUJEME ZA NAKUP  / BRATISLAVA       DÁTUM VYKONANIA TRANSAKCIE: 2024-08-01", "LIDL DAKUJEME ZA NAKUP", "BRATISLAVA"},
		{"A/S SHOP / BRATISLAVA DÁTUM VYKONANIA TRANSAKCIE: 2024-08-01", "A/S SHOP", "BRATISLAVA"},
		{"X / Y / Z DÁTUM VYKONANIA TRANSAKCIE: 2024-08-01", "X / Y", "Z"},
		{"SHOP/CITY DÁTUM VYKONANIA TRANSAKCIE: 2024-08-01", "SHOP/CITY", ""},
		{"BOLT.EU DÁTUM VYKONANIA TRANSAKCIE: 2024-08-01", "BOLT.EU", ""},
	}
	for _, tt := range tests {
		t.Run(tt.merchant, func(t *testing.T) {
			data := header() + "02-08-2024;01-08-2024;\"PLATBA KARTOU\";\"" + tt.desc + "\";\"\";'';;;;-1,00;1,00;\n"
			txns, err := (&MBankParser{}).Parse(data, "u")
			require.NoError(t, err)
			require.Len(t, txns, 1)
			assert.Equal(t, tt.merchant, txns[0].Merchant)
			require.NotNil(t, txns[0].Counterparty)
			assert.Equal(t, tt.location, txns[0].Counterparty.Merchant.Location)
		})
	}
}

func TestMBankParser_FormatErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			name: "missing metadata",
			data: "mBank S.A.;\n#Mena účtu;\nEUR;\n#Dátum zaúčtovania transakcie;\n",
			want: "missing account IBAN",
		},
		{
			name: "bad card description",
			data: header() + "02-08-2024;01-08-2024;\"PLATBA KARTOU\";\"LIDL BRATISLAVA\";\"\";'';;;;-1,00;1,00;\n",
			want: "card payment description",
		},
		{
			name: "bad date",
			data: header() + "2024-08-02;;\"ÚROK\";\"X\";\"\";'';;;;1,00;1,00;\n",
			want: "parsing posting date",
		},
		{
			name: "bad amount",
			data: header() + "02-08-2024;;\"ÚROK\";\"X\";\"\";'';;;;abc;1,00;\n",
			want: "parsing amount",
		},
		{
			name: "no header",
			data: "mBank S.A.; #Dátum zaúčtovania transakcie appears mid-line\n",
			want: "transaction header not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&MBankParser{}).Parse(tt.data, "u")
			require.Error(t, err)
			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "mbank", fe.Format)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMBankParser_BadCardRowPoisonsFile(t *testing.T) {
	data := header() +
		"02-08-2024;01-08-2024;\"ÚROK\";\"X\";\"\";'';;;;1,00;1,00;\n" +
		"03-08-2024;03-08-2024;\"PLATBA KARTOU\";\"NO DATE HERE\";\"\";'';;;;-1,00;0,00;\n"
	txns, err := (&MBankParser{}).Parse(data, "u")
	assert.Nil(t, txns)

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 8, fe.Line)
}

func TestMBankParser_NotMBank(t *testing.T) {
	_, err := (&MBankParser{}).Parse("hello", "u")
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestMBankParser_CRLF(t *testing.T) {
	data := strings.ReplaceAll(readFixture(t), "\n", "\r\n")
	txns, err := (&MBankParser{}).Parse(data, "u")
	require.NoError(t, err)
	assert.Len(t, txns, 8)
	assert.Equal(t, "BREXSKBX", txns[0].Account.BIC)
}

func TestParseAmount(t *testing.T) {
	tests := map[string]string{
		"-23,40":     "-23.40",
		"1 500,00":   "1500.00",
		" 0,05 ":     "0.05",
		"12":         "12.00",
		"-1 234 567": "-1234567.00",
	}
	for in, want := range tests {
		got, err := parseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.StringFixed(2), in)
	}

	_, err := parseAmount("   ")
	assert.Error(t, err)
}
