package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a statement row by its operation type.
type TransactionType string

const (
	TypeUnknown          TransactionType = ""
	TypeCardPayment      TransactionType = "card_payment"
	TypeTransfer         TransactionType = "transfer"
	TypeAccountFee       TransactionType = "account_fee"
	TypeCancelledPayment TransactionType = "cancelled_payment"
	TypeWithdrawal       TransactionType = "withdrawal"
)

// BankAccount describes one side of a bank transfer or the statement's own account.
type BankAccount struct {
	AccountName string `json:"account_name,omitempty"`
	AccountType string `json:"account_type,omitempty"`
	IBAN        string `json:"iban,omitempty"`
	BIC         string `json:"bic,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

// Merchant is the shop or ATM behind a card operation.
type Merchant struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// Counterparty is the other party of a transaction.
type Counterparty struct {
	Name     string       `json:"name,omitempty"`
	Merchant *Merchant    `json:"merchant,omitempty"`
	Bank     *BankAccount `json:"bank,omitempty"`
}

// Details keeps raw statement fields that do not map onto first-class columns.
type Details struct {
	RawType        string           `json:"raw_type,omitempty"`
	Description    string           `json:"description,omitempty"`
	Message        string           `json:"message,omitempty"`
	Location       string           `json:"location,omitempty"`
	PostingDate    time.Time        `json:"posting_date,omitzero"`
	BalanceAfter   *decimal.Decimal `json:"balance_after,omitempty"`
	ConstantSymbol string           `json:"constant_symbol,omitempty"`
	VariableSymbol string           `json:"variable_symbol,omitempty"`
	SpecificSymbol string           `json:"specific_symbol,omitempty"`
}

// Transaction is a normalized bank transaction owned by one user.
type Transaction struct {
	ID       string // assigned by storage
	UserID   string
	Date     time.Time
	Amount   decimal.Decimal // negative = debit, positive = credit
	Merchant string
	Category string   // empty = uncategorized
	Tags     []string // unique, order kept for display
	Notes    string

	Type         TransactionType
	Counterparty *Counterparty
	Account      *BankAccount
	Details      *Details
}

// HasTag reports whether tag is already attached.
func (t *Transaction) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// AddTag attaches tag unless it is already present. Reports whether the tag set changed.
func (t *Transaction) AddTag(tag string) bool {
	if t.HasTag(tag) {
		return false
	}
	t.Tags = append(t.Tags, tag)
	return true
}

// Clone returns a deep copy, so stores can hand out values without sharing tag slices.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	if t.Counterparty != nil {
		cp := *t.Counterparty
		if cp.Merchant != nil {
			m := *cp.Merchant
			cp.Merchant = &m
		}
		if cp.Bank != nil {
			b := *cp.Bank
			cp.Bank = &b
		}
		c.Counterparty = &cp
	}
	if t.Account != nil {
		a := *t.Account
		c.Account = &a
	}
	if t.Details != nil {
		d := *t.Details
		if d.BalanceAfter != nil {
			bal := *d.BalanceAfter
			d.BalanceAfter = &bal
		}
		c.Details = &d
	}
	return &c
}
