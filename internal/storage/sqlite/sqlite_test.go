package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spending-frustration/spending/internal/model"
)

func day(d int) time.Time { return time.Date(2024, 8, d, 0, 0, 0, 0, time.UTC) }

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "spending.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_MigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spending.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestRules_CRUD(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	a, err := s.AddRule(ctx, "u1", "amount > 1 -> #a", true)
	require.NoError(t, err)
	b, err := s.AddRule(ctx, "u1", "amount > 2 -> #b", false)
	require.NoError(t, err)
	_, err = s.AddRule(ctx, "u2", "amount > 3 -> #c", true)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 2, b.Position)

	recs, err := s.UserRules(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, a, recs[0])
	assert.False(t, recs[1].Active)

	b.Active = true
	b.Text = "amount > 20 -> #b"
	require.NoError(t, s.UpdateRule(ctx, b))
	got, err := s.Rule(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	require.NoError(t, s.DeleteRule(ctx, "u1", a.ID))
	recs, err = s.UserRules(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, b.ID, recs[0].ID)
}

func TestRules_Ownership(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	rec, err := s.AddRule(ctx, "u1", "amount > 1 -> #a", true)
	require.NoError(t, err)

	_, err = s.Rule(ctx, "u2", rec.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)
	assert.ErrorIs(t, s.DeleteRule(ctx, "u2", rec.ID), model.ErrForbidden)
	assert.ErrorIs(t, s.DeleteRule(ctx, "u1", "missing"), model.ErrRuleNotFound)
}

func TestAddRules(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	_, err := s.AddRule(ctx, "u1", "amount > 0 -> #first", true)
	require.NoError(t, err)

	recs, err := s.AddRules(ctx, "u1", []model.RuleRecord{
		{Text: "amount > 1 -> #a", Active: true},
		{Text: "amount > 2 -> #b"},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, recs[0].Position)
	assert.Equal(t, 3, recs[1].Position)

	stored, err := s.UserRules(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.True(t, stored[1].Active)
	assert.False(t, stored[2].Active)
}

func TestTransactions_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	bal := decimal.RequireFromString("1476.60")
	account := &model.BankAccount{AccountName: "JAN", IBAN: "SK31", Currency: "EUR"}
	orig := &model.Transaction{
		UserID:   "u1",
		Date:     day(1),
		Amount:   decimal.RequireFromString("-23.40"),
		Merchant: "LIDL",
		Category: "groceries",
		Tags:     []string{"food", "weekly"},
		Notes:    "n",
		Type:     model.TypeCardPayment,
		Counterparty: &model.Counterparty{
			Name:     "LIDL",
			Merchant: &model.Merchant{Name: "LIDL", Location: "BRATISLAVA"},
		},
		Account: account,
		Details: &model.Details{
			RawType:      "PLATBA KARTOU",
			PostingDate:  day(2),
			BalanceAfter: &bal,
		},
	}
	require.NoError(t, s.Save(ctx, orig))
	require.NotEmpty(t, orig.ID)

	got, err := s.Transaction(ctx, "u1", orig.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(orig.Amount))
	assert.Equal(t, day(1), got.Date)
	assert.Equal(t, orig.Tags, got.Tags)
	assert.Equal(t, orig.Counterparty, got.Counterparty)
	assert.Equal(t, orig.Account, got.Account)
	require.NotNil(t, got.Details)
	assert.True(t, got.Details.PostingDate.Equal(day(2)))
	assert.True(t, got.Details.BalanceAfter.Equal(bal))
	assert.Equal(t, model.TypeCardPayment, got.Type)
}

func TestTransactions_KeepTimeOfDay(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	cet := time.FixedZone("CET", 3600)
	evening := time.Date(2024, 8, 1, 21, 15, 0, 0, cet)
	morning := time.Date(2024, 8, 1, 8, 5, 30, 500, time.UTC)
	txns := []*model.Transaction{
		{UserID: "u1", Date: evening, Merchant: "late"},
		{UserID: "u1", Date: morning, Merchant: "early"},
	}
	require.NoError(t, s.SaveMany(ctx, txns))

	got, err := s.Transactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].Merchant)
	assert.True(t, got[0].Date.Equal(morning))
	assert.True(t, got[1].Date.Equal(evening))
}

func TestTransactions_OrderAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	txns := []*model.Transaction{
		{UserID: "u1", Date: day(3), Merchant: "c"},
		{UserID: "u1", Date: day(1), Merchant: "a"},
		{UserID: "u1", Date: day(3), Merchant: "d"},
		{UserID: "u2", Date: day(2), Merchant: "other"},
	}
	require.NoError(t, s.SaveMany(ctx, txns))

	got, err := s.Transactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "c", "d"}, []string{got[0].Merchant, got[1].Merchant, got[2].Merchant})
	assert.Nil(t, got[0].Tags)
	assert.Nil(t, got[0].Counterparty)

	got[1].Category = "x"
	require.NoError(t, s.Save(ctx, got[1]))
	again, err := s.Transaction(ctx, "u1", got[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "x", again.Category)
}

func TestTransactions_Errors(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	txn := &model.Transaction{UserID: "u1", Date: day(1)}
	require.NoError(t, s.Save(ctx, txn))

	_, err := s.Transaction(ctx, "u2", txn.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)
	_, err = s.Transaction(ctx, "u1", "nope")
	assert.ErrorIs(t, err, model.ErrTransactionNotFound)

	stolen := txn.Clone()
	stolen.UserID = "u2"
	assert.ErrorIs(t, s.Save(ctx, stolen), model.ErrForbidden)

	fresh := &model.Transaction{UserID: "u1", Date: day(2)}
	err = s.SaveMany(ctx, []*model.Transaction{fresh, {ID: "ghost", UserID: "u1"}})
	assert.ErrorIs(t, err, model.ErrTransactionNotFound)
	assert.Empty(t, fresh.ID)

	all, err := s.Transactions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCategoriesAndTags(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.SaveMany(ctx, []*model.Transaction{
		{UserID: "u1", Date: day(1), Category: "groceries", Tags: []string{"food", "weekly"}},
		{UserID: "u1", Date: day(2), Category: "transport", Tags: []string{"food"}},
		{UserID: "u1", Date: day(3)},
		{UserID: "u2", Date: day(4), Category: "secret", Tags: []string{"hidden"}},
	}))

	cats, err := s.Categories(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"groceries", "transport"}, cats)

	tags, err := s.Tags(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"food", "weekly"}, tags)

	none, err := s.Tags(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
