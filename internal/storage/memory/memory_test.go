package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spending-frustration/spending/internal/model"
)

func day(d int) time.Time { return time.Date(2024, 8, d, 0, 0, 0, 0, time.UTC) }

func TestRules_CRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, err := s.AddRule(ctx, "u1", "amount > 1 -> #a", true)
	require.NoError(t, err)
	b, err := s.AddRule(ctx, "u1", "amount > 2 -> #b", false)
	require.NoError(t, err)
	_, err = s.AddRule(ctx, "u2", "amount > 3 -> #c", true)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Less(t, a.Position, b.Position)

	recs, err := s.UserRules(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "amount > 1 -> #a", recs[0].Text)
	assert.False(t, recs[1].Active)

	b.Active = true
	b.Text = "amount > 20 -> #b"
	require.NoError(t, s.UpdateRule(ctx, b))
	got, err := s.Rule(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, "amount > 20 -> #b", got.Text)

	require.NoError(t, s.DeleteRule(ctx, "u1", a.ID))
	recs, err = s.UserRules(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRules_Ownership(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec, err := s.AddRule(ctx, "u1", "amount > 1 -> #a", true)
	require.NoError(t, err)

	_, err = s.Rule(ctx, "u2", rec.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)
	assert.ErrorIs(t, s.DeleteRule(ctx, "u2", rec.ID), model.ErrForbidden)
	assert.ErrorIs(t, s.DeleteRule(ctx, "u1", "missing"), model.ErrRuleNotFound)

	rec.UserID = "u2"
	assert.ErrorIs(t, s.UpdateRule(ctx, rec), model.ErrForbidden)
}

func TestAddRules(t *testing.T) {
	ctx := context.Background()
	s := New()
	recs, err := s.AddRules(ctx, "u1", []model.RuleRecord{
		{Text: "amount > 1 -> #a", Active: true},
		{Text: "amount > 2 -> #b"},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Active)
	assert.False(t, recs[1].Active)

	stored, err := s.UserRules(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, recs, stored)
}

func TestTransactions_SaveAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	txns := []*model.Transaction{
		{UserID: "u1", Date: day(3), Amount: decimal.NewFromInt(-3), Merchant: "c"},
		{UserID: "u1", Date: day(1), Amount: decimal.NewFromInt(-1), Merchant: "a"},
		{UserID: "u1", Date: day(3), Amount: decimal.NewFromInt(-4), Merchant: "d"},
		{UserID: "u2", Date: day(2), Amount: decimal.NewFromInt(-2), Merchant: "other"},
	}
	require.NoError(t, s.SaveMany(ctx, txns))
	for _, txn := range txns {
		assert.NotEmpty(t, txn.ID)
	}

	got, err := s.Transactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Merchant)
	assert.Equal(t, "c", got[1].Merchant)
	assert.Equal(t, "d", got[2].Merchant)

	// Returned values are copies.
	got[0].Tags = append(got[0].Tags, "x")
	again, err := s.Transaction(ctx, "u1", got[0].ID)
	require.NoError(t, err)
	assert.Empty(t, again.Tags)
}

func TestTransactions_Update(t *testing.T) {
	ctx := context.Background()
	s := New()
	txn := &model.Transaction{UserID: "u1", Date: day(1), Merchant: "LIDL"}
	require.NoError(t, s.Save(ctx, txn))

	txn.Category = "groceries"
	txn.Tags = []string{"food"}
	require.NoError(t, s.Save(ctx, txn))

	got, err := s.Transaction(ctx, "u1", txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "groceries", got.Category)

	all, err := s.Transactions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTransactions_Errors(t *testing.T) {
	ctx := context.Background()
	s := New()
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
}

func TestCategoriesAndTags(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.SaveMany(ctx, []*model.Transaction{
		{UserID: "u1", Category: "groceries", Tags: []string{"food", "weekly"}},
		{UserID: "u1", Category: "transport", Tags: []string{"food"}},
		{UserID: "u1"},
		{UserID: "u2", Category: "secret", Tags: []string{"hidden"}},
	}))

	cats, err := s.Categories(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"groceries", "transport"}, cats)

	tags, err := s.Tags(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"food", "weekly"}, tags)
}
