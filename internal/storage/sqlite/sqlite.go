// Package sqlite stores rules and transactions in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spending-frustration/spending/internal/model"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width UTC so the date column sorts as text.
const (
	timeFormat = "2006-01-02T15:04:05.000000000Z"
	dateFormat = "2006-01-02"
)

// Store is a SQLite-backed rule and transaction store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(path); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// AddRule appends a rule to the user's list.
func (s *Store) AddRule(ctx context.Context, userID, text string, active bool) (model.RuleRecord, error) {
	var rec model.RuleRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		rec, err = insertRule(ctx, tx, userID, text, active)
		return err
	})
	return rec, err
}

// AddRules appends several rules in one transaction. Only Text and Active of
// each draft are used.
func (s *Store) AddRules(ctx context.Context, userID string, drafts []model.RuleRecord) ([]model.RuleRecord, error) {
	recs := make([]model.RuleRecord, 0, len(drafts))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, d := range drafts {
			rec, err := insertRule(ctx, tx, userID, d.Text, d.Active)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func insertRule(ctx context.Context, tx *sql.Tx, userID, text string, active bool) (model.RuleRecord, error) {
	var pos int
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM rules WHERE user_id = ?`, userID).Scan(&pos)
	if err != nil {
		return model.RuleRecord{}, fmt.Errorf("next rule position: %w", err)
	}

	rec := model.RuleRecord{
		ID:       uuid.NewString(),
		UserID:   userID,
		Text:     text,
		Active:   active,
		Position: pos,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO rules (id, user_id, text, active, position) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Text, rec.Active, rec.Position)
	if err != nil {
		return model.RuleRecord{}, fmt.Errorf("insert rule: %w", err)
	}
	return rec, nil
}

// UserRules returns the user's rules in insertion order.
func (s *Store) UserRules(ctx context.Context, userID string) ([]model.RuleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, text, active, position FROM rules WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var recs []model.RuleRecord
	for rows.Next() {
		var rec model.RuleRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Text, &rec.Active, &rec.Position); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Rule returns one rule owned by userID.
func (s *Store) Rule(ctx context.Context, userID, id string) (model.RuleRecord, error) {
	var rec model.RuleRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, text, active, position FROM rules WHERE id = ?`, id).
		Scan(&rec.ID, &rec.UserID, &rec.Text, &rec.Active, &rec.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RuleRecord{}, fmt.Errorf("rule %s: %w", id, model.ErrRuleNotFound)
	}
	if err != nil {
		return model.RuleRecord{}, fmt.Errorf("query rule: %w", err)
	}
	if rec.UserID != userID {
		return model.RuleRecord{}, fmt.Errorf("rule %s: %w", id, model.ErrForbidden)
	}
	return rec, nil
}

// UpdateRule replaces the text and active flag of an existing rule.
func (s *Store) UpdateRule(ctx context.Context, rec model.RuleRecord) error {
	if _, err := s.Rule(ctx, rec.UserID, rec.ID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE rules SET text = ?, active = ? WHERE id = ?`, rec.Text, rec.Active, rec.ID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return nil
}

// DeleteRule removes a rule owned by userID.
func (s *Store) DeleteRule(ctx context.Context, userID, id string) error {
	if _, err := s.Rule(ctx, userID, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

// Save inserts t when it has no ID, assigning one, or updates the stored row.
func (s *Store) Save(ctx context.Context, t *model.Transaction) error {
	return s.SaveMany(ctx, []*model.Transaction{t})
}

// SaveMany saves every transaction in one database transaction.
// IDs are only assigned once the commit succeeds.
func (s *Store) SaveMany(ctx context.Context, txns []*model.Transaction) error {
	ids := make([]string, len(txns))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i, t := range txns {
			row, err := encodeTransaction(t)
			if err != nil {
				return err
			}
			if t.ID == "" {
				ids[i] = uuid.NewString()
				if err := insertTransaction(ctx, tx, ids[i], row); err != nil {
					return err
				}
				continue
			}
			if err := updateTransaction(ctx, tx, t.ID, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i, id := range ids {
		if id != "" {
			txns[i].ID = id
		}
	}
	return nil
}

// txnRow is a transaction in column form.
type txnRow struct {
	userID       string
	date         string
	amount       string
	merchant     string
	category     string
	tags         string
	notes        string
	typ          string
	counterparty sql.NullString
	account      sql.NullString
	details      sql.NullString
}

func encodeTransaction(t *model.Transaction) (txnRow, error) {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return txnRow{}, fmt.Errorf("encode tags: %w", err)
	}
	row := txnRow{
		userID:   t.UserID,
		date:     t.Date.UTC().Format(timeFormat),
		amount:   t.Amount.String(),
		merchant: t.Merchant,
		category: t.Category,
		tags:     string(tagsJSON),
		notes:    t.Notes,
		typ:      string(t.Type),
	}
	if row.counterparty, err = encodeOptional(t.Counterparty); err != nil {
		return txnRow{}, fmt.Errorf("encode counterparty: %w", err)
	}
	if row.account, err = encodeOptional(t.Account); err != nil {
		return txnRow{}, fmt.Errorf("encode account: %w", err)
	}
	if row.details, err = encodeOptional(t.Details); err != nil {
		return txnRow{}, fmt.Errorf("encode details: %w", err)
	}
	return row, nil
}

func encodeOptional[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeOptional[T any](s sql.NullString) (*T, error) {
	if !s.Valid {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal([]byte(s.String), v); err != nil {
		return nil, err
	}
	return v, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, id string, r txnRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions
			(id, user_id, date, amount, merchant, category, tags, notes, type, counterparty, account, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.userID, r.date, r.amount, r.merchant, r.category, r.tags, r.notes, r.typ,
		r.counterparty, r.account, r.details)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func updateTransaction(ctx context.Context, tx *sql.Tx, id string, r txnRow) error {
	var owner string
	err := tx.QueryRowContext(ctx, `SELECT user_id FROM transactions WHERE id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("transaction %s: %w", id, model.ErrTransactionNotFound)
	}
	if err != nil {
		return fmt.Errorf("query transaction owner: %w", err)
	}
	if owner != r.userID {
		return fmt.Errorf("transaction %s: %w", id, model.ErrForbidden)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE transactions SET
			date = ?, amount = ?, merchant = ?, category = ?, tags = ?, notes = ?, type = ?,
			counterparty = ?, account = ?, details = ?
		WHERE id = ?`,
		r.date, r.amount, r.merchant, r.category, r.tags, r.notes, r.typ,
		r.counterparty, r.account, r.details, id)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

const selectTransactions = `
	SELECT id, user_id, date, amount, merchant, category, tags, notes, type, counterparty, account, details
	FROM transactions`

// Transactions returns the user's transactions by date, then insertion.
func (s *Store) Transactions(ctx context.Context, userID string) ([]*model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, selectTransactions+` WHERE user_id = ? ORDER BY date, seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// Transaction returns one transaction owned by userID.
func (s *Store) Transaction(ctx context.Context, userID, id string) (*model.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx, selectTransactions+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, model.ErrTransactionNotFound)
	}
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, fmt.Errorf("transaction %s: %w", id, model.ErrForbidden)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(sc scanner) (*model.Transaction, error) {
	var (
		t                 model.Transaction
		r                 txnRow
		cpty, acct, dtail sql.NullString
	)
	err := sc.Scan(&t.ID, &t.UserID, &r.date, &r.amount, &t.Merchant, &t.Category,
		&r.tags, &t.Notes, &r.typ, &cpty, &acct, &dtail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	layout := timeFormat
	if len(r.date) == len(dateFormat) {
		layout = dateFormat
	}
	if t.Date, err = time.Parse(layout, r.date); err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", r.date, err)
	}
	if t.Amount, err = decimal.NewFromString(r.amount); err != nil {
		return nil, fmt.Errorf("parsing amount %q: %w", r.amount, err)
	}
	if err := json.Unmarshal([]byte(r.tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if len(t.Tags) == 0 {
		t.Tags = nil
	}
	t.Type = model.TransactionType(r.typ)
	if t.Counterparty, err = decodeOptional[model.Counterparty](cpty); err != nil {
		return nil, fmt.Errorf("decode counterparty: %w", err)
	}
	if t.Account, err = decodeOptional[model.BankAccount](acct); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	if t.Details, err = decodeOptional[model.Details](dtail); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return &t, nil
}

// Categories returns the distinct non-empty categories of the user, sorted.
func (s *Store) Categories(ctx context.Context, userID string) ([]string, error) {
	return s.queryStrings(ctx, `
		SELECT DISTINCT category FROM transactions
		WHERE user_id = ? AND category != ''
		ORDER BY category`, userID)
}

// Tags returns the distinct tags of the user, sorted.
func (s *Store) Tags(ctx context.Context, userID string) ([]string, error) {
	return s.queryStrings(ctx, `
		SELECT DISTINCT j.value FROM transactions t, json_each(t.tags) j
		WHERE t.user_id = ?
		ORDER BY j.value`, userID)
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
