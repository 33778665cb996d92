package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spending-frustration/spending/internal/logger"
	"github.com/spending-frustration/spending/internal/model"
	"github.com/spending-frustration/spending/internal/rules"
)

// Parser converts statement text into transactions owned by userID.
type Parser interface {
	Format() string
	Match(data string) bool
	Parse(data, userID string) ([]*model.Transaction, error)
}

// Registry holds named parsers in registration order.
type Registry struct {
	parsers map[string]Parser
	order   []Parser
}

// FileInfo describes a statement file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
	r.order = append(r.order, p)
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Detect returns the first registered parser that matches data.
func (r *Registry) Detect(data string) (Parser, error) {
	for _, p := range r.order {
		if p.Match(data) {
			return p, nil
		}
	}
	return nil, ErrUnknownFormat
}

// Formats lists registered format names in registration order.
func (r *Registry) Formats() []string {
	names := make([]string, len(r.order))
	for i, p := range r.order {
		names[i] = p.Format()
	}
	return names
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&MBankParser{})
	r.Register(&CSVParser{})
	return r
}

// TransactionStore persists transactions. SaveMany assigns IDs to new records.
type TransactionStore interface {
	Save(ctx context.Context, t *model.Transaction) error
	SaveMany(ctx context.Context, txns []*model.Transaction) error
	Transactions(ctx context.Context, userID string) ([]*model.Transaction, error)
}

// Result summarizes one imported statement.
type Result struct {
	Format  string
	Count   int // transactions persisted
	Matched int // transactions changed by rules
}

// Importer detects the statement format, parses it, applies the user's rules
// and hands the result to storage.
type Importer struct {
	registry *Registry
	rules    rules.RuleSource
	store    TransactionStore
	userID   string
	encoding string
}

// New creates an importer for userID.
func New(registry *Registry, ruleSource rules.RuleSource, store TransactionStore, userID string) *Importer {
	return &Importer{
		registry: registry,
		rules:    ruleSource,
		store:    store,
		userID:   userID,
		encoding: EncodingAuto,
	}
}

// SetEncoding sets how ImportFromFile decodes file bytes.
func (im *Importer) SetEncoding(encoding string) { im.encoding = encoding }

// ImportFromData imports statement text and returns the number of persisted transactions.
func (im *Importer) ImportFromData(ctx context.Context, data string) (int, error) {
	res, err := im.importText(ctx, data)
	return res.Count, err
}

// ImportFromFile reads, decodes and imports the statement at path.
func (im *Importer) ImportFromFile(ctx context.Context, path string) (Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", path, err)
	}
	data, err := Decode(raw, im.encoding)
	if err != nil {
		return Result{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	res, err := im.importText(ctx, data)
	if err != nil {
		return res, fmt.Errorf("importing %s: %w", filepath.Base(path), err)
	}
	return res, nil
}

func (im *Importer) importText(ctx context.Context, data string) (Result, error) {
	log := logger.FromContext(ctx)

	p, err := im.registry.Detect(data)
	if err != nil {
		return Result{}, err
	}
	res := Result{Format: p.Format()}

	txns, err := p.Parse(data, im.userID)
	if err != nil {
		return res, err
	}
	if len(txns) == 0 {
		log.Debug().Str("format", res.Format).Msg("statement has no transactions")
		return res, nil
	}

	engine, err := rules.NewEngine(ctx, im.rules, im.userID)
	if err != nil {
		return res, err
	}
	res.Matched = len(engine.ApplyRules(txns))

	if err := im.store.SaveMany(ctx, txns); err != nil {
		return res, fmt.Errorf("saving transactions: %w", err)
	}
	res.Count = len(txns)

	log.Debug().
		Str("format", res.Format).
		Int("count", res.Count).
		Int("matched", res.Matched).
		Msg("statement imported")
	return res, nil
}

// ApplyRules re-runs the user's rules over all stored transactions and saves
// the ones that matched. Returns the number saved.
func (im *Importer) ApplyRules(ctx context.Context) (int, error) {
	engine, err := rules.NewEngine(ctx, im.rules, im.userID)
	if err != nil {
		return 0, err
	}
	txns, err := im.store.Transactions(ctx, im.userID)
	if err != nil {
		return 0, fmt.Errorf("loading transactions: %w", err)
	}

	matched := engine.ApplyRules(txns)
	for _, t := range matched {
		if err := im.store.Save(ctx, t); err != nil {
			return 0, fmt.Errorf("saving transaction %s: %w", t.ID, err)
		}
	}
	log := logger.FromContext(ctx)
	log.Debug().Int("matched", len(matched)).Msg("rules re-applied")
	return len(matched), nil
}

// processedDir is the subdirectory of the import dir for processed files.
const processedDir = "processed"

// Scan returns CSV files in dir. A missing dir yields no files.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from dir to dir/processed/.
func MarkProcessed(dir, fileName string) error {
	dstDir := filepath.Join(dir, processedDir)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	src := filepath.Join(dir, fileName)
	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
