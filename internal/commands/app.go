package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/spending-frustration/spending/internal/config"
	"github.com/spending-frustration/spending/internal/importer"
	"github.com/spending-frustration/spending/internal/logger"
	"github.com/spending-frustration/spending/internal/model"
	"github.com/spending-frustration/spending/internal/rules"
	"github.com/spending-frustration/spending/internal/storage/memory"
	"github.com/spending-frustration/spending/internal/storage/sqlite"
)

// store is everything the CLI needs from storage.
type store interface {
	rules.RuleSource
	importer.TransactionStore

	AddRule(ctx context.Context, userID, text string, active bool) (model.RuleRecord, error)
	AddRules(ctx context.Context, userID string, drafts []model.RuleRecord) ([]model.RuleRecord, error)
	Rule(ctx context.Context, userID, id string) (model.RuleRecord, error)
	UpdateRule(ctx context.Context, rec model.RuleRecord) error
	DeleteRule(ctx context.Context, userID, id string) error
	Categories(ctx context.Context, userID string) ([]string, error)
	Tags(ctx context.Context, userID string) ([]string, error)
	Close() error
}

var (
	_ store = (*memory.Store)(nil)
	_ store = (*sqlite.Store)(nil)
)

// globalOptions are the persistent flags of the root command.
type globalOptions struct {
	configPath string
	user       string
	verbose    bool
}

// app is the per-invocation environment of a subcommand.
type app struct {
	cfg     *config.Config
	baseDir string
	user    string
	store   store
	log     zerolog.Logger
	ctx     context.Context
}

func openApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, baseDir, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if opts.verbose {
		level = "debug"
	}
	log := logger.New(level, cmd.ErrOrStderr())

	user := cfg.User
	if opts.user != "" {
		user = opts.user
	}
	if user == "" {
		return nil, errors.New("no user set: use --user, " + config.EnvUser + " or user: in " + config.FileName)
	}

	var st store
	if cfg.Database.Path == "" {
		log.Warn().Msg("no database path configured, data will not be persisted")
		st = memory.New()
	} else {
		dbPath := config.Resolve(baseDir, cfg.Database.Path)
		s, err := sqlite.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
		}
		st = s
	}

	log = log.With().Str("user", user).Logger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return &app{
		cfg:     cfg,
		baseDir: baseDir,
		user:    user,
		store:   st,
		log:     log,
		ctx:     logger.WithContext(ctx, log),
	}, nil
}

func (a *app) Close() error { return a.store.Close() }

func (a *app) importer() *importer.Importer {
	im := importer.New(importer.DefaultRegistry(), a.store, a.store, a.user)
	im.SetEncoding(a.cfg.Import.Encoding)
	return im
}

func (a *app) path(p string) string { return config.Resolve(a.baseDir, p) }

// loadConfig finds the config file: --config, then SPENDING_CONFIG, then
// ./spending.yaml. Only the implicit default may be missing.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	explicit := path != ""
	if !explicit {
		path = config.FileName
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path: %w", err)
	}
	baseDir := filepath.Dir(absPath)

	cfg, err := config.Load(absPath)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}
		cfg = config.Default("")
	}
	cfg.ApplyEnv()
	return cfg, baseDir, nil
}
