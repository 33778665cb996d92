package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spending-frustration/spending/internal/config"
	"github.com/spending-frustration/spending/internal/gitops"
	"github.com/spending-frustration/spending/internal/storage/sqlite"
)

func newInitCommand(opts *globalOptions) *cobra.Command {
	var withGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new spending project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.Context(), cmd.OutOrStdout(), absDir, opts.user, withGit)
		},
	}

	cmd.Flags().BoolVar(&withGit, "git", false, "put the project under git and commit the initial files")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, dir, user string, withGit bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	cfg := config.Default(user)

	dirs := []string{
		cfg.Import.Dir,
		filepath.Join(cfg.Import.Dir, "processed"),
		filepath.Dir(cfg.Import.LogFile),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Create and migrate the database up front.
	st, err := sqlite.Open(filepath.Join(dir, cfg.Database.Path))
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	if err := st.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}

	gitignore := cfg.Database.Path + "\n" + filepath.Join(cfg.Import.Dir, "processed") + "/\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, cfg.Import.Dir, ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	if withGit {
		if err := gitops.Init(ctx, dir); err != nil {
			return err
		}
		hash, err := gitops.Commit(ctx, dir, "init: spending project")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Committed %s\n", hash)
	}

	fmt.Fprintf(out, "Initialized spending project at %s\n", dir)
	return nil
}
