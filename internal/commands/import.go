package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/spending-frustration/spending/internal/importer"
	"github.com/spending-frustration/spending/internal/importlog"
)

func newImportCommand(opts *globalOptions) *cobra.Command {
	var scan bool

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import bank statements and categorize them with the active rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if scan == (len(args) > 0) {
				return errors.New("pass statement files or --scan, not both")
			}
			return withApp(cmd, opts, func(a *app) error {
				return runImport(cmd.OutOrStdout(), a, args, scan)
			})
		},
	}

	cmd.Flags().BoolVar(&scan, "scan", false, "import every CSV in the import directory and move it to processed/")

	return cmd
}

func runImport(out io.Writer, a *app, paths []string, scan bool) error {
	importDir := a.path(a.cfg.Import.Dir)
	if scan {
		files, err := importer.Scan(importDir)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintf(out, "No statements in %s\n", importDir)
			return nil
		}
		for _, f := range files {
			paths = append(paths, f.Path)
		}
	}

	im := a.importer()
	var entries []importlog.Entry
	var failed int
	for _, p := range paths {
		entry := importlog.Entry{
			Timestamp: time.Now().UTC(),
			User:      a.user,
			File:      filepath.Base(p),
		}

		res, err := im.ImportFromFile(a.ctx, p)
		entry.Format = res.Format
		entry.Count = res.Count
		entry.Matched = res.Matched
		if err != nil {
			failed++
			entry.Status = importlog.StatusFailed
			entry.Error = err.Error()
			a.log.Error().Err(err).Str("file", entry.File).Msg("import failed")
		} else {
			entry.Status = importlog.StatusOK
			fmt.Fprintf(out, "%s: %d transactions (%s), %d categorized\n", entry.File, res.Count, res.Format, res.Matched)
			if scan {
				if err := importer.MarkProcessed(importDir, entry.File); err != nil {
					a.log.Warn().Err(err).Str("file", entry.File).Msg("could not move statement to processed")
				}
			}
		}
		entries = append(entries, entry)
	}

	if a.cfg.Import.LogFile != "" {
		if err := importlog.Append(a.path(a.cfg.Import.LogFile), entries); err != nil {
			a.log.Warn().Err(err).Msg("could not write import log")
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d statements failed to import", failed, len(paths))
	}
	return nil
}
