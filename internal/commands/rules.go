package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/spending-frustration/spending/internal/gitops"
	"github.com/spending-frustration/spending/internal/model"
	"github.com/spending-frustration/spending/internal/rules"
)

func newRulesCommand(opts *globalOptions) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
	}
	rulesCmd.AddCommand(
		newRulesAddCommand(opts),
		newRulesListCommand(opts),
		newRulesExportCommand(opts),
		newRulesImportCommand(opts),
		newRulesDeleteCommand(opts),
		newRulesToggleCommand(opts, "enable", true),
		newRulesToggleCommand(opts, "disable", false),
		newRulesUpdateCommand(opts),
		newRulesTestCommand(opts),
		newRulesApplyCommand(opts),
	)
	return rulesCmd
}

// withApp opens the app for one command invocation and closes it afterwards.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(*app) error) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newRulesAddCommand(opts *globalOptions) *cobra.Command {
	var inactive bool

	cmd := &cobra.Command{
		Use:   "add <rule>",
		Short: "Add a rule, e.g. 'merchant contains LIDL -> @groceries #food'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				return runRulesAdd(cmd.OutOrStdout(), a, args[0], !inactive)
			})
		},
	}

	cmd.Flags().BoolVar(&inactive, "inactive", false, "store the rule disabled")

	return cmd
}

func runRulesAdd(out io.Writer, a *app, text string, active bool) error {
	text = strings.TrimSpace(text)
	if _, err := rules.ParseRule(text); err != nil {
		return err
	}
	rec, err := a.store.AddRule(a.ctx, a.user, text, active)
	if err != nil {
		return fmt.Errorf("adding rule: %w", err)
	}
	a.log.Info().Str("rule", rec.ID).Msg("rule added")
	fmt.Fprintf(out, "Added rule %s\n", rec.ID)
	return nil
}

func newRulesListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				return runRulesList(cmd.OutOrStdout(), a)
			})
		},
	}
}

func runRulesList(out io.Writer, a *app) error {
	recs, err := a.store.UserRules(a.ctx, a.user)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "No rules.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"#", "ID", "Active", "Rule"})
	for i, r := range recs {
		active := "yes"
		if !r.Active {
			active = "no"
		}
		t.AppendRow(table.Row{i + 1, r.ID, active, r.Text})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func newRulesExportCommand(opts *globalOptions) *cobra.Command {
	var commit bool

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write rules as text, one per line (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if commit && len(args) == 0 {
				return errors.New("--commit needs an output file")
			}
			return withApp(cmd, opts, func(a *app) error {
				if len(args) == 0 {
					return runRulesExport(cmd.OutOrStdout(), a)
				}
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("creating %s: %w", args[0], err)
				}
				if err := runRulesExport(f, a); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				if commit {
					return commitRules(cmd.OutOrStdout(), a, args[0])
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&commit, "commit", false, "commit the exported file to the project's git repository")

	return cmd
}

// commitRules records an exported rule file in the project repository.
func commitRules(out io.Writer, a *app, path string) error {
	if !gitops.IsRepo(a.baseDir) {
		return fmt.Errorf("%s is not a git repository (run init --git)", a.baseDir)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	rel, err := filepath.Rel(a.baseDir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("%s is outside the project directory", path)
	}
	hash, err := gitops.Commit(a.ctx, a.baseDir, "rules: export for "+a.user, rel)
	if err != nil {
		return err
	}
	a.log.Info().Str("commit", hash).Msg("rules committed")
	fmt.Fprintf(out, "Committed %s\n", hash)
	return nil
}

func runRulesExport(w io.Writer, a *app) error {
	recs, err := a.store.UserRules(a.ctx, a.user)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	return rules.WriteExport(w, recs)
}

func newRulesImportCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Add every rule in an exported rule file; nothing is added if any line is invalid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("reading rules: %w", err)
			}
			return withApp(cmd, opts, func(a *app) error {
				return runRulesImport(cmd.OutOrStdout(), a, string(data))
			})
		},
	}
}

func runRulesImport(out io.Writer, a *app, text string) error {
	parsed, err := rules.ParseExport(text)
	if err != nil {
		return err
	}
	drafts := make([]model.RuleRecord, len(parsed))
	for i, r := range parsed {
		drafts[i] = model.RuleRecord{Text: r.String(), Active: r.Active()}
	}
	if _, err := a.store.AddRules(a.ctx, a.user, drafts); err != nil {
		return fmt.Errorf("adding rules: %w", err)
	}
	a.log.Info().Int("count", len(drafts)).Msg("rules imported")
	fmt.Fprintf(out, "Imported %d rules\n", len(drafts))
	return nil
}

func newRulesDeleteCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if err := a.store.DeleteRule(a.ctx, a.user, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %s\n", args[0])
				return nil
			})
		},
	}
}

func newRulesToggleCommand(opts *globalOptions, verb string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				return updateRule(a, args[0], func(rec *model.RuleRecord) error {
					rec.Active = active
					return nil
				})
			})
		},
	}
}

func newRulesUpdateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <rule>",
		Short: "Replace the text of a rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				text := strings.TrimSpace(args[1])
				return updateRule(a, args[0], func(rec *model.RuleRecord) error {
					if _, err := rules.ParseRule(text); err != nil {
						return err
					}
					rec.Text = text
					return nil
				})
			})
		},
	}
}

func updateRule(a *app, id string, change func(*model.RuleRecord) error) error {
	rec, err := a.store.Rule(a.ctx, a.user, id)
	if err != nil {
		return err
	}
	if err := change(&rec); err != nil {
		return err
	}
	if err := a.store.UpdateRule(a.ctx, rec); err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}
	a.log.Info().Str("rule", rec.ID).Bool("active", rec.Active).Msg("rule updated")
	return nil
}

func newRulesTestCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test <rule>",
		Short: "Show stored transactions a rule would match, without saving",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				return runRulesTest(cmd.OutOrStdout(), a, args[0])
			})
		},
	}
}

func runRulesTest(out io.Writer, a *app, text string) error {
	rule, err := rules.ParseRule(strings.TrimSpace(text))
	if err != nil {
		return err
	}
	txns, err := a.store.Transactions(a.ctx, a.user)
	if err != nil {
		return fmt.Errorf("loading transactions: %w", err)
	}

	var matched []*model.Transaction
	for _, t := range txns {
		if rule.Evaluate(t) {
			matched = append(matched, t)
		}
	}
	if len(matched) == 0 {
		fmt.Fprintln(out, "No matching transactions.")
		return nil
	}
	renderTransactions(out, matched)
	fmt.Fprintf(out, "%d of %d transactions match\n", len(matched), len(txns))
	return nil
}

func newRulesApplyCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Re-apply active rules to all stored transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				n, err := a.importer().ApplyRules(a.ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %d transactions\n", n)
				return nil
			})
		},
	}
}
