package commands

import (
	"github.com/spf13/cobra"

	"github.com/spending-frustration/spending/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "spending",
		Short:   "Categorize bank statement transactions with rules",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ./spending.yaml, or $SPENDING_CONFIG)")
	flags.StringVar(&opts.user, "user", "", "user id (overrides config and $SPENDING_USER)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newInitCommand(opts),
		newRulesCommand(opts),
		newImportCommand(opts),
		newTransactionsCommand(opts),
		newCategoriesCommand(opts),
		newTagsCommand(opts),
	)

	return rootCmd
}
