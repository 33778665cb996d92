package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/spending-frustration/spending/internal/export"
	"github.com/spending-frustration/spending/internal/model"
)

func newTransactionsCommand(opts *globalOptions) *cobra.Command {
	txnCmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txn"},
		Short:   "Inspect stored transactions",
	}
	txnCmd.AddCommand(
		newTransactionsListCommand(opts),
		newTransactionsExportCommand(opts),
	)
	return txnCmd
}

func newTransactionsListCommand(opts *globalOptions) *cobra.Command {
	var category string
	var uncategorized bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions by date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				txns, err := a.store.Transactions(a.ctx, a.user)
				if err != nil {
					return fmt.Errorf("loading transactions: %w", err)
				}
				var shown []*model.Transaction
				for _, t := range txns {
					switch {
					case uncategorized && t.Category != "":
						continue
					case category != "" && t.Category != category:
						continue
					}
					shown = append(shown, t)
				}
				if len(shown) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No transactions.")
					return nil
				}
				renderTransactions(cmd.OutOrStdout(), shown)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only this category")
	cmd.Flags().BoolVar(&uncategorized, "uncategorized", false, "only transactions without a category")
	cmd.MarkFlagsMutuallyExclusive("category", "uncategorized")

	return cmd
}

func newTransactionsExportCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write transactions as CSV (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				txns, err := a.store.Transactions(a.ctx, a.user)
				if err != nil {
					return fmt.Errorf("loading transactions: %w", err)
				}
				if len(args) == 0 {
					return export.WriteTransactions(cmd.OutOrStdout(), txns)
				}
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("creating %s: %w", args[0], err)
				}
				if err := export.WriteTransactions(f, txns); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				a.log.Info().Int("count", len(txns)).Str("file", args[0]).Msg("transactions exported")
				return nil
			})
		},
	}
}

func renderTransactions(out io.Writer, txns []*model.Transaction) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Date", "Amount", "Merchant", "Category", "Tags", "Type"})
	for _, txn := range txns {
		t.AppendRow(table.Row{
			txn.Date.Format("2006-01-02"),
			txn.Amount.StringFixed(2),
			txn.Merchant,
			txn.Category,
			strings.Join(txn.Tags, " "),
			string(txn.Type),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, WidthMax: 40},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
