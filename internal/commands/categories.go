package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCategoriesCommand(opts *globalOptions) *cobra.Command {
	return newListingCommand(opts, "categories", "List categories in use", "No categories.",
		func(ctx context.Context, a *app) ([]string, error) { return a.store.Categories(ctx, a.user) })
}

func newTagsCommand(opts *globalOptions) *cobra.Command {
	return newListingCommand(opts, "tags", "List tags in use", "No tags.",
		func(ctx context.Context, a *app) ([]string, error) { return a.store.Tags(ctx, a.user) })
}

func newListingCommand(opts *globalOptions, use, short, empty string, list func(context.Context, *app) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				values, err := list(a.ctx, a)
				if err != nil {
					return fmt.Errorf("loading %s: %w", use, err)
				}
				out := cmd.OutOrStdout()
				if len(values) == 0 {
					fmt.Fprintln(out, empty)
					return nil
				}
				for _, v := range values {
					fmt.Fprintln(out, v)
				}
				return nil
			})
		},
	}
}
