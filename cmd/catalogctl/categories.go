package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newCategoriesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List and rename categories",
	}
	cmd.AddCommand(newCategoriesListCmd(opts), newCategoriesRenameCmd(opts))
	return cmd
}

func newCategoriesListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories with their product counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format()); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.v.GetDuration("timeout"))
			defer cancel()

			counts, err := opts.client().ListCategories(ctx)
			if err != nil {
				return err
			}

			if opts.format() == "json" {
				return writeJSON(cmd.OutOrStdout(), counts)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tPRODUCTS")
			for _, c := range counts {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", c.ID, c.Name, c.Count)
			}
			return tw.Flush()
		},
	}
}

func newCategoriesRenameCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <new name>",
		Short: "Rename a category (admin)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid category id %q", args[0])
			}
			name := strings.Join(args[1:], " ")

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.v.GetDuration("timeout"))
			defer cancel()

			category, err := opts.client().RenameCategory(ctx, id, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed category %s to %q\n", category.ID, category.Name)
			return nil
		},
	}
}
