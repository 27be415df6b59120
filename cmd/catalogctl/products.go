package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"toolcatalog/internal/catalogclient"
	"toolcatalog/internal/domain"
	"toolcatalog/internal/filter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newProductsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List, show and delete products",
	}
	cmd.AddCommand(newProductsListCmd(opts), newProductsGetCmd(opts), newProductsDeleteCmd(opts))
	return cmd
}

func newProductsListCmd(opts *options) *cobra.Command {
	var (
		category, letter, search, sortBy string
		minRating                        float64
		freeTrial                        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products, best rated first",
		Long: `List products matching at most one of --category, --letter or --search.
When several are given, search wins over letter and letter over category.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format()); err != nil {
				return err
			}

			sel, err := filter.Reduce(category, letter, search)
			if err != nil {
				return fmt.Errorf("invalid --letter: %w", err)
			}

			listOpts := catalogclient.ListOptions{Selection: sel, Sort: sortBy}
			if cmd.Flags().Changed("min-rating") {
				listOpts.MinRating = &minRating
			}
			if cmd.Flags().Changed("free-trial") {
				listOpts.FreeTrialAvailable = &freeTrial
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.v.GetDuration("timeout"))
			defer cancel()

			products, err := opts.client().ListProducts(ctx, listOpts)
			if err != nil {
				return err
			}
			products = catalogclient.SortForDisplay(products)

			if opts.format() == "json" {
				return writeJSON(cmd.OutOrStdout(), products)
			}
			return writeProductTable(cmd.OutOrStdout(), products)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only products in this category")
	cmd.Flags().StringVar(&letter, "letter", "", "Only domains starting with this letter")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Free-text search")
	cmd.Flags().Float64Var(&minRating, "min-rating", 0, "Minimum rating")
	cmd.Flags().BoolVar(&freeTrial, "free-trial", false, "Filter on free trial availability")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Server sort, e.g. rating or -createdAt")
	return cmd
}

func newProductsGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format()); err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.v.GetDuration("timeout"))
			defer cancel()

			product, err := opts.client().GetProduct(ctx, id)
			if err != nil {
				return err
			}

			if opts.format() == "json" {
				return writeJSON(cmd.OutOrStdout(), product)
			}
			return writeProductDetail(cmd.OutOrStdout(), product)
		},
	}
}

func newProductsDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.v.GetDuration("timeout"))
			defer cancel()

			if err := opts.client().DeleteProduct(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted product %s\n", id)
			return nil
		},
	}
}

func writeProductTable(w io.Writer, products []domain.Product) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOMAIN\tRATING\tTRIAL\tCATEGORIES")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%t\t%s\n",
			p.ID, p.DomainName, p.Rating, p.FreeTrialAvailable, strings.Join(p.CategoryNames(), ", "))
	}
	return tw.Flush()
}

func writeProductDetail(w io.Writer, p *domain.Product) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", p.ID)
	fmt.Fprintf(tw, "Domain:\t%s\n", p.DomainName)
	fmt.Fprintf(tw, "URL:\t%s\n", p.URL)
	fmt.Fprintf(tw, "Image:\t%s\n", p.ImageURL)
	fmt.Fprintf(tw, "Rating:\t%g/10\n", p.Rating)
	fmt.Fprintf(tw, "Free trial:\t%t\n", p.FreeTrialAvailable)
	fmt.Fprintf(tw, "Categories:\t%s\n", strings.Join(p.CategoryNames(), ", "))
	fmt.Fprintf(tw, "Keywords:\t%s\n", strings.Join(p.Keywords, ", "))
	for _, r := range p.Reviewers {
		fmt.Fprintf(tw, "Reviewer:\t%s (%s)\n", r.Name, r.URL)
	}
	fmt.Fprintf(tw, "Description:\t%s\n", p.Description)
	return tw.Flush()
}
