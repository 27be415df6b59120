package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"toolcatalog/internal/catalogclient"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type options struct {
	v *viper.Viper
}

func (o *options) client() *catalogclient.Client {
	return catalogclient.New(o.v.GetString("api"),
		catalogclient.WithToken(o.v.GetString("token")),
	)
}

func (o *options) format() string { return o.v.GetString("format") }

func newRootCmd() *cobra.Command {
	opts := &options{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "catalogctl",
		Short: "Browse and administer the tool catalog",
		Long: `catalogctl talks to the catalog HTTP API.

Listing and reading are public. Deleting products and renaming categories
need an admin bearer token, passed with --token or CATALOG_TOKEN.

Examples:
  # Products in a category, best rated first
  catalogctl products list --category SEO

  # Products whose domain starts with M
  catalogctl products list --letter m

  # Rename a category
  catalogctl categories rename 6f1c9a52-3b7e-4a8f-9d2c-1e5b7a4c8d90 Marketing --token $TOKEN`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("api", "http://localhost:8080", "Catalog API base URL")
	rootCmd.PersistentFlags().String("token", "", "Bearer token for admin commands")
	rootCmd.PersistentFlags().StringP("format", "f", "table", "Output format: table|json")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "Request timeout")

	// CATALOG_API, CATALOG_TOKEN, CATALOG_FORMAT, CATALOG_TIMEOUT
	opts.v.SetEnvPrefix("catalog")
	opts.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	opts.v.AutomaticEnv()
	_ = opts.v.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newProductsCmd(opts), newCategoriesCmd(opts))
	return rootCmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	}
	return fmt.Errorf("unknown format %q (want table or json)", format)
}
