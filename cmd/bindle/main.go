// Command bindle is the registry client CLI: push/pull standalone bindles
// and query the registry, per SPEC_FULL.md §6's "bindle (client)" CLI
// surface. Grounded on cmd/bls-zk-setup/main.go's thin-main style, with
// cobra subcommands (promoted from an indirect teacher dependency per
// SPEC_FULL.md §11).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bindleproject/bindle/internal/config"
	"github.com/bindleproject/bindle/internal/id"
	"github.com/bindleproject/bindle/internal/search"
	"github.com/bindleproject/bindle/pkg/client"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bindle",
		Short: "Interact with a bindle registry",
	}

	root.PersistentFlags().String("url", "", "registry base URL")
	root.PersistentFlags().String("directory", "", "standalone bindle directory")

	root.AddCommand(newPushCmd(), newPullCmd(), newInfoCmd(), newSearchCmd())
	return root
}

func newClientFor(cmd *cobra.Command) (*client.Client, config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig(cmd.Flags())
	if err != nil {
		return nil, config.ClientConfig{}, fmt.Errorf("loading configuration: %w", err)
	}
	c, err := client.New(cfg.URL)
	if err != nil {
		return nil, config.ClientConfig{}, fmt.Errorf("constructing client: %w", err)
	}
	return c, cfg, nil
}

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <name/version>",
		Short: "Push a standalone bindle to the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := newClientFor(cmd)
			if err != nil {
				return err
			}
			bindleID, err := id.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parsing bindle id: %w", err)
			}
			return c.PushBindle(context.Background(), cfg.Directory, bindleID)
		},
	}
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <name/version>",
		Short: "Pull a bindle from the registry into a standalone directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := newClientFor(cmd)
			if err != nil {
				return err
			}
			bindleID, err := id.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parsing bindle id: %w", err)
			}
			return c.PullBindle(context.Background(), cfg.Directory, bindleID)
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name/version>",
		Short: "Print an invoice as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := newClientFor(cmd)
			if err != nil {
				return err
			}
			bindleID, err := id.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parsing bindle id: %w", err)
			}
			inv, err := c.GetYankedInvoice(context.Background(), bindleID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(inv)
		},
	}
}

func newSearchCmd() *cobra.Command {
	var versionReq string
	var limit uint8
	var strict bool
	var yanked bool

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Query the registry's search index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := newClientFor(cmd)
			if err != nil {
				return err
			}
			opts := search.DefaultOptions()
			opts.Strict = strict
			opts.Yanked = yanked
			if limit > 0 {
				opts.Limit = limit
			}
			matches, err := c.QueryInvoices(context.Background(), args[0], versionReq, opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(matches)
		},
	}
	cmd.Flags().StringVar(&versionReq, "version", "", "semver range to filter by")
	cmd.Flags().Uint8Var(&limit, "limit", 0, "maximum results to return")
	cmd.Flags().BoolVar(&strict, "strict", false, "send the strict query option (the server's index matches names by substring either way)")
	cmd.Flags().BoolVar(&yanked, "yanked", false, "include yanked invoices")
	return cmd
}
