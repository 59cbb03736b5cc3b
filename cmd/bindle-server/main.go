// Command bindle-server runs the bindle registry HTTP surface (C10) over a
// file or embedded-database provider, per SPEC_FULL.md §6's CLI surface.
// Grounded on cmd/bls-zk-setup/main.go's thin-main-wrapping-a-Run-function
// idiom, with cobra providing flag parsing (promoted from an indirect
// teacher dependency per SPEC_FULL.md §11).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/spf13/cobra"

	"github.com/bindleproject/bindle/internal/config"
	"github.com/bindleproject/bindle/internal/httplog"
	"github.com/bindleproject/bindle/internal/keyring"
	"github.com/bindleproject/bindle/internal/provider"
	"github.com/bindleproject/bindle/internal/provider/embedded"
	"github.com/bindleproject/bindle/internal/provider/file"
	"github.com/bindleproject/bindle/internal/search"
	"github.com/bindleproject/bindle/internal/server"
	"github.com/bindleproject/bindle/internal/signature"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bindle-server",
		Short: "Serve the bindle registry HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("ip_address_port", "", "address:port to listen on")
	flags.String("directory", "", "data directory for storage")
	flags.String("tls_cert", "", "path to a TLS certificate")
	flags.String("tls_key", "", "path to a TLS private key")
	flags.Bool("embedded_db", false, "use the embedded key-value database provider instead of the file provider")
	flags.String("signing_keys", "", "path to a TOML file of signing keys (unused by the server itself, documented for operator tooling)")
	flags.String("verification_strategy", "", "verification strategy name (CreativeIntegrity, AuthoritativeIntegrity, GreedyVerification, ExhaustiveVerification, MultipleAttestation, MultipleAttestationGreedy)")
	flags.StringSlice("verification_roles", nil, "roles for MultipleAttestation(Greedy) strategies")
	flags.String("keyring_path", "", "path to the TOML keyring file")
	flags.String("auth_method", "", "authentication method (none, basic)")

	return cmd
}

func run(cmd *cobra.Command) error {
	cfg, err := config.LoadServerConfig(cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := httplog.New("[bindle-server] ")

	kr := signature.NewKeyring()
	if cfg.KeyringPath != "" {
		loaded, err := keyring.Load(cfg.KeyringPath)
		if err != nil {
			return fmt.Errorf("loading keyring: %w", err)
		}
		kr = loaded
	}

	roles := make([]signature.Role, 0, len(cfg.VerificationRoles))
	for _, r := range cfg.VerificationRoles {
		roles = append(roles, signature.Role(r))
	}
	strategy, err := signature.NamedStrategy(cfg.VerificationStrategy, roles)
	if err != nil {
		return fmt.Errorf("resolving verification strategy: %w", err)
	}

	ctx := context.Background()
	idx := search.New()

	p, err := newProvider(ctx, cfg, idx)
	if err != nil {
		return fmt.Errorf("initializing storage provider: %w", err)
	}

	srv := server.New(p, idx, kr, strategy, server.WithLogger(logger))

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Routes(),
	}

	logger.Printf("listening on %s (embedded_db=%v)", cfg.ListenAddr, cfg.EmbeddedDB)
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		return httpServer.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
	}
	return httpServer.ListenAndServe()
}

// newProvider builds the file or embedded-database provider selected by
// cfg.EmbeddedDB, per SPEC_FULL.md §6's "embedded-db toggle" flag.
func newProvider(ctx context.Context, cfg config.ServerConfig, idx *search.Index) (provider.Provider, error) {
	if !cfg.EmbeddedDB {
		return file.New(ctx, cfg.DataDir, idx)
	}

	db, err := dbm.NewGoLevelDB("bindle", cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening embedded database: %w", err)
	}
	return embedded.New(ctx, db, idx)
}
