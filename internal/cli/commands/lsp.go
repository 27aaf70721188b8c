package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/schemalint/schemalint/internal/check"
	"github.com/schemalint/schemalint/internal/lsp"
	"github.com/schemalint/schemalint/internal/registry"
	"github.com/schemalint/schemalint/internal/tooling"
)

// NewLSPCommand creates the LSP command
func NewLSPCommand(g *globalOptions) *cobra.Command {
	var schema string

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the schemalint Language Server Protocol (LSP) server.

The server provides editor integration for model files:
  • Schema drift diagnostics on open, change and save
  • A quick fix inserting the missing the_schema_is block
  • Hover showing the canonical type of a declared column
  • Document symbols for models and their columns

Saving the canonical schema re-checks every open model.
The LSP server communicates via JSON-RPC over stdin/stdout.
It is typically started automatically by your editor/IDE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("schema") {
				if cfg.SchemaPath, err = filepath.Abs(schema); err != nil {
					return err
				}
			}

			// stdout carries the protocol, so logs go to stderr only
			logger, err := g.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			checker, err := check.NewChecker(registry.New(logger), cfg.CheckOptions(), logger)
			if err != nil {
				return err
			}
			server := lsp.NewServer(tooling.NewAPI(checker, logger), cfg.ResolvedSchemaPath(), logger)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&schema, "schema", "", "Path to the canonical schema (default: db/schema.rb)")
	return cmd
}
