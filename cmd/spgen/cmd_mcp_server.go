package main

import (
	"context"
	"fmt"

	"github.com/nvandessel/sampling-paradigm/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve spgen tools over the Model Context Protocol (stdio)",
		Long: `Start an MCP server on stdin/stdout exposing the generator as tools:

  spgen_enumerate      page through the settings pool
  spgen_schedule       draw (and optionally store) a balanced schedule
  spgen_reward_lists   convert between settings and reward lists
  spgen_coverage       class coverage of a list of settings
  spgen_runs           list stored runs

Stored runs are also readable as resources at spgen://runs/{id}.
Logs go to stderr; tool calls are audited in .spgen/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "spgen",
				Version: version,
				DataDir: env.dataDir,
				Spgen:   env.cfg,
				Logger:  env.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			env.logger.Info("mcp server starting", "data_dir", env.dataDir)
			return server.Run(context.Background())
		},
	}
}
