package cmd

import (
	"github.com/spf13/cobra"

	"github.com/denysvitali/foldgen/pkg/mcp"
)

var mcpCmd = &cobra.Command{
	Use:          "mcp",
	Short:        "Serve fold tools over the Model Context Protocol on stdio",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	computer, closeComputer, err := newComputer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeComputer()

	return mcp.NewServer(logger, computer).ServeStdio()
}
