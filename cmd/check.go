package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/denysvitali/foldgen/pkg/fixture"
)

// checkCmd verifies existing fixtures against freshly computed folds
var checkCmd = &cobra.Command{
	Use:   "check <path>...",
	Short: "Verify that fold fixtures match their sources",
	Long: `Recompute the fold list of each source file and compare it with the stored
<file>.testdata fixture. Stale or missing fixtures are listed and the command
exits non-zero.`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
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

	mismatches, err := fixture.New(computer, logger).Check(cmd.Context(), args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, m := range mismatches {
		if m.Missing {
			fmt.Fprintf(out, "%s: missing\n", m.Fixture)
			continue
		}
		fmt.Fprintf(out, "%s: stale\n", m.Fixture)
		for _, line := range m.Diff {
			fmt.Fprintf(out, "\t%s\n", line)
		}
	}

	if len(mismatches) > 0 {
		return fmt.Errorf("%d of %d fixtures do not match", len(mismatches), len(args))
	}
	logger.Infof("All %d fixtures are up to date", len(args))
	return nil
}
