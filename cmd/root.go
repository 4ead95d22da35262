package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/denysvitali/foldgen/pkg/config"
	"github.com/denysvitali/foldgen/pkg/fixture"
	"github.com/denysvitali/foldgen/pkg/telemetry"
)

var (
	cfgFile string
	logger  = logrus.New()
)

// rootCmd writes a fold fixture for every path it is given
var rootCmd = &cobra.Command{
	Use:   "foldgen [flags] <path>...",
	Short: "Write fold-list test fixtures for source files",
	Long: `foldgen computes the code-folding ranges of each source file given on the
command line and writes them to <file>.testdata, one "<start> <end> <level>"
record per line. Files are processed in order; the first failure stops the run.`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runWrite,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.foldgen.yaml)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Output logs in JSON format")
	flags.String("backend", "python", "Fold computer to use (python, vim)")
	flags.Bool("only-definitions", false, "Only fold def and class statements (python backend)")
	flags.String("vim", "vim", "vim executable (vim backend)")
	flags.String("vimrc", "", "vimrc loaded by the vim backend, e.g. one enabling a folding plugin")
	flags.Bool("enable-telemetry", false, "Enable OpenTelemetry tracing")

	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.json", flags.Lookup("log-json"))
	_ = viper.BindPFlag("fold.backend", flags.Lookup("backend"))
	_ = viper.BindPFlag("fold.only_definitions", flags.Lookup("only-definitions"))
	_ = viper.BindPFlag("vim.path", flags.Lookup("vim"))
	_ = viper.BindPFlag("vim.vimrc", flags.Lookup("vimrc"))
	_ = viper.BindPFlag("telemetry.enabled", flags.Lookup("enable-telemetry"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".foldgen")
	}

	// FOLDGEN_FOLD_BACKEND overrides fold.backend, and so on
	viper.SetEnvPrefix("foldgen")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	setupLogging()
}

func setupLogging() {
	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", viper.GetString("log.level"))
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if viper.GetBool("log.json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

// loadConfig loads the configuration and starts telemetry when enabled.
// The returned cleanup func must always be called.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cleanup := func() {}
	if cfg.Telemetry.Enabled {
		logger.Debug("Initializing OpenTelemetry")
		shutdown, err := telemetry.Initialize(cfg.Telemetry, logger)
		if err != nil {
			logger.Warnf("Failed to initialize telemetry: %v", err)
		} else {
			cleanup = shutdown
		}
	}
	return cfg, cleanup, nil
}

func runWrite(cmd *cobra.Command, args []string) error {
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

	logger.Debugf("Writing fixtures for %d files with the %s backend", len(args), cfg.Fold.Backend)
	return fixture.New(computer, logger).WriteAll(cmd.Context(), args)
}
