// Command qdevice runs the quantum device job engine: an HTTP service by
// default, or a single program through the same engine with "run".
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/seantiz/qdevice/internal/config"
)

var (
	cfg    config.Config
	logger *slog.Logger

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagTrace          bool   // value of --trace flag
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "YAML config file to load (default $QDEVICE_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&flagTrace, "trace", false, "write executor spans to stderr")

	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = initQDevice

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		if logger == nil {
			logger = config.NewLogger(os.Stderr, slog.LevelInfo)
		}
		logger.Error("qdevice failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "qdevice",
	Short:        "Quantum device job engine",
	SilenceUsage: true,
}

// initQDevice loads the configuration and sets up logging for every
// subcommand.
func initQDevice(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(flagConfigFilePath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagVerbose {
		cfg.LogLevel = slog.LevelDebug
	}

	// "run" prints results on stdout, so logs always go to stderr there.
	out := os.Stdout
	if cmd.Name() == runCmd.Name() {
		out = os.Stderr
	}
	logger = config.NewLogger(out, cfg.LogLevel)
	slog.SetDefault(logger)
	return nil
}
