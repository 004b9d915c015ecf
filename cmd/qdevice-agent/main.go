// Command qdevice-agent serves the remote executor protocol. It runs next
// to the simulator, on the host or inside a VM reached over vsock, and
// executes every request on a local process executor.
//
// Build with: CGO_ENABLED=0 GOOS=linux go build -o qdevice-agent ./cmd/qdevice-agent
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seantiz/qdevice/internal/agent"
	"github.com/seantiz/qdevice/internal/backend"
	"github.com/seantiz/qdevice/internal/backend/process"
	"github.com/seantiz/qdevice/internal/backend/remote"
	"github.com/seantiz/qdevice/internal/backend/stub"
	"github.com/seantiz/qdevice/internal/config"
)

// defaultListen is the vsock port the device dials inside a guest.
const defaultListen = "vsock://3:1024"

var (
	flagConfigFilePath string
	flagListen         string
	flagStub           bool
	flagVerbose        bool
)

func main() {
	rootCmd.Flags().StringVar(&flagConfigFilePath, "config", "", "YAML config file to load (default $QDEVICE_CONFIG)")
	rootCmd.Flags().StringVar(&flagListen, "listen", defaultListen, "address to serve on: tcp://host:port, unix:///path or vsock://cid:port")
	rootCmd.Flags().BoolVar(&flagStub, "stub", false, "serve the stub executor instead of the configured simulator command")
	rootCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		slog.Error("qdevice-agent failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "qdevice-agent",
	Short:        "Serve a local simulator to a qdevice over the remote executor protocol",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         doServe,
}

func doServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfigFilePath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagVerbose {
		cfg.LogLevel = slog.LevelDebug
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	addr, err := remote.ParseAddress(flagListen)
	if err != nil {
		return err
	}

	var exec backend.Executor
	if flagStub {
		exec = stub.New()
	} else {
		exec = process.New(cfg.ExecutorCommand, os.Environ(), cfg.ExecutorTimeout)
	}
	defer exec.Close()

	// Fail at startup rather than on the device's first init request.
	if err := exec.Init(cmd.Context()); err != nil {
		return fmt.Errorf("executor init: %w", err)
	}

	l, err := remote.Listen(addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("qdevice-agent listening",
		"addr", addr.String(),
		"executor", exec.Capabilities().Name,
	)
	return agent.New(l, exec, logger, cfg.ExecutorTimeout).Serve(ctx)
}
