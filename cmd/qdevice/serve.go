package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seantiz/qdevice/internal/api"
	"github.com/seantiz/qdevice/internal/engine"
	"github.com/seantiz/qdevice/internal/notify"
	"github.com/seantiz/qdevice/internal/store"
)

const tracerShutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the device over HTTP until interrupted",
	RunE:  doServe,
}

func doServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("qdevice: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"executor", cfg.Executor,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	reg, exec, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	defer reg.Close()

	recorders := engine.Recorders{db}
	if cfg.NATSURL != "" {
		pub, err := notify.Connect(notify.Config{
			URL:     cfg.NATSURL,
			Subject: cfg.NATSSubject,
			Name:    cfg.DeviceName,
		}, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		recorders = append(recorders, pub)
	}

	tp, shutdownTracing, err := newTracerProvider()
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error("flush traces", "error", err)
		}
	}()

	eng := engine.New(exec, logger,
		engine.WithRecorder(recorders),
		engine.WithTracerProvider(tp),
		engine.WithDeviceName(cfg.DeviceName),
		engine.WithDefaultQubits(cfg.DefaultQubits),
	)
	eng.Start(ctx)
	defer eng.Stop()

	srv := api.NewServer(cfg.ListenAddr, db, reg, eng, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	return g.Wait()
}
