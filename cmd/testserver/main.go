// testserver starts a qdevice API server on the stub executor with an
// in-memory history, for exercising clients end to end.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seantiz/qdevice/internal/api"
	"github.com/seantiz/qdevice/internal/backend"
	"github.com/seantiz/qdevice/internal/backend/stub"
	"github.com/seantiz/qdevice/internal/config"
	"github.com/seantiz/qdevice/internal/engine"
	"github.com/seantiz/qdevice/internal/store"
)

// executeDelay keeps jobs observable in the Running state.
const executeDelay = 500 * time.Millisecond

func main() {
	addr := ":8080"
	if v := os.Getenv("QDEVICE_LISTEN_ADDR"); v != "" {
		addr = v
	}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	exec := stub.New(stub.WithDelay(executeDelay))
	reg := backend.NewRegistry()
	reg.Register(stub.Name, exec)

	logger := config.NewLogger(os.Stdout, config.Default().LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(exec, logger,
		engine.WithRecorder(db),
		engine.WithDeviceName("qdevice-testserver"),
	)
	eng.Start(ctx)
	defer eng.Stop()

	srv := api.NewServer(addr, db, reg, eng, logger)

	logger.Info("testserver: starting", "addr", addr)
	if err := srv.Run(ctx); err != nil {
		log.Printf("server error: %v", err)
	}
}
