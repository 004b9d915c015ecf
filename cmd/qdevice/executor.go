package main

import (
	"fmt"
	"os"

	"github.com/seantiz/qdevice/internal/backend"
	"github.com/seantiz/qdevice/internal/backend/process"
	"github.com/seantiz/qdevice/internal/backend/remote"
	"github.com/seantiz/qdevice/internal/backend/stub"
	"github.com/seantiz/qdevice/internal/config"
)

// buildRegistry registers every executor the configuration can describe and
// resolves the one jobs run on.
func buildRegistry(c config.Config) (*backend.Registry, backend.Executor, error) {
	reg := backend.NewRegistry()
	reg.Register(stub.Name, stub.New())

	if len(c.ExecutorCommand) > 0 {
		reg.Register(process.Name, process.New(c.ExecutorCommand, os.Environ(), c.ExecutorTimeout))
	}
	if c.ExecutorAddr != "" {
		addr, err := remote.ParseAddress(c.ExecutorAddr)
		if err != nil {
			return nil, nil, err
		}
		reg.Register(remote.Name, remote.New(addr, c.ExecutorTimeout))
	}

	exec, err := reg.Resolve(c.Executor)
	if err != nil {
		return nil, nil, fmt.Errorf("executor %q: %w (set %s)", c.Executor, err, hintFor(c.Executor))
	}
	return reg, exec, nil
}

func hintFor(name string) string {
	switch name {
	case process.Name:
		return "QDEVICE_EXECUTOR_CMD"
	case remote.Name:
		return "QDEVICE_EXECUTOR_ADDR"
	default:
		return "QDEVICE_EXECUTOR to stub, process or remote"
	}
}
