package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/qdevice/internal/engine"
	"github.com/seantiz/qdevice/internal/model"
)

var (
	flagProgram string
	flagShots   uint64
	flagQubits  int32
	flagTimeout time.Duration
)

func init() {
	runCmd.Flags().StringVar(&flagProgram, "program", "", "QASM2 program file, - for stdin")
	runCmd.Flags().Uint64Var(&flagShots, "shots", 1, "number of shots")
	runCmd.Flags().Int32Var(&flagQubits, "qubits", 0, "qubit count (default from config)")
	runCmd.Flags().DurationVar(&flagTimeout, "timeout", 10*time.Second, "how long to wait for the result, 0 waits forever")
	_ = runCmd.MarkFlagRequired("program")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "execute one program locally and print its histogram as JSON",
	RunE:  doRun,
}

// runResult is the JSON document printed by "run".
type runResult struct {
	JobID  int64             `json:"job_id"`
	Counts map[string]uint64 `json:"counts"`
	Total  uint64            `json:"total"`
	Error  string            `json:"error,omitempty"`
}

func doRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	program, err := readProgram(flagProgram)
	if err != nil {
		return err
	}

	reg, exec, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	defer reg.Close()

	tp, shutdownTracing, err := newTracerProvider()
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	eng := engine.New(exec, logger,
		engine.WithTracerProvider(tp),
		engine.WithDeviceName(cfg.DeviceName),
		engine.WithDefaultQubits(cfg.DefaultQubits),
	)
	eng.Start(ctx)
	defer eng.Stop()

	res, err := runProgram(ctx, eng, program, flagShots, flagQubits, flagTimeout)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// runProgram drives one job through the engine the way a device client
// would: session, parameters, submit, wait, results.
func runProgram(ctx context.Context, eng *engine.Engine, program []byte, shots uint64, qubits int32, timeout time.Duration) (*runResult, error) {
	sess := eng.AllocSession()
	defer eng.FreeSession(sess)

	if qubits > 0 {
		if err := eng.SetSessionParameter(sess, model.SessionQubits, engine.EncodeInt32(qubits)); err != nil {
			return nil, err
		}
	}
	if err := eng.InitSession(ctx, sess); err != nil {
		if initErr := eng.InitError(); initErr != nil {
			return nil, fmt.Errorf("%w: executor init: %w", err, initErr)
		}
		return nil, err
	}

	job, err := eng.CreateJob(sess)
	if err != nil {
		return nil, err
	}
	defer eng.Free(job)

	if err := eng.SetJobParameter(job, model.JobProgram, program); err != nil {
		return nil, err
	}
	if err := eng.SetJobParameter(job, model.JobShots, engine.EncodeUint64(shots)); err != nil {
		return nil, err
	}
	if err := eng.Submit(job); err != nil {
		return nil, err
	}
	if err := eng.Wait(ctx, job, timeout); err != nil {
		_ = eng.Cancel(job)
		return nil, err
	}

	h, err := eng.Histogram(job)
	if err != nil {
		return nil, err
	}
	info, err := eng.Describe(job)
	if err != nil {
		return nil, err
	}
	return &runResult{
		JobID:  job.ID(),
		Counts: h.Counts(),
		Total:  h.Total(),
		Error:  info.Error,
	}, nil
}

func readProgram(path string) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read program from stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	return b, nil
}
