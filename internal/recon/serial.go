package recon

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"
)

// SerialWriter funnels every PaymentIntent/ForwardingRecord mutation through
// a single worker. Those records are updated by unordered, retry-prone,
// externally-triggered events; a pool of exactly one worker gives a total
// order to the writes within this process, while the durable unique
// constraint and version guard in the repositories cover multi-instance
// deployments. Outcome polling reads stay off the writer; the forwarding
// check-post-record sequence runs on it as a single task.
type SerialWriter struct {
	pool   *ants.Pool
	logger *slog.Logger
}

// NewSerialWriter creates the single-writer queue
func NewSerialWriter(logger *slog.Logger) (*SerialWriter, error) {
	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	return &SerialWriter{
		pool:   pool,
		logger: logger,
	}, nil
}

// Do submits a mutation to the writer and waits for its result. Calls are
// executed strictly one at a time in submission order.
func (w *SerialWriter) Do(ctx context.Context, task func(ctx context.Context) error) error {
	resultChan := make(chan error, 1)

	err := w.pool.Submit(func() {
		resultChan <- task(ctx)
		close(resultChan)
	})
	if err != nil {
		w.logger.Error("Failed to submit task to serial writer", "error", err)
		return err
	}

	return <-resultChan
}

// Shutdown gracefully releases the worker
func (w *SerialWriter) Shutdown() {
	w.logger.Info("Shutting down serial writer", "running_workers", w.pool.Running())
	w.pool.Release()
}

// Running returns the number of running workers (0 or 1)
func (w *SerialWriter) Running() int {
	return w.pool.Running()
}
