package db

import (
	"context"
	"database/sql"
)

// TxFn is one unit of write work, run inside a transaction on the writer
// goroutine.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// Worker funnels every write transaction through one goroutine.  SQLite
// allows a single writer at a time, and the consuming transitions on
// passes and prompts (use counters, the redeem flag) are read-modify-write
// sequences that must not interleave; queueing them here makes each Do
// call atomic without busy-wait retries on SQLITE_BUSY.
type Worker struct {
	conn    *sql.DB
	pending chan writeJob
	stopped chan struct{}
}

type writeJob struct {
	ctx context.Context
	fn  TxFn
	res chan error
}

// NewWorker starts the writer goroutine.  The queue absorbs a burst of
// gate scans; callers block in Do once it fills.
func NewWorker(conn *sql.DB) *Worker {
	w := &Worker{
		conn:    conn,
		pending: make(chan writeJob, 64),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

// Close drains the queue and stops the writer.  Do must not be called
// after Close.
func (w *Worker) Close() {
	close(w.pending)
	<-w.stopped
}

// Do queues fn and waits for its transaction to commit or roll back.  If
// ctx expires first the caller gets ctx.Err(); a job already picked up by
// the writer still runs to completion, its result discarded via the
// buffered res channel.
func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	j := writeJob{ctx: ctx, fn: fn, res: make(chan error, 1)}

	select {
	case w.pending <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run() {
	defer close(w.stopped)

	for j := range w.pending {
		j.res <- w.runTx(j.ctx, j.fn)
	}
}

func (w *Worker) runTx(ctx context.Context, fn TxFn) error {
	tx, err := w.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
