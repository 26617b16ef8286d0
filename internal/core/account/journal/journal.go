// Package journal exports accepted transactions to external sinks. The
// export is write only: the ledger never reads its state back from a sink.
package journal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rschio/ledger/internal/core/account"
)

// Sink writes a batch of transactions somewhere.
type Sink interface {
	Write(ctx context.Context, ts []account.Transaction) error
}

// Config is the batching configuration of a Journal.
type Config struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

// Journal buffers transactions handed to Record and writes them to a sink
// in batches from a single goroutine launched by Start. A sink must not
// retain the batch slice after Write returns.
type Journal struct {
	log  *slog.Logger
	sink Sink
	cfg  Config

	ch      chan account.Transaction
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
	dropped atomic.Int64
	written atomic.Int64

	// mu orders Record against Close so nothing is queued after the
	// final drain.
	mu     sync.RWMutex
	closed bool
}

// New constructs a Journal. Zero config values are replaced by defaults.
func New(log *slog.Logger, sink Sink, cfg Config) *Journal {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4096
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	return &Journal{
		log:  log,
		sink: sink,
		cfg:  cfg,
		ch:   make(chan account.Transaction, cfg.BufferSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Record queues t without blocking. When the buffer is full or the journal
// is closed t is dropped.
func (j *Journal) Record(t account.Transaction) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		j.dropped.Add(1)
		return
	}

	select {
	case j.ch <- t:
	default:
		j.dropped.Add(1)
	}
}

// Dropped returns how many transactions were dropped because the buffer
// was full or the journal was closed.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Written returns how many transactions the sink accepted.
func (j *Journal) Written() int64 {
	return j.written.Load()
}

// Start launches the goroutine writing queued transactions until ctx is
// done or Close is called. The transactions still queued at that point are
// flushed before the goroutine exits. Start after Close does nothing.
func (j *Journal) Start(ctx context.Context) {
	if j.started.Swap(true) {
		return
	}
	go j.run(ctx)
}

func (j *Journal) run(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]account.Transaction, 0, j.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		j.write(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case t := <-j.ch:
			batch = append(batch, t)
			if len(batch) >= j.cfg.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-ctx.Done():
			j.drain(ctx, batch)
			return

		case <-j.stop:
			j.drain(ctx, batch)
			return
		}
	}
}

func (j *Journal) drain(ctx context.Context, batch []account.Transaction) {
	for {
		select {
		case t := <-j.ch:
			batch = append(batch, t)
			if len(batch) >= j.cfg.BatchSize {
				j.write(ctx, batch)
				batch = batch[:0]
			}
		default:
			if len(batch) > 0 {
				j.write(ctx, batch)
			}
			return
		}
	}
}

func (j *Journal) write(ctx context.Context, batch []account.Transaction) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.cfg.WriteTimeout)
	defer cancel()

	if err := j.sink.Write(ctx, batch); err != nil {
		j.log.ErrorContext(ctx, "journal write", "ERROR", err, "transactions", len(batch))
		return
	}
	j.written.Add(int64(len(batch)))
}

// Close stops the journal and waits for the remaining transactions to be
// flushed. If Start never ran they are flushed by the caller.
func (j *Journal) Close() {
	j.mu.Lock()
	j.closed = true
	j.mu.Unlock()

	j.once.Do(func() { close(j.stop) })
	if !j.started.Swap(true) {
		j.drain(context.Background(), nil)
		close(j.done)
	}
	<-j.done
}

// Multi writes every batch to all sinks and joins their errors.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) Write(ctx context.Context, ts []account.Transaction) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, ts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
