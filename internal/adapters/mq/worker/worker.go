// Package worker runs batch prediction jobs pulled from the job queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/flightrisk/internal/adapters/mq/queue"
	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/pkg/logger"
	"github.com/okian/flightrisk/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Predictor produces a prediction for one flight.
type Predictor interface {
	Predict(ctx context.Context, req *model.FlightRequest) (*model.Result, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing prediction jobs.
type InMemoryWorker struct {
	queue     Queue
	predictor Predictor
	name      string
	active    *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, p Predictor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		predictor: p,
		name:      "worker",
		active:    new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.process(j)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job and replies with its batch item. Jobs whose caller
// has already gone are answered without running the prediction.
func (w *InMemoryWorker) process(j queue.Job) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	ctx := j.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	item := model.BatchItem{Index: j.Index}

	if err := ctx.Err(); err != nil {
		item.Error = err.Error()
		j.Reply <- item
		return
	}

	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	start := time.Now()
	res, err := w.predictor.Predict(ctx, &j.Request)
	metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))

	if err != nil {
		metrics.RecordWorkerError()
		w.logger.Warn(ctx, "batch prediction failed",
			logger.Int("index", j.Index),
			logger.Error(err))
		item.Error = err.Error()
	} else {
		item.Result = res
	}
	j.Reply <- item
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, p Predictor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}

	active := new(atomic.Int64)
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, p, WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i].active = active
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for every worker to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
