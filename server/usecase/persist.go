package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrQueueFull     = errors.New("persistence queue full")
	ErrWorkersClosed = errors.New("persistence workers closed")
)

type Job func(ctx context.Context)

// Workers runs store I/O off the connection read loops. Jobs sharing a key
// run on the same worker in submission order.
type Workers struct {
	mu     sync.RWMutex
	closed bool
	queues []chan Job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

func NewWorkers(n, queueSize int, logger *zap.Logger) *Workers {
	if n <= 0 {
		n = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Workers{
		queues: make([]chan Job, n),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	for i := range w.queues {
		w.queues[i] = make(chan Job, queueSize)
		w.wg.Add(1)
		go w.run(i)
	}
	return w
}

func (w *Workers) run(i int) {
	defer w.wg.Done()
	for job := range w.queues[i] {
		w.safeRun(i, job)
	}
}

func (w *Workers) safeRun(i int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("persistence job panicked", zap.Int("worker", i), zap.Any("panic", r))
		}
	}()
	job(w.ctx)
}

func (w *Workers) shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(w.queues)))
}

// Submit enqueues job on the worker owning key without blocking.
func (w *Workers) Submit(key string, job Job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrWorkersClosed
	}
	i := w.shard(key)
	select {
	case w.queues[i] <- job:
		return nil
	default:
		return fmt.Errorf("worker %d: %w", i, ErrQueueFull)
	}
}

// Close stops accepting jobs and waits for queued ones to finish. When ctx
// expires first, running jobs see their context cancelled.
func (w *Workers) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		for _, q := range w.queues {
			close(q)
		}
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		return ctx.Err()
	}
}
