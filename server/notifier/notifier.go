package notifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ponyo877/lounge/server/domain"
	"go.uber.org/zap"
)

type Kind string

const (
	KindUserOnline  Kind = "userOnline"
	KindUserOffline Kind = "userOffline"
	KindMessage     Kind = "message"
)

// Event is one item of the activity feed.
type Event struct {
	Kind    Kind               `json:"type"`
	User    domain.UserSummary `json:"user"`
	Message *domain.Message    `json:"message,omitempty"`
}

// Sink consumes feed events on the dispatcher goroutine.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
	Close() error
}

// Dispatcher implements usecase.Observer. It queues events and hands them
// to every sink from a single goroutine, dropping when the queue is full.
type Dispatcher struct {
	sinks   []Sink
	queue   chan Event
	done    chan struct{}
	dropped atomic.Int64
	logger  *zap.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewDispatcher(queueSize int, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &Dispatcher{
		sinks:  sinks,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	ctx := context.Background()
	for ev := range d.queue {
		for _, s := range d.sinks {
			if err := s.Handle(ctx, ev); err != nil {
				d.logger.Warn("Feed sink failed",
					zap.String("sink", s.Name()),
					zap.String("event", string(ev.Kind)),
					zap.Error(err))
			}
		}
	}
}

func (d *Dispatcher) enqueue(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
	}
}

func (d *Dispatcher) UserOnline(user domain.UserSummary) {
	d.enqueue(Event{Kind: KindUserOnline, User: user})
}

func (d *Dispatcher) UserOffline(user domain.UserSummary) {
	d.enqueue(Event{Kind: KindUserOffline, User: user})
}

func (d *Dispatcher) MessageDelivered(msg domain.Message) {
	d.enqueue(Event{Kind: KindMessage, User: msg.Sender, Message: &msg})
}

func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops intake, waits for queued events until ctx expires and then
// closes every sink.
func (d *Dispatcher) Close(ctx context.Context) error {
	var err error
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		select {
		case <-d.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		for _, s := range d.sinks {
			err = errors.Join(err, s.Close())
		}
	})
	return err
}
