package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ponyo877/lounge/server/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memorySink struct {
	mu      sync.Mutex
	events  []Event
	block   chan struct{}
	failing bool
	closed  bool
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Handle(_ context.Context, ev Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if s.failing {
		return errors.New("sink down")
	}
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) kinds() []Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]Kind, 0, len(s.events))
	for _, ev := range s.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func TestDispatcher_Delivers_In_Order_To_Every_Sink(t *testing.T) {
	req := require.New(t)
	first, second := &memorySink{}, &memorySink{failing: true}
	d := NewDispatcher(16, zap.NewNop(), first, second)

	alice := domain.UserSummary{ID: "u1", Name: "Alice"}
	d.UserOnline(alice)
	d.MessageDelivered(domain.NewMessage("general", "hi", alice, time.Now()))
	d.UserOffline(alice)

	req.NoError(d.Close(context.Background()))

	want := []Kind{KindUserOnline, KindMessage, KindUserOffline}
	req.Equal(want, first.kinds())
	// a failing sink does not stop delivery
	req.Equal(want, second.kinds())
	req.True(first.closed)
	req.True(second.closed)
}

func TestDispatcher_Drops_When_Full(t *testing.T) {
	req := require.New(t)
	sink := &memorySink{block: make(chan struct{})}
	d := NewDispatcher(1, zap.NewNop(), sink)

	// the goroutine holds one event in Handle and one sits in the queue
	for i := 0; i < 5; i++ {
		d.UserOnline(domain.UserSummary{ID: "u1"})
	}
	req.Eventually(func() bool { return d.Dropped() >= 3 }, time.Second, 5*time.Millisecond)

	close(sink.block)
	req.NoError(d.Close(context.Background()))
	req.Equal(int64(5), d.Dropped()+int64(len(sink.kinds())))
}

func TestDispatcher_Ignores_Events_After_Close(t *testing.T) {
	req := require.New(t)
	sink := &memorySink{}
	d := NewDispatcher(4, zap.NewNop(), sink)
	req.NoError(d.Close(context.Background()))

	d.UserOnline(domain.UserSummary{ID: "u1"})

	req.Empty(sink.kinds())
	req.NoError(d.Close(context.Background()))
}

func TestNATSPublisher_Subject(t *testing.T) {
	req := require.New(t)
	p := newNATSPublisher(nil, "")
	msg := domain.NewMessage("u1_dm_u2", "hi", domain.UserSummary{ID: "u1"}, time.Now())

	req.Equal("lounge.presence", p.Subject(Event{Kind: KindUserOnline}))
	req.Equal("lounge.rooms.u1_dm_u2", p.Subject(Event{Kind: KindMessage, Message: &msg}))
}
