package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes feed events as JSON. Presence goes to
// <prefix>.presence and room messages to <prefix>.rooms.<roomId>.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("lounge"),
		nats.ReconnectWait(500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats %s: %w", url, err)
	}
	return newNATSPublisher(nc, prefix), nil
}

func newNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = "lounge"
	}
	return &NATSPublisher{nc: nc, prefix: prefix}
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Subject(ev Event) string {
	if ev.Kind == KindMessage && ev.Message != nil {
		return p.prefix + ".rooms." + ev.Message.RoomID
	}
	return p.prefix + ".presence"
}

func (p *NATSPublisher) Handle(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ev.Kind, err)
	}
	msg := nats.NewMsg(p.Subject(ev))
	msg.Data = data
	msg.Header.Add("Lounge-Event", string(ev.Kind))
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	return nil
}
