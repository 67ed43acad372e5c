package adaptor

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ponyo877/lounge/server/domain"
)

var ErrBadFrame = errors.New("bad frame")

// Frame is the envelope of every WebSocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func EncodeEvent(event domain.Event) ([]byte, error) {
	b, err := json.Marshal(outbound{Event: event.Name.String(), Data: event.Payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.Name, err)
	}
	return b, nil
}

func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("%w: missing event", ErrBadFrame)
	}
	return f, nil
}
