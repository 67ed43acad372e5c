package adaptor

import (
	"encoding/json"

	"github.com/ponyo877/lounge/server/domain"
)

type SessionHandler interface {
	Connect(conn domain.ConnectionID, handshake domain.UserSummary)
	Handle(conn domain.ConnectionID, name domain.CommandName, data json.RawMessage)
	Disconnect(conn domain.ConnectionID)
}

type PresenceReader interface {
	ListOnline() []domain.UserSummary
	OnlineCount() int
}

type RoomReader interface {
	Summaries() []domain.RoomSummary
	Count() int
}

// DeliveryStats reports the state of outbound queues.
type DeliveryStats interface {
	Count() int
	Dropped() uint64
}
