package usecase

import (
	"github.com/ponyo877/lounge/server/domain"
	"github.com/samber/lo"
)

// Broadcaster turns engine state changes into outbound events. It keeps no
// state; every audience is read from the registry or a room view at call
// time.
type Broadcaster struct {
	transport Transport
	registry  *domain.Registry
	observer  Observer
}

func NewBroadcaster(transport Transport, registry *domain.Registry, observer Observer) *Broadcaster {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Broadcaster{
		transport: transport,
		registry:  registry,
		observer:  observer,
	}
}

func (b *Broadcaster) NotifyUserOnline(user domain.UserSummary, except ...domain.ConnectionID) {
	b.transport.Broadcast(domain.NewUserOnlineEvent(user), except...)
	b.observer.UserOnline(user)
}

func (b *Broadcaster) NotifyUserOffline(user domain.UserSummary) {
	b.transport.Broadcast(domain.NewUserOfflineEvent(user))
	b.observer.UserOffline(user)
}

func (b *Broadcaster) NotifyPresenceSnapshot(conn domain.ConnectionID, users []domain.UserSummary) {
	b.transport.Send(conn, domain.NewPresenceSnapshotEvent(users))
}

func (b *Broadcaster) NotifyRoomMembersChanged(view domain.RoomView) {
	b.transport.SendMany(view.Subscribers, domain.NewRoomMembersEvent(view.ID, view.MemberSummaries()))
}

// NotifyRoom sends event to every subscriber of the room except the listed
// connections.
func (b *Broadcaster) NotifyRoom(view domain.RoomView, event domain.Event, except ...domain.ConnectionID) {
	audience := view.Subscribers
	if len(except) > 0 {
		audience = lo.Without(view.Subscribers, except...)
	}
	b.transport.SendMany(audience, event)
}

// NotifyMessage fans a delivered message out to the room and reports it to
// the observer.
func (b *Broadcaster) NotifyMessage(view domain.RoomView, event domain.Event, msg domain.Message) {
	b.NotifyRoom(view, event)
	b.observer.MessageDelivered(msg)
}

// NotifyUser sends event to every connection the user currently holds.
func (b *Broadcaster) NotifyUser(userID string, event domain.Event) {
	conns := b.registry.ConnectionsFor(userID)
	if len(conns) == 0 {
		return
	}
	b.transport.SendMany(conns, event)
}

func (b *Broadcaster) Reply(conn domain.ConnectionID, event domain.Event) {
	b.transport.Send(conn, event)
}

func (b *Broadcaster) NotifyAll(event domain.Event) {
	b.transport.Broadcast(event)
}
