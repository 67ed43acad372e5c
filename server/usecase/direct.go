package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ponyo877/lounge/server/domain"
	"go.uber.org/zap"
)

const defaultStoreTimeout = 3 * time.Second

// DirectResolver bootstraps two-party rooms and delivers direct messages,
// persisting them through the conversation store when one is configured.
type DirectResolver struct {
	rooms       *domain.RoomStore
	registry    *domain.Registry
	broadcaster *Broadcaster
	repo        ConversationRepository
	workers     *Workers
	timeout     time.Duration
	now         func() time.Time
	logger      *zap.Logger

	mu            sync.RWMutex
	conversations map[string]string
}

type DirectOption func(*DirectResolver)

// WithConversationStore enables persisted delivery. Store calls run on
// workers.
func WithConversationStore(repo ConversationRepository, workers *Workers, timeout time.Duration) DirectOption {
	return func(d *DirectResolver) {
		d.repo = repo
		d.workers = workers
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithDirectClock(now func() time.Time) DirectOption {
	return func(d *DirectResolver) {
		d.now = now
	}
}

func NewDirectResolver(rooms *domain.RoomStore, registry *domain.Registry, broadcaster *Broadcaster, logger *zap.Logger, opts ...DirectOption) *DirectResolver {
	d := &DirectResolver{
		rooms:         rooms,
		registry:      registry,
		broadcaster:   broadcaster,
		timeout:       defaultStoreTimeout,
		now:           time.Now,
		logger:        logger,
		conversations: make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DirectResolver) persistent() bool {
	return d.repo != nil && d.workers != nil
}

// StartDirect opens the direct room between initiator and target, joins the
// initiator's connection and every live connection of target, and tells both
// sides about it.
func (d *DirectResolver) StartDirect(conn domain.ConnectionID, initiator, target domain.UserSummary) (string, error) {
	if !initiator.IsValid() || !target.IsValid() {
		return "", fmt.Errorf("start direct: %w", domain.ErrMalformedCommand)
	}
	roomID := domain.DirectRoomID(initiator.ID, target.ID)
	name := domain.DirectRoomName(initiator, target)

	d.rooms.GetOrCreate(roomID, name)
	d.rooms.Update(roomID, func(tx domain.RoomTx) {
		tx.Stamp(name, []domain.UserSummary{initiator, target})

		if d.registry.IsAttached(conn) {
			tx.Join(domain.RoomMember{UserID: initiator.ID, DisplayName: initiator.Name, Connection: conn})
		}
		// Read under the room lock: a concurrent disconnect either precedes
		// this read or removes the join right after we release.
		targets := d.registry.ConnectionsFor(target.ID)
		for _, c := range targets {
			tx.Join(domain.RoomMember{UserID: target.ID, DisplayName: target.Name, Connection: c})
		}

		view := tx.View()
		d.broadcaster.Reply(conn, domain.NewEvent(domain.EventDirectRoomReady, domain.DirectRoomReadyPayload{
			RoomID:       roomID,
			Participants: view.Participants,
			History:      view.History,
		}))
		d.broadcaster.NotifyUser(target.ID, domain.NewEvent(domain.EventNewDirectMessage, domain.NewDirectMessagePayload{
			RoomID:  roomID,
			From:    initiator,
			History: view.History,
		}))
		d.broadcaster.NotifyRoomMembersChanged(view)
	})

	if d.persistent() {
		err := d.workers.Submit(roomID, func(ctx context.Context) {
			if _, err := d.conversationFor(ctx, roomID); err != nil {
				d.logger.Warn("conversation bootstrap failed", zap.String("room", roomID), zap.Error(err))
			}
		})
		if err != nil {
			d.logger.Warn("conversation bootstrap not scheduled", zap.String("room", roomID), zap.Error(err))
		}
	}
	return roomID, nil
}

// SendDirect delivers text from sender to the direct room. With a store it
// is persisted first and carries the store timestamp; any failure falls back
// to an ephemeral message on the local clock.
func (d *DirectResolver) SendDirect(roomID string, sender domain.UserSummary, text string) error {
	if _, ok := d.rooms.View(roomID); !ok {
		return fmt.Errorf("send direct to %q: %w", roomID, domain.ErrUnknownRoom)
	}
	if !d.persistent() {
		d.deliverEphemeral(roomID, sender, text, nil)
		return nil
	}

	err := d.workers.Submit(roomID, func(ctx context.Context) {
		msg, err := d.persist(ctx, roomID, sender, text)
		if err != nil {
			d.deliverEphemeral(roomID, sender, text, err)
			return
		}
		d.deliver(msg)
	})
	if err != nil {
		d.deliverEphemeral(roomID, sender, text, err)
	}
	return nil
}

func (d *DirectResolver) persist(ctx context.Context, roomID string, sender domain.UserSummary, text string) (domain.Message, error) {
	conversationID, err := d.conversationFor(ctx, roomID)
	if err != nil {
		return domain.Message{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	stored, err := d.repo.AppendPersistedMessage(ctx, conversationID, sender.ID, text)
	if err != nil {
		return domain.Message{}, fmt.Errorf("append to conversation %s: %w: %w", conversationID, domain.ErrPersistenceUnavailable, err)
	}
	msg := domain.NewMessage(roomID, stored.Text, sender, stored.CreatedAt)
	msg.Persisted = true
	return msg, nil
}

// conversationFor resolves the stored conversation backing a direct room,
// creating it from the room's participants on first use.
func (d *DirectResolver) conversationFor(ctx context.Context, roomID string) (string, error) {
	d.mu.RLock()
	id, ok := d.conversations[roomID]
	d.mu.RUnlock()
	if ok {
		return id, nil
	}

	view, ok := d.rooms.View(roomID)
	if !ok {
		return "", fmt.Errorf("room %q: %w", roomID, domain.ErrUnknownRoom)
	}
	if !view.IsDirect || len(view.Participants) != 2 {
		return "", fmt.Errorf("room %q is not a direct room: %w", roomID, domain.ErrPersistenceUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	conversation, err := d.repo.FindOrCreateConversation(ctx, view.Participants[0].ID, view.Participants[1].ID)
	if err != nil {
		return "", fmt.Errorf("find conversation for %q: %w: %w", roomID, domain.ErrPersistenceUnavailable, err)
	}

	d.mu.Lock()
	d.conversations[roomID] = conversation.ID
	d.mu.Unlock()
	return conversation.ID, nil
}

func (d *DirectResolver) ConversationOf(roomID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.conversations[roomID]
	return id, ok
}

func (d *DirectResolver) deliverEphemeral(roomID string, sender domain.UserSummary, text string, cause error) {
	if cause != nil {
		d.logger.Warn("direct message not persisted, delivering ephemeral copy",
			zap.String("room", roomID), zap.String("sender", sender.ID), zap.Error(cause))
	}
	d.deliver(domain.NewMessage(roomID, text, sender, d.now()))
}

func (d *DirectResolver) deliver(msg domain.Message) {
	d.rooms.Append(msg.RoomID, msg, func(view domain.RoomView) {
		d.broadcaster.NotifyMessage(view, domain.NewDirectMessageEvent(msg), msg)
	})
}
