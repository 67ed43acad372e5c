package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/ponyo877/lounge/server/domain"
	"go.uber.org/zap"
)

// SessionHandler drives the per-connection protocol. Connections move from
// anonymous to identified with identify (or a handshake identity) and then
// join and leave rooms freely.
type SessionHandler struct {
	registry    *domain.Registry
	rooms       *domain.RoomStore
	broadcaster *Broadcaster
	direct      *DirectResolver
	logger      *zap.Logger
	now         func() time.Time
	newRoomID   func() string

	// handshake user ids, used when identify omits one
	mu    sync.Mutex
	hints map[domain.ConnectionID]string
}

type SessionOption func(*SessionHandler)

func WithSessionClock(now func() time.Time) SessionOption {
	return func(h *SessionHandler) {
		h.now = now
	}
}

func WithRoomIDGenerator(gen func() string) SessionOption {
	return func(h *SessionHandler) {
		h.newRoomID = gen
	}
}

func NewSessionHandler(
	registry *domain.Registry,
	rooms *domain.RoomStore,
	broadcaster *Broadcaster,
	direct *DirectResolver,
	logger *zap.Logger,
	opts ...SessionOption,
) *SessionHandler {
	h := &SessionHandler{
		registry:    registry,
		rooms:       rooms,
		broadcaster: broadcaster,
		direct:      direct,
		logger:      logger,
		now:         time.Now,
		newRoomID:   NewRoomID,
		hints:       make(map[domain.ConnectionID]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRoomID returns a fresh id for a user-created room.
func NewRoomID() string {
	return "room_" + strings.ToLower(ulid.Make().String())
}

// Connect registers a new connection. A handshake identity with both id and
// name identifies the connection right away.
func (h *SessionHandler) Connect(conn domain.ConnectionID, handshake domain.UserSummary) {
	if handshake.ID != "" {
		h.mu.Lock()
		h.hints[conn] = handshake.ID
		h.mu.Unlock()
	}
	if handshake.IsValid() && handshake.Name != "" {
		h.identify(conn, handshake)
	}
}

// Handle decodes and executes one inbound command. Errors are logged and
// absorbed; clients only ever observe missing events.
func (h *SessionHandler) Handle(conn domain.ConnectionID, name domain.CommandName, data json.RawMessage) {
	cmd, err := domain.DecodeCommand(name, data)
	if err != nil {
		h.logger.Warn("dropping command", zap.String("conn", string(conn)), zap.String("command", string(name)), zap.Error(err))
		return
	}

	switch c := cmd.(type) {
	case *domain.IdentifyCommand:
		err = h.handleIdentify(conn, c)
	case *domain.JoinRoomCommand:
		err = h.handleJoinRoom(conn, c)
	case *domain.LeaveRoomCommand:
		err = h.handleLeaveRoom(conn, c)
	case *domain.CreateRoomCommand:
		err = h.handleCreateRoom(conn, c)
	case *domain.SendMessageCommand:
		if name == domain.CommandSendDirectMessage {
			err = h.direct.SendDirect(c.RoomID, h.senderOf(conn, c.Sender), c.Message)
		} else {
			err = h.handleSendMessage(conn, c)
		}
	case *domain.StartDirectMessageCommand:
		err = h.handleStartDirect(conn, c)
	case *domain.TypingCommand:
		err = h.handleTyping(conn, name, c)
	case *domain.GetRoomUsersCommand:
		h.broadcaster.Reply(conn, domain.NewRoomMembersEvent(c.RoomID, h.rooms.MembersOf(c.RoomID)))
	default:
		switch name {
		case domain.CommandListRooms:
			h.broadcaster.Reply(conn, domain.NewRoomsListEvent(h.rooms.Summaries()))
		case domain.CommandGetOnlineUsers:
			h.broadcaster.NotifyPresenceSnapshot(conn, h.registry.ListOnline())
		}
	}

	if err != nil {
		level := zap.WarnLevel
		if errors.Is(err, domain.ErrUnknownRoom) {
			level = zap.DebugLevel
		}
		h.logger.Log(level, "command failed", zap.String("conn", string(conn)), zap.String("command", string(name)), zap.Error(err))
	}
}

// Disconnect tears down everything bound to conn: its identity first, then
// its room memberships.
func (h *SessionHandler) Disconnect(conn domain.ConnectionID) {
	user, wentOffline, ok := h.registry.Detach(conn, h.broadcaster.NotifyUserOffline)
	affected := h.rooms.RemoveConnectionEverywhere(conn, h.broadcaster.NotifyRoomMembersChanged)

	h.mu.Lock()
	delete(h.hints, conn)
	h.mu.Unlock()

	if ok {
		h.logger.Info("connection closed",
			zap.String("conn", string(conn)),
			zap.String("user", user.ID),
			zap.Bool("offline", wentOffline),
			zap.Strings("rooms", affected))
	}
}

func (h *SessionHandler) identify(conn domain.ConnectionID, user domain.UserSummary) error {
	newlyOnline, err := h.registry.Attach(conn, user, func(u domain.UserSummary) {
		h.broadcaster.NotifyUserOnline(u, conn)
	})
	if err != nil {
		return err
	}
	h.broadcaster.NotifyPresenceSnapshot(conn, h.registry.ListOnline())
	h.logger.Info("identified", zap.String("conn", string(conn)), zap.Stringer("user", user), zap.Bool("online", newlyOnline))
	return nil
}

func (h *SessionHandler) handleIdentify(conn domain.ConnectionID, c *domain.IdentifyCommand) error {
	userID := c.UserID
	if userID == "" {
		h.mu.Lock()
		userID = h.hints[conn]
		h.mu.Unlock()
	}
	if userID == "" {
		userID = string(conn)
	}
	return h.identify(conn, domain.NewUserSummary(userID, c.Name))
}

// identity returns the identified user of conn with name as display name
// when given.
func (h *SessionHandler) identity(conn domain.ConnectionID, name string) (domain.UserSummary, error) {
	user, ok := h.registry.UserOf(conn)
	if !ok {
		return domain.UserSummary{}, fmt.Errorf("connection %s: %w", conn, domain.ErrNotIdentified)
	}
	if name = strings.TrimSpace(name); name != "" {
		user.Name = name
	}
	return user, nil
}

// senderOf prefers the connection identity over the claimed sender.
func (h *SessionHandler) senderOf(conn domain.ConnectionID, claimed domain.UserRef) domain.UserSummary {
	if user, err := h.identity(conn, claimed.Name); err == nil {
		return user
	}
	return claimed.Summary()
}

func (h *SessionHandler) handleJoinRoom(conn domain.ConnectionID, c *domain.JoinRoomCommand) error {
	user, err := h.identity(conn, c.User.Name)
	if err != nil {
		return err
	}

	if _, created := h.rooms.GetOrCreate(c.RoomID, c.RoomName); !created {
		h.rooms.Relabel(c.RoomID, c.RoomName)
	}
	member := domain.RoomMember{UserID: user.ID, DisplayName: user.Name, Connection: conn}
	h.rooms.Join(c.RoomID, member, func(view domain.RoomView) {
		h.broadcaster.Reply(conn, domain.NewPreviousMessagesEvent(view.History))
		h.broadcaster.NotifyRoomMembersChanged(view)
	})
	return nil
}

func (h *SessionHandler) handleLeaveRoom(conn domain.ConnectionID, c *domain.LeaveRoomCommand) error {
	if !h.rooms.Leave(c.RoomID, conn, h.broadcaster.NotifyRoomMembersChanged) {
		return fmt.Errorf("leave %q: not a member: %w", c.RoomID, domain.ErrUnknownRoom)
	}
	return nil
}

func (h *SessionHandler) handleCreateRoom(conn domain.ConnectionID, c *domain.CreateRoomCommand) error {
	user, err := h.identity(conn, c.User.Name)
	if err != nil {
		return err
	}

	roomID := h.newRoomID()
	h.rooms.GetOrCreate(roomID, c.RoomName)
	h.broadcaster.NotifyAll(domain.NewEvent(domain.EventRoomCreated, domain.RoomCreatedPayload{
		RoomID:    roomID,
		Name:      c.RoomName,
		CreatedBy: user.Name,
	}))
	h.broadcaster.Reply(conn, domain.NewEvent(domain.EventRoomCreatedSuccess, domain.RoomCreatedAckPayload{
		RoomID: roomID,
		Name:   c.RoomName,
	}))
	h.logger.Info("room created", zap.String("room", roomID), zap.String("name", c.RoomName), zap.String("by", user.ID))
	return nil
}

// handleSendMessage appends to the room and fans out under the room lock.
// Membership of the sender is not checked.
func (h *SessionHandler) handleSendMessage(conn domain.ConnectionID, c *domain.SendMessageCommand) error {
	msg := domain.NewMessage(c.RoomID, c.Message, h.senderOf(conn, c.Sender), h.now())
	ok := h.rooms.Append(c.RoomID, msg, func(view domain.RoomView) {
		h.broadcaster.NotifyMessage(view, domain.NewMessageEvent(msg), msg)
	})
	if !ok {
		return fmt.Errorf("send to %q: %w", c.RoomID, domain.ErrUnknownRoom)
	}
	return nil
}

func (h *SessionHandler) handleStartDirect(conn domain.ConnectionID, c *domain.StartDirectMessageCommand) error {
	initiator, err := h.identity(conn, c.CurrentUser.Name)
	if err != nil {
		return err
	}
	target := c.TargetUser.Summary()
	if target.ID == initiator.ID {
		return fmt.Errorf("direct room with self: %w", domain.ErrMalformedCommand)
	}
	roomID, err := h.direct.StartDirect(conn, initiator, target)
	if err != nil {
		return err
	}
	h.logger.Info("direct room ready", zap.String("room", roomID), zap.String("from", initiator.ID), zap.String("to", target.ID))
	return nil
}

func (h *SessionHandler) handleTyping(conn domain.ConnectionID, name domain.CommandName, c *domain.TypingCommand) error {
	event := domain.EventUserTyping
	if name == domain.CommandStopTyping {
		event = domain.EventUserStoppedTyping
	}
	payload := domain.TypingPayload{RoomID: c.RoomID, User: h.senderOf(conn, c.User)}
	ok := h.rooms.Update(c.RoomID, func(tx domain.RoomTx) {
		h.broadcaster.NotifyRoom(tx.View(), domain.NewEvent(event, payload), conn)
	})
	if !ok {
		return fmt.Errorf("%s in %q: %w", name, c.RoomID, domain.ErrUnknownRoom)
	}
	return nil
}
