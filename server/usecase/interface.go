package usecase

import (
	"context"

	"github.com/ponyo877/lounge/server/domain"
)

// Transport delivers events to live connections. Implementations must not
// block: the engine calls them while holding room and registry locks.
type Transport interface {
	Send(conn domain.ConnectionID, event domain.Event)
	SendMany(conns []domain.ConnectionID, event domain.Event)
	Broadcast(event domain.Event, except ...domain.ConnectionID)
}

// ConversationRepository is the external store for persistent direct
// conversations.
type ConversationRepository interface {
	FindOrCreateConversation(ctx context.Context, userA, userB string) (domain.Conversation, error)
	AppendPersistedMessage(ctx context.Context, conversationID, senderID, text string) (domain.PersistedMessage, error)
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.PersistedMessage, error)
	SearchMessages(ctx context.Context, conversationID, pattern string) ([]domain.PersistedMessage, error)
}

// Observer is notified of engine activity after the fact. Calls may happen
// under engine locks, so implementations hand off and return.
type Observer interface {
	UserOnline(user domain.UserSummary)
	UserOffline(user domain.UserSummary)
	MessageDelivered(msg domain.Message)
}

type nopObserver struct{}

func (nopObserver) UserOnline(domain.UserSummary)   {}
func (nopObserver) UserOffline(domain.UserSummary)  {}
func (nopObserver) MessageDelivered(domain.Message) {}
