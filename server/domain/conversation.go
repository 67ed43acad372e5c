package domain

import "time"

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// Conversation is a two-party thread held by the external store.
type Conversation struct {
	ID            string     `json:"id"`
	Participants  [2]string  `json:"participants"`
	LastMessage   string     `json:"lastMessage,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func NewConversation(id, userA, userB string, now time.Time) Conversation {
	return Conversation{
		ID:           id,
		Participants: SortedPair(userA, userB),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (c Conversation) Includes(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

type PersistedMessage struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	SenderID       string        `json:"senderId"`
	Text           string        `json:"text"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}
