package domain

import "time"

type Message struct {
	RoomID    string      `json:"roomId"`
	Text      string      `json:"text"`
	Sender    UserSummary `json:"sender"`
	Timestamp time.Time   `json:"timestamp"`
	IsSystem  bool        `json:"isSystem"`

	// Persisted is true when the external store accepted the message.
	// Clients cannot tell the difference.
	Persisted bool `json:"-"`
}

func NewMessage(roomID, text string, sender UserSummary, timestamp time.Time) Message {
	return Message{
		RoomID:    roomID,
		Text:      text,
		Sender:    sender,
		Timestamp: timestamp,
	}
}

func (m Message) String() string {
	if m.IsSystem {
		return "system: " + m.Text
	}
	return m.Sender.Name + ": " + m.Text
}
