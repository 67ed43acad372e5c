package domain

// EventName is the wire name of a server to client event.
type EventName string

const (
	EventPresenceSnapshot   EventName = "presenceSnapshot"
	EventUserOnline         EventName = "userOnline"
	EventUserOffline        EventName = "userOffline"
	EventRoomMembersChanged EventName = "roomMembersChanged"
	EventPreviousMessages   EventName = "previousMessages"
	EventMessage            EventName = "message"
	EventRoomCreated        EventName = "roomCreated"
	EventRoomCreatedSuccess EventName = "roomCreatedSuccess"
	EventRoomsList          EventName = "roomsList"
	EventUserTyping         EventName = "userTyping"
	EventUserStoppedTyping  EventName = "userStoppedTyping"
	EventDirectRoomReady    EventName = "directRoomReady"
	EventNewDirectMessage   EventName = "newDirectMessage"
	EventDirectMessage      EventName = "directMessage"
)

func (n EventName) String() string {
	return string(n)
}

type Event struct {
	Name    EventName
	Payload any
}

func NewEvent(name EventName, payload any) Event {
	return Event{Name: name, Payload: payload}
}

type PresencePayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type RoomMembersPayload struct {
	RoomID  string        `json:"roomId"`
	Members []UserSummary `json:"members"`
}

type RoomCreatedPayload struct {
	RoomID    string `json:"roomId"`
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy"`
}

type RoomCreatedAckPayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

type TypingPayload struct {
	RoomID string      `json:"roomId"`
	User   UserSummary `json:"user"`
}

type DirectRoomReadyPayload struct {
	RoomID       string        `json:"roomId"`
	Participants []UserSummary `json:"participants"`
	History      []Message     `json:"history"`
}

type NewDirectMessagePayload struct {
	RoomID  string      `json:"roomId"`
	From    UserSummary `json:"from"`
	History []Message   `json:"history"`
}

func NewUserOnlineEvent(user UserSummary) Event {
	return NewEvent(EventUserOnline, PresencePayload{UserID: user.ID, Name: user.Name})
}

func NewUserOfflineEvent(user UserSummary) Event {
	return NewEvent(EventUserOffline, PresencePayload{UserID: user.ID, Name: user.Name})
}

func NewPresenceSnapshotEvent(users []UserSummary) Event {
	if users == nil {
		users = []UserSummary{}
	}
	return NewEvent(EventPresenceSnapshot, users)
}

func NewRoomMembersEvent(roomID string, members []UserSummary) Event {
	if members == nil {
		members = []UserSummary{}
	}
	return NewEvent(EventRoomMembersChanged, RoomMembersPayload{RoomID: roomID, Members: members})
}

func NewPreviousMessagesEvent(history []Message) Event {
	if history == nil {
		history = []Message{}
	}
	return NewEvent(EventPreviousMessages, history)
}

func NewMessageEvent(msg Message) Event {
	return NewEvent(EventMessage, msg)
}

func NewDirectMessageEvent(msg Message) Event {
	return NewEvent(EventDirectMessage, msg)
}

func NewRoomsListEvent(rooms []RoomSummary) Event {
	if rooms == nil {
		rooms = []RoomSummary{}
	}
	return NewEvent(EventRoomsList, rooms)
}
