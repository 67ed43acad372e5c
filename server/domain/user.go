package domain

import "strings"

// ConnectionID identifies one live bidirectional channel. The transport
// assigns it on connect; the engine only stores and compares it.
type ConnectionID string

type UserSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewUserSummary(id, name string) UserSummary {
	return UserSummary{
		ID:   strings.TrimSpace(id),
		Name: strings.TrimSpace(name),
	}
}

func (u UserSummary) IsValid() bool {
	return u.ID != ""
}

func (u UserSummary) String() string {
	if u.Name == "" {
		return u.ID
	}
	return u.Name + "(" + u.ID + ")"
}

// UserPresence is the registry's record of an online user.
type UserPresence struct {
	User        UserSummary
	Connections map[ConnectionID]struct{}
}

func newUserPresence(user UserSummary) *UserPresence {
	return &UserPresence{
		User:        user,
		Connections: make(map[ConnectionID]struct{}),
	}
}
