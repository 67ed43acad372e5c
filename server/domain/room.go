package domain

import (
	"sort"
	"sync"
	"time"
)

const HistoryLimit = 100

// RoomMember is the membership record of one user in one room. A rejoin
// from another connection overwrites Connection.
type RoomMember struct {
	UserID      string
	DisplayName string
	Connection  ConnectionID
}

func (m RoomMember) Summary() UserSummary {
	return UserSummary{ID: m.UserID, Name: m.DisplayName}
}

type RoomSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserCount int       `json:"userCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// history keeps the most recent messages of a room, oldest first.
type history struct {
	buf   []Message
	start int
	size  int
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = HistoryLimit
	}
	return &history{buf: make([]Message, limit)}
}

func (h *history) push(m Message) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = m
		h.size++
		return
	}
	h.buf[h.start] = m
	h.start = (h.start + 1) % len(h.buf)
}

func (h *history) snapshot() []Message {
	out := make([]Message, h.size)
	for i := range h.size {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

type Room struct {
	mu           sync.Mutex
	id           string
	name         string
	isDirect     bool
	participants []UserSummary
	createdAt    time.Time
	members      map[string]RoomMember
	subscribers  map[ConnectionID]struct{}
	history      *history
}

func newRoom(id, name string, historyLimit int, createdAt time.Time) *Room {
	return &Room{
		id:          id,
		name:        name,
		createdAt:   createdAt,
		members:     make(map[string]RoomMember),
		subscribers: make(map[ConnectionID]struct{}),
		history:     newHistory(historyLimit),
	}
}

func (r *Room) ID() string {
	return r.id
}

func (r *Room) join(m RoomMember) {
	r.members[m.UserID] = m
	if m.Connection != "" {
		r.subscribers[m.Connection] = struct{}{}
	}
}

func (r *Room) leave(conn ConnectionID) bool {
	changed := false
	if _, ok := r.subscribers[conn]; ok {
		delete(r.subscribers, conn)
		changed = true
	}
	for userID, m := range r.members {
		if m.Connection == conn {
			delete(r.members, userID)
			changed = true
		}
	}
	return changed
}

func (r *Room) summary() RoomSummary {
	return RoomSummary{
		ID:        r.id,
		Name:      r.name,
		UserCount: len(r.members),
		CreatedAt: r.createdAt,
	}
}

func (r *Room) view() RoomView {
	members := make([]RoomMember, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })

	subscribers := make([]ConnectionID, 0, len(r.subscribers))
	for conn := range r.subscribers {
		subscribers = append(subscribers, conn)
	}
	sort.Slice(subscribers, func(i, j int) bool { return subscribers[i] < subscribers[j] })

	return RoomView{
		ID:           r.id,
		Name:         r.name,
		IsDirect:     r.isDirect,
		Participants: append([]UserSummary(nil), r.participants...),
		CreatedAt:    r.createdAt,
		Members:      members,
		Subscribers:  subscribers,
		History:      r.history.snapshot(),
	}
}

// RoomView is a copy of a room's state taken under its lock.
type RoomView struct {
	ID           string
	Name         string
	IsDirect     bool
	Participants []UserSummary
	CreatedAt    time.Time
	Members      []RoomMember
	Subscribers  []ConnectionID
	History      []Message
}

func (v RoomView) MemberSummaries() []UserSummary {
	out := make([]UserSummary, 0, len(v.Members))
	for _, m := range v.Members {
		out = append(out, m.Summary())
	}
	return out
}

func (v RoomView) HasSubscriber(conn ConnectionID) bool {
	for _, c := range v.Subscribers {
		if c == conn {
			return true
		}
	}
	return false
}

// RoomTx exposes a room while its lock is held by RoomStore.Update.
type RoomTx struct {
	room *Room
}

func (tx RoomTx) Join(m RoomMember) {
	tx.room.join(m)
}

func (tx RoomTx) Leave(conn ConnectionID) bool {
	return tx.room.leave(conn)
}

func (tx RoomTx) Append(m Message) {
	tx.room.history.push(m)
}

// Stamp marks the room as a direct room between participants and
// overwrites its display name.
func (tx RoomTx) Stamp(name string, participants []UserSummary) {
	tx.room.isDirect = true
	tx.room.name = name
	tx.room.participants = append([]UserSummary(nil), participants...)
}

func (tx RoomTx) View() RoomView {
	return tx.room.view()
}
