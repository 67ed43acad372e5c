package domain

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// RoomStore owns every ephemeral room. mu guards only the map; each room
// carries its own lock. The map lock is never held while a room lock is
// taken.
type RoomStore struct {
	mu           sync.RWMutex
	rooms        map[string]*Room
	historyLimit int
	now          func() time.Time
}

func NewRoomStore(historyLimit int, now func() time.Time) *RoomStore {
	if historyLimit <= 0 {
		historyLimit = HistoryLimit
	}
	if now == nil {
		now = time.Now
	}
	return &RoomStore{
		rooms:        make(map[string]*Room),
		historyLimit: historyLimit,
		now:          now,
	}
}

// GetOrCreate returns the room for roomID, creating it with defaultName
// (or roomID when empty) if it does not exist yet.
func (s *RoomStore) GetOrCreate(roomID, defaultName string) (*Room, bool) {
	if room, ok := s.get(roomID); ok {
		return room, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.rooms[roomID]; ok {
		return room, false
	}
	if defaultName == "" {
		defaultName = roomID
	}
	room := newRoom(roomID, defaultName, s.historyLimit, s.now())
	s.rooms[roomID] = room
	return room, true
}

func (s *RoomStore) get(roomID string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *RoomStore) all() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Values(s.rooms)
}

// Update runs fn with the room locked. It reports false for an unknown room.
func (s *RoomStore) Update(roomID string, fn func(tx RoomTx)) bool {
	room, ok := s.get(roomID)
	if !ok {
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	fn(RoomTx{room: room})
	return true
}

func (s *RoomStore) Join(roomID string, member RoomMember, then func(RoomView)) bool {
	return s.Update(roomID, func(tx RoomTx) {
		tx.Join(member)
		if then != nil {
			then(tx.View())
		}
	})
}

// Leave removes the subscriber conn and the member bound to it. then runs
// only when something was removed.
func (s *RoomStore) Leave(roomID string, conn ConnectionID, then func(RoomView)) bool {
	changed := false
	s.Update(roomID, func(tx RoomTx) {
		if !tx.Leave(conn) {
			return
		}
		changed = true
		if then != nil {
			then(tx.View())
		}
	})
	return changed
}

// RemoveConnectionEverywhere detaches conn from every room and returns the
// ids of the rooms that changed.
func (s *RoomStore) RemoveConnectionEverywhere(conn ConnectionID, then func(RoomView)) []string {
	var affected []string
	for _, room := range s.all() {
		room.mu.Lock()
		if room.leave(conn) {
			affected = append(affected, room.id)
			if then != nil {
				then(room.view())
			}
		}
		room.mu.Unlock()
	}
	sort.Strings(affected)
	return affected
}

// Append adds msg to the room history, evicting the oldest message past
// the limit. Unknown rooms drop the message.
func (s *RoomStore) Append(roomID string, msg Message, then func(RoomView)) bool {
	return s.Update(roomID, func(tx RoomTx) {
		tx.Append(msg)
		if then != nil {
			then(tx.View())
		}
	})
}

func (s *RoomStore) Stamp(roomID, name string, participants []UserSummary) bool {
	return s.Update(roomID, func(tx RoomTx) {
		tx.Stamp(name, participants)
	})
}

// placeholderName is what clients send as room name before a direct room
// has been stamped.
const placeholderName = "Direct Message"

// Relabel renames a room whose name is still its id or the client
// placeholder. Rooms created implicitly by a join take their id as name
// until someone supplies one.
func (s *RoomStore) Relabel(roomID, name string) bool {
	if name == "" {
		return false
	}
	renamed := false
	s.Update(roomID, func(tx RoomTx) {
		if tx.room.isDirect {
			return
		}
		if tx.room.name == tx.room.id || tx.room.name == placeholderName {
			tx.room.name = name
			renamed = true
		}
	})
	return renamed
}

func (s *RoomStore) View(roomID string) (RoomView, bool) {
	var view RoomView
	ok := s.Update(roomID, func(tx RoomTx) {
		view = tx.View()
	})
	return view, ok
}

func (s *RoomStore) Summaries() []RoomSummary {
	rooms := s.all()
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		room.mu.Lock()
		summaries = append(summaries, room.summary())
		room.mu.Unlock()
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries
}

func (s *RoomStore) MembersOf(roomID string) []UserSummary {
	view, ok := s.View(roomID)
	if !ok {
		return []UserSummary{}
	}
	return lo.UniqBy(view.MemberSummaries(), func(u UserSummary) string { return u.ID })
}

func (s *RoomStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rooms)
}
