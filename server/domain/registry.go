package domain

import (
	"fmt"
	"sort"
	"sync"
)

// Registry tracks which connections belong to which user. A user is online
// exactly while its connection set is non-empty.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*UserPresence
	byConn map[ConnectionID]string
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*UserPresence),
		byConn: make(map[ConnectionID]string),
	}
}

// Attach binds conn to user. Re-attaching the same pair is a no-op. onOnline
// runs under the registry lock when the user goes from zero to one
// connection.
func (r *Registry) Attach(conn ConnectionID, user UserSummary, onOnline func(UserSummary)) (bool, error) {
	if conn == "" || !user.IsValid() {
		return false, fmt.Errorf("attach %q: %w", conn, ErrMalformedCommand)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byConn[conn]; ok {
		if owner != user.ID {
			return false, fmt.Errorf("attach %q as %q, bound to %q: %w", conn, user.ID, owner, ErrConflictingIdentity)
		}
		return false, nil
	}

	presence, ok := r.byUser[user.ID]
	if !ok {
		presence = newUserPresence(user)
		r.byUser[user.ID] = presence
	} else if user.Name != "" {
		presence.User.Name = user.Name
	}
	presence.Connections[conn] = struct{}{}
	r.byConn[conn] = user.ID

	newlyOnline := len(presence.Connections) == 1
	if newlyOnline && onOnline != nil {
		onOnline(presence.User)
	}
	return newlyOnline, nil
}

// Detach unbinds conn. ok is false for a connection that was never
// attached. onOffline runs under the registry lock when the last
// connection of the user goes away.
func (r *Registry) Detach(conn ConnectionID, onOffline func(UserSummary)) (UserSummary, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[conn]
	if !ok {
		return UserSummary{}, false, false
	}
	delete(r.byConn, conn)

	presence := r.byUser[userID]
	user := presence.User
	delete(presence.Connections, conn)
	if len(presence.Connections) > 0 {
		return user, false, true
	}

	delete(r.byUser, userID)
	if onOffline != nil {
		onOffline(user)
	}
	return user, true, true
}

func (r *Registry) ListOnline() []UserSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]UserSummary, 0, len(r.byUser))
	for _, presence := range r.byUser {
		users = append(users, presence.User)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (r *Registry) ConnectionsFor(userID string) []ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	presence, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	conns := make([]ConnectionID, 0, len(presence.Connections))
	for conn := range presence.Connections {
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i] < conns[j] })
	return conns
}

func (r *Registry) UserOf(conn ConnectionID) (UserSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.byConn[conn]
	if !ok {
		return UserSummary{}, false
	}
	return r.byUser[userID].User, true
}

func (r *Registry) IsAttached(conn ConnectionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byConn[conn]
	return ok
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byUser[userID]
	return ok
}

func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser)
}
