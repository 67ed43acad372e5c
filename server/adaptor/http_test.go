package adaptor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ponyo877/lounge/server/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryStore struct {
	conversations map[string]domain.Conversation
	messages      map[string][]domain.PersistedMessage
	fail          error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		conversations: map[string]domain.Conversation{},
		messages:      map[string][]domain.PersistedMessage{},
	}
}

func (s *memoryStore) FindOrCreateConversation(_ context.Context, a, b string) (domain.Conversation, error) {
	if s.fail != nil {
		return domain.Conversation{}, s.fail
	}
	pair := domain.SortedPair(a, b)
	id := pair[0] + ":" + pair[1]
	if c, ok := s.conversations[id]; ok {
		return c, nil
	}
	c := domain.NewConversation(id, a, b, time.Unix(0, 0).UTC())
	s.conversations[id] = c
	return c, nil
}

func (s *memoryStore) AppendPersistedMessage(_ context.Context, id, sender, text string) (domain.PersistedMessage, error) {
	if _, ok := s.conversations[id]; !ok {
		return domain.PersistedMessage{}, domain.ErrNotFound
	}
	m := domain.PersistedMessage{ID: "m1", ConversationID: id, SenderID: sender, Text: text, Status: domain.MessageStatusSent}
	s.messages[id] = append(s.messages[id], m)
	return m, nil
}

func (s *memoryStore) ListConversations(_ context.Context, userID string) ([]domain.Conversation, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	var out []domain.Conversation
	for _, c := range s.conversations {
		if c.Includes(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memoryStore) ListMessages(_ context.Context, id string) ([]domain.PersistedMessage, error) {
	return s.messages[id], nil
}

func (s *memoryStore) SearchMessages(_ context.Context, id, pattern string) ([]domain.PersistedMessage, error) {
	if pattern == "(" {
		return nil, domain.ErrInvalidPattern
	}
	var out []domain.PersistedMessage
	for _, m := range s.messages[id] {
		if strings.Contains(m.Text, pattern) {
			out = append(out, m)
		}
	}
	return out, nil
}

func newTestRouter(store ConversationStore) (*gin.Engine, *domain.Registry, *domain.RoomStore) {
	gin.SetMode(gin.TestMode)
	registry := domain.NewRegistry()
	rooms := domain.NewRoomStore(domain.HistoryLimit, nil)
	r := NewRouter(RouterConfig{
		Presence: registry,
		Rooms:    rooms,
		Store:    store,
		Logger:   zap.NewNop(),
	})
	return r, registry, rooms
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestRouter_Health_And_State(t *testing.T) {
	req := require.New(t)
	r, registry, rooms := newTestRouter(nil)
	_, err := registry.Attach("c1", domain.NewUserSummary("u1", "Alice"), nil)
	req.NoError(err)
	rooms.GetOrCreate("general", "General")

	w, body := do(r, http.MethodGet, "/healthz", "")
	req.Equal(http.StatusOK, w.Code)
	req.Equal("ok", body["status"])
	req.EqualValues(1, body["online"])
	req.EqualValues(1, body["rooms"])

	w, body = do(r, http.MethodGet, "/api/rooms", "")
	req.Equal(http.StatusOK, w.Code)
	req.Len(body["rooms"], 1)

	w, body = do(r, http.MethodGet, "/api/online", "")
	req.Equal(http.StatusOK, w.Code)
	req.Equal([]any{map[string]any{"id": "u1", "name": "Alice"}}, body["users"])
}

func TestRouter_Health_Reports_Dropped_Frames(t *testing.T) {
	req := require.New(t)
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop())
	r := NewRouter(RouterConfig{
		Presence: domain.NewRegistry(),
		Rooms:    domain.NewRoomStore(domain.HistoryLimit, nil),
		Delivery: hub,
		Logger:   zap.NewNop(),
	})

	// Given a connection whose send queue has no room
	hub.register(&client{id: "c1", send: make(chan []byte)})

	// When an event is sent to it
	hub.Send("c1", domain.NewUserOnlineEvent(domain.NewUserSummary("u1", "Alice")))

	// Then the frame is dropped and counted
	w, body := do(r, http.MethodGet, "/healthz", "")
	req.Equal(http.StatusOK, w.Code)
	req.EqualValues(1, body["connections"])
	req.EqualValues(1, body["dropped"])
}

func TestRouter_Conversations_Without_Store(t *testing.T) {
	req := require.New(t)
	r, _, _ := newTestRouter(nil)

	w, body := do(r, http.MethodGet, "/api/conversations?userId=u1", "")

	req.Equal(http.StatusServiceUnavailable, w.Code)
	req.Equal(false, body["success"])
}

func TestRouter_Conversation_Flow(t *testing.T) {
	req := require.New(t)
	r, _, _ := newTestRouter(newMemoryStore())

	// Missing receiver
	w, body := do(r, http.MethodPost, "/api/conversations", `{"senderId":"u1"}`)
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal(false, body["success"])

	// Create
	w, body = do(r, http.MethodPost, "/api/conversations", `{"senderId":"u2","receiverId":"u1"}`)
	req.Equal(http.StatusOK, w.Code)
	req.Equal(true, body["success"])
	conversation := body["conversation"].(map[string]any)
	req.Equal("u1:u2", conversation["id"])

	// Send
	w, _ = do(r, http.MethodPost, "/api/conversations/u1:u2/messages", `{"senderId":"u1","text":"hello there"}`)
	req.Equal(http.StatusOK, w.Code)
	w, _ = do(r, http.MethodPost, "/api/conversations/u1:u2/messages", `{"senderId":"u2","text":"bye"}`)
	req.Equal(http.StatusOK, w.Code)

	// Unknown conversation
	w, _ = do(r, http.MethodPost, "/api/conversations/nope/messages", `{"senderId":"u1","text":"x"}`)
	req.Equal(http.StatusNotFound, w.Code)

	// List and search
	w, body = do(r, http.MethodGet, "/api/conversations/u1:u2/messages", "")
	req.Equal(http.StatusOK, w.Code)
	req.Len(body["messages"], 2)

	w, body = do(r, http.MethodGet, "/api/conversations/u1:u2/messages?q=hello", "")
	req.Equal(http.StatusOK, w.Code)
	req.Len(body["messages"], 1)

	w, _ = do(r, http.MethodGet, "/api/conversations/u1:u2/messages?q=(", "")
	req.Equal(http.StatusBadRequest, w.Code)

	w, body = do(r, http.MethodGet, "/api/conversations?userId=u2", "")
	req.Equal(http.StatusOK, w.Code)
	req.Len(body["conversations"], 1)

	w, _ = do(r, http.MethodGet, "/api/conversations", "")
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestRouter_Store_Error(t *testing.T) {
	req := require.New(t)
	store := newMemoryStore()
	store.fail = errors.New("connection refused")
	r, _, _ := newTestRouter(store)

	w, body := do(r, http.MethodGet, "/api/conversations?userId=u1", "")

	req.Equal(http.StatusInternalServerError, w.Code)
	req.Equal(false, body["success"])
}
