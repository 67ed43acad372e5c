package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ponyo877/lounge/server/domain"
)

type sent struct {
	conn  domain.ConnectionID
	event domain.Event
}

// recordingTransport stores every frame per connection. Broadcast targets
// the connections registered with connect.
type recordingTransport struct {
	mu     sync.Mutex
	conns  []domain.ConnectionID
	frames []sent
}

func (t *recordingTransport) connect(conns ...domain.ConnectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns = append(t.conns, conns...)
}

func (t *recordingTransport) Send(conn domain.ConnectionID, event domain.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = append(t.frames, sent{conn: conn, event: event})
}

func (t *recordingTransport) SendMany(conns []domain.ConnectionID, event domain.Event) {
	for _, c := range conns {
		t.Send(c, event)
	}
}

func (t *recordingTransport) Broadcast(event domain.Event, except ...domain.ConnectionID) {
	t.mu.Lock()
	conns := append([]domain.ConnectionID(nil), t.conns...)
	t.mu.Unlock()
	skip := map[domain.ConnectionID]bool{}
	for _, c := range except {
		skip[c] = true
	}
	for _, c := range conns {
		if !skip[c] {
			t.Send(c, event)
		}
	}
}

func (t *recordingTransport) events(conn domain.ConnectionID, name domain.EventName) []domain.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.Event
	for _, f := range t.frames {
		if f.conn == conn && f.event.Name == name {
			out = append(out, f.event)
		}
	}
	return out
}

// sequence returns the frames conn received whose name is one of names, in
// delivery order.
func (t *recordingTransport) sequence(conn domain.ConnectionID, names ...domain.EventName) []domain.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.Event
	for _, f := range t.frames {
		if f.conn != conn {
			continue
		}
		for _, n := range names {
			if f.event.Name == n {
				out = append(out, f.event)
				break
			}
		}
	}
	return out
}

func (t *recordingTransport) count(name domain.EventName) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, f := range t.frames {
		if f.event.Name == name {
			n++
		}
	}
	return n
}

type recordingObserver struct {
	mu        sync.Mutex
	online    []string
	offline   []string
	delivered []domain.Message
}

func (o *recordingObserver) UserOnline(u domain.UserSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.online = append(o.online, u.ID)
}

func (o *recordingObserver) UserOffline(u domain.UserSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.offline = append(o.offline, u.ID)
}

func (o *recordingObserver) MessageDelivered(m domain.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delivered = append(o.delivered, m)
}

var errStoreDown = errors.New("store down")

type fakeRepo struct {
	mu            sync.Mutex
	failAppend    bool
	failFind      bool
	createdAt     time.Time
	conversations map[[2]string]domain.Conversation
	messages      []domain.PersistedMessage
	finds         int
}

func newFakeRepo(createdAt time.Time) *fakeRepo {
	return &fakeRepo{createdAt: createdAt, conversations: map[[2]string]domain.Conversation{}}
}

func (r *fakeRepo) FindOrCreateConversation(_ context.Context, a, b string) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	if r.failFind {
		return domain.Conversation{}, errStoreDown
	}
	key := domain.SortedPair(a, b)
	c, ok := r.conversations[key]
	if !ok {
		c = domain.NewConversation("conv-"+key[0]+"-"+key[1], a, b, r.createdAt)
		r.conversations[key] = c
	}
	return c, nil
}

func (r *fakeRepo) AppendPersistedMessage(_ context.Context, conversationID, senderID, text string) (domain.PersistedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAppend {
		return domain.PersistedMessage{}, errStoreDown
	}
	m := domain.PersistedMessage{
		ID:             "m",
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		Status:         domain.MessageStatusSent,
		CreatedAt:      r.createdAt,
	}
	r.messages = append(r.messages, m)
	return m, nil
}

func (r *fakeRepo) ListConversations(context.Context, string) ([]domain.Conversation, error) {
	return nil, nil
}

func (r *fakeRepo) ListMessages(context.Context, string) ([]domain.PersistedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PersistedMessage(nil), r.messages...), nil
}

func (r *fakeRepo) SearchMessages(context.Context, string, string) ([]domain.PersistedMessage, error) {
	return nil, nil
}
