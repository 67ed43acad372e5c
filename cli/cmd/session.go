/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ponyo877/lounge/server/domain"
)

var errSessionClosed = errors.New("session closed")

const replyTimeout = 10 * time.Second

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// session is one WebSocket connection to the lounge server. Frames are read
// on a background goroutine and handed out in arrival order.
type session struct {
	conn   *websocket.Conn
	user   domain.UserSummary
	frames chan frame
	errc   chan error
	done   chan struct{}
	exited chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// dial connects with the identity in the handshake query and waits until
// the server confirms it with a presence snapshot.
func dial(ctx context.Context, serverURL string, user domain.UserSummary) (*session, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	}
	q := u.Query()
	q.Set("userId", user.ID)
	q.Set("name", user.Name)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("did not connect to %s: %w", u.Redacted(), err)
	}
	s := &session{
		conn:   conn,
		user:   user,
		frames: make(chan frame, 64),
		errc:   make(chan error, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go s.readLoop()

	if _, err := s.await(ctx, domain.EventPresenceSnapshot); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("identify as %s: %w", user, err)
	}
	return s, nil
}

func (s *session) readLoop() {
	defer close(s.exited)
	defer close(s.frames)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.errc <- err
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		select {
		case s.frames <- f:
		case <-s.done:
			return
		}
	}
}

func (s *session) emit(name domain.CommandName, data any) error {
	b, err := json.Marshal(frame{Event: string(name), Data: mustJSON(data)})
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func mustJSON(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// await skips frames until one of names arrives.
func (s *session) await(ctx context.Context, names ...domain.EventName) (frame, error) {
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	for {
		select {
		case f, ok := <-s.frames:
			if !ok {
				return frame{}, s.closeErr()
			}
			for _, n := range names {
				if f.Event == string(n) {
					return f, nil
				}
			}
		case <-ctx.Done():
			return frame{}, fmt.Errorf("waiting for %v: %w", names, ctx.Err())
		}
	}
}

// next returns the following frame without a reply deadline.
func (s *session) next(ctx context.Context) (frame, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			return frame{}, s.closeErr()
		}
		return f, nil
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}

func (s *session) closeErr() error {
	select {
	case err := <-s.errc:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return errSessionClosed
		}
		return fmt.Errorf("%w: %v", errSessionClosed, err)
	default:
		return errSessionClosed
	}
}

func (s *session) ref() domain.UserRef {
	return domain.UserRef{ID: s.user.ID, Name: s.user.Name}
}

// join subscribes to roomID and returns its history.
func (s *session) join(ctx context.Context, roomID string) ([]domain.Message, error) {
	if err := s.emit(domain.CommandJoinRoom, domain.JoinRoomCommand{RoomID: roomID, User: s.ref()}); err != nil {
		return nil, err
	}
	f, err := s.await(ctx, domain.EventPreviousMessages)
	if err != nil {
		return nil, err
	}
	var history []domain.Message
	if err := json.Unmarshal(f.Data, &history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return history, nil
}

func (s *session) rooms(ctx context.Context) ([]domain.RoomSummary, error) {
	if err := s.emit(domain.CommandListRooms, nil); err != nil {
		return nil, err
	}
	f, err := s.await(ctx, domain.EventRoomsList)
	if err != nil {
		return nil, err
	}
	var rooms []domain.RoomSummary
	if err := json.Unmarshal(f.Data, &rooms); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return rooms, nil
}

// Close ends the session and waits for the read loop, which stops even when
// nobody drains the pending frames.
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
		<-s.exited
	})
	return err
}
