package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ponyo877/lounge/server/adaptor"
	"github.com/ponyo877/lounge/server/domain"
	"github.com/ponyo877/lounge/server/usecase"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLoungeServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	hub := adaptor.NewHub(logger)
	registry := domain.NewRegistry()
	rooms := domain.NewRoomStore(domain.HistoryLimit, nil)
	broadcaster := usecase.NewBroadcaster(hub, registry, nil)
	direct := usecase.NewDirectResolver(rooms, registry, broadcaster, logger)
	handler := usecase.NewSessionHandler(registry, rooms, broadcaster, direct, logger)
	srv := httptest.NewServer(adaptor.NewRouter(adaptor.RouterConfig{
		Adaptor:  adaptor.NewAdaptor(hub, handler, adaptor.Options{}, logger),
		Presence: registry,
		Rooms:    rooms,
		Logger:   logger,
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestSession_Room_Commands(t *testing.T) {
	req := require.New(t)
	url := newLoungeServer(t)
	ctx := context.Background()

	// Given two identified sessions
	alice, err := dial(ctx, url, domain.UserSummary{ID: "u1", Name: "Alice"})
	req.NoError(err)
	defer alice.Close()
	bob, err := dial(ctx, url+"/ws", domain.UserSummary{ID: "u2", Name: "Bob"})
	req.NoError(err)
	defer bob.Close()

	// When alice joins and writes to a room
	history, err := alice.join(ctx, "general")
	req.NoError(err)
	req.Empty(history)
	req.NoError(alice.emit(domain.CommandSendMessage, domain.SendMessageCommand{RoomID: "general", Message: "hi", Sender: alice.ref()}))
	_, err = alice.await(ctx, domain.EventMessage)
	req.NoError(err)

	// Then bob sees the room and its history
	rooms, err := bob.rooms(ctx)
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal("general", rooms[0].ID)
	req.Equal(1, rooms[0].UserCount)

	history, err = bob.join(ctx, "general")
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("Alice: hi", history[0].String())
}

func TestSession_Direct_Room(t *testing.T) {
	req := require.New(t)
	url := newLoungeServer(t)
	ctx := context.Background()

	alice, err := dial(ctx, url, domain.UserSummary{ID: "u1", Name: "Alice"})
	req.NoError(err)
	defer alice.Close()
	bob, err := dial(ctx, url, domain.UserSummary{ID: "u2", Name: "Bob"})
	req.NoError(err)
	defer bob.Close()

	start := domain.StartDirectMessageCommand{CurrentUser: alice.ref(), TargetUser: bob.ref()}
	req.NoError(alice.emit(domain.CommandStartDirectMessage, start))
	f, err := alice.await(ctx, domain.EventDirectRoomReady)
	req.NoError(err)

	var ready domain.DirectRoomReadyPayload
	req.NoError(json.Unmarshal(f.Data, &ready))
	req.Equal("u1_dm_u2", ready.RoomID)

	// bob is pulled into the room
	_, err = bob.await(ctx, domain.EventNewDirectMessage)
	req.NoError(err)
	req.NoError(alice.emit(domain.CommandSendDirectMessage, domain.SendMessageCommand{RoomID: ready.RoomID, Message: "psst", Sender: alice.ref()}))
	f, err = bob.await(ctx, domain.EventDirectMessage)
	req.NoError(err)
	var m domain.Message
	req.NoError(json.Unmarshal(f.Data, &m))
	req.Equal("psst", m.Text)
}

func TestSession_Await_Times_Out_When_Closed(t *testing.T) {
	req := require.New(t)
	url := newLoungeServer(t)

	s, err := dial(context.Background(), url, domain.UserSummary{ID: "u1", Name: "Alice"})
	req.NoError(err)
	req.NoError(s.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = s.await(ctx, domain.EventRoomsList)
	req.Error(err)
}

func TestSession_Close_With_Undrained_Frames(t *testing.T) {
	req := require.New(t)
	url := newLoungeServer(t)
	ctx := context.Background()

	// Given bob is in a busy room and never reads
	alice, err := dial(ctx, url, domain.UserSummary{ID: "u1", Name: "Alice"})
	req.NoError(err)
	defer alice.Close()
	bob, err := dial(ctx, url, domain.UserSummary{ID: "u2", Name: "Bob"})
	req.NoError(err)
	_, err = bob.join(ctx, "general")
	req.NoError(err)
	for i := range 2 * cap(bob.frames) {
		req.NoError(alice.emit(domain.CommandSendMessage, domain.SendMessageCommand{RoomID: "general", Message: fmt.Sprintf("m%d", i), Sender: alice.ref()}))
	}
	req.Eventually(func() bool { return len(bob.frames) == cap(bob.frames) }, 5*time.Second, 10*time.Millisecond)

	// When bob closes the session
	closed := make(chan error, 1)
	go func() { closed <- bob.Close() }()

	// Then the read loop exits without anyone draining its frames
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		req.Fail("session did not close")
	}
	select {
	case <-bob.exited:
	default:
		req.Fail("read loop still running")
	}
}

func TestRoomArg(t *testing.T) {
	req := require.New(t)
	t.Cleanup(func() { viper.Set(currentRoomKey, "") })

	viper.Set(currentRoomKey, "")
	_, err := roomArg(nil, 0)
	req.Error(err)

	viper.Set(currentRoomKey, "general")
	room, err := roomArg([]string{"hello"}, 1)
	req.NoError(err)
	req.Equal("general", room)

	room, err = roomArg([]string{"hello", "random"}, 1)
	req.NoError(err)
	req.Equal("random", room)
}

func TestPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2025, 6, 1, 12, 0, 5, 0, time.Local)

	printMessage(&buf, domain.NewMessage("general", "hi", domain.UserSummary{ID: "u1", Name: "Alice"}, ts))
	printMessage(&buf, domain.Message{RoomID: "general", Text: "welcome", Timestamp: ts, IsSystem: true})

	require.Equal(t, "[12:00:05] Alice: hi\n[12:00:05] system: welcome\n", buf.String())
}

func TestTypists(t *testing.T) {
	req := require.New(t)
	ty := newTypists()
	req.Empty(ty.String())

	ty.add(domain.UserSummary{ID: "u1", Name: "Alice"})
	req.Equal("[gray]Alice is typing...", ty.String())

	ty.add(domain.UserSummary{ID: "u2", Name: "Bob"})
	req.Equal("[gray]2 people are typing...", ty.String())

	ty.remove("u1")
	ty.remove("u2")
	req.Empty(ty.String())
}
