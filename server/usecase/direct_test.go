package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/ponyo877/lounge/server/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startDirect(e *engine, conn domain.ConnectionID, from, to domain.UserSummary) {
	e.send(conn, domain.CommandStartDirectMessage, map[string]any{
		"currentUser": map[string]string{"id": from.ID, "name": from.Name},
		"targetUser":  map[string]string{"id": to.ID, "name": to.Name},
	})
}

func sendDirect(e *engine, conn domain.ConnectionID, roomID string, from domain.UserSummary, text string) {
	e.send(conn, domain.CommandSendDirectMessage, map[string]any{
		"roomId":  roomID,
		"message": text,
		"sender":  map[string]string{"id": from.ID, "name": from.Name},
	})
}

var (
	alice = domain.UserSummary{ID: "u1", Name: "Alice"}
	bob   = domain.UserSummary{ID: "u2", Name: "Bob"}
)

func TestDirect_Start_Joins_Both_Sides(t *testing.T) {
	req := require.New(t)
	e := newEngine()
	e.identify("c1", alice.ID, alice.Name)
	e.identify("c2", bob.ID, bob.Name)
	roomID := domain.DirectRoomID(alice.ID, bob.ID)

	// When alice starts a direct conversation with bob
	startDirect(e, "c1", alice, bob)

	// Then both are joined to the derived room
	view, ok := e.rooms.View(roomID)
	req.True(ok)
	req.True(view.IsDirect)
	req.Equal("Alice & Bob", view.Name)
	req.Equal([]domain.UserSummary{alice, bob}, view.MemberSummaries())
	req.Equal([]domain.UserSummary{alice, bob}, view.Participants)

	ready := e.transport.events("c1", domain.EventDirectRoomReady)
	req.Len(ready, 1)
	req.Equal(roomID, ready[0].Payload.(domain.DirectRoomReadyPayload).RoomID)

	invites := e.transport.events("c2", domain.EventNewDirectMessage)
	req.Len(invites, 1)
	req.Equal(alice, invites[0].Payload.(domain.NewDirectMessagePayload).From)

	// When bob starts it the other way round
	startDirect(e, "c2", bob, alice)

	// Then the same room is reused and relabelled
	ready = e.transport.events("c2", domain.EventDirectRoomReady)
	req.Len(ready, 1)
	req.Equal(roomID, ready[0].Payload.(domain.DirectRoomReadyPayload).RoomID)
	view, _ = e.rooms.View(roomID)
	req.Equal("Bob & Alice", view.Name)
	req.Equal(1, e.rooms.Count())
}

func TestDirect_Start_Overwrites_Implicit_Room(t *testing.T) {
	req := require.New(t)
	e := newEngine()
	e.identify("c1", alice.ID, alice.Name)
	roomID := domain.DirectRoomID(alice.ID, bob.ID)

	// Given a join created the room with a generic name
	e.send("c1", domain.CommandJoinRoom, map[string]any{
		"roomId":   roomID,
		"roomName": "Direct Message",
		"user":     map[string]string{"id": alice.ID, "name": alice.Name},
	})

	startDirect(e, "c1", alice, bob)

	view, _ := e.rooms.View(roomID)
	req.True(view.IsDirect)
	req.Equal("Alice & Bob", view.Name)
	// bob is offline, so only alice is joined
	req.Equal([]domain.UserSummary{alice}, view.MemberSummaries())
}

func TestDirect_Start_Reaches_Every_Target_Connection(t *testing.T) {
	req := require.New(t)
	e := newEngine()
	e.identify("c1", alice.ID, alice.Name)

	// Given bob is online on two connections
	e.identify("c2", bob.ID, bob.Name)
	e.identify("c3", bob.ID, bob.Name)

	// When alice starts a direct conversation with bob
	startDirect(e, "c1", alice, bob)

	// Then both of bob's connections are invited and joined
	roomID := domain.DirectRoomID(alice.ID, bob.ID)
	view, _ := e.rooms.View(roomID)
	for _, c := range []domain.ConnectionID{"c2", "c3"} {
		invites := e.transport.events(c, domain.EventNewDirectMessage)
		req.Len(invites, 1, "connection %s", c)
		req.Equal(roomID, invites[0].Payload.(domain.NewDirectMessagePayload).RoomID)
		req.True(view.HasSubscriber(c))
	}
	req.Empty(e.transport.events("c1", domain.EventNewDirectMessage))
}

func TestDirect_Stale_Target_Connection_Not_Joined(t *testing.T) {
	req := require.New(t)
	e := newEngine()
	e.identify("c1", alice.ID, alice.Name)
	e.identify("c2", bob.ID, bob.Name)

	// Given bob disconnected
	e.handler.Disconnect("c2")

	startDirect(e, "c1", alice, bob)

	view, _ := e.rooms.View(domain.DirectRoomID(alice.ID, bob.ID))
	req.False(view.HasSubscriber("c2"))
	req.Empty(e.transport.events("c2", domain.EventNewDirectMessage))
}

func TestDirect_Start_With_Self_Is_Rejected(t *testing.T) {
	req := require.New(t)
	e := newEngine()
	e.identify("c1", alice.ID, alice.Name)

	startDirect(e, "c1", alice, alice)

	req.Equal(0, e.rooms.Count())
}

func TestDirect_Send_Without_Store_Is_Ephemeral(t *testing.T) {
	req := require.New(t)
	e := newEngine()
	e.identify("c1", alice.ID, alice.Name)
	e.identify("c2", bob.ID, bob.Name)
	startDirect(e, "c1", alice, bob)
	roomID := domain.DirectRoomID(alice.ID, bob.ID)

	sendDirect(e, "c1", roomID, alice, "hey")

	got := e.transport.events("c2", domain.EventDirectMessage)
	req.Len(got, 1)
	msg := got[0].Payload.(domain.Message)
	req.Equal("hey", msg.Text)
	req.Equal(testNow, msg.Timestamp)
	req.False(msg.Persisted)

	view, _ := e.rooms.View(roomID)
	req.Len(view.History, 1)
}

func TestDirect_Send_Persists_With_Store_Timestamp(t *testing.T) {
	req := require.New(t)
	stored := testNow.Add(-time.Hour)
	repo := newFakeRepo(stored)
	workers := NewWorkers(4, 16, zap.NewNop())
	e := newEngine(WithConversationStore(repo, workers, time.Second))
	e.identify("c1", alice.ID, alice.Name)
	e.identify("c2", bob.ID, bob.Name)
	startDirect(e, "c1", alice, bob)
	roomID := domain.DirectRoomID(alice.ID, bob.ID)

	// When alice sends two direct messages
	sendDirect(e, "c1", roomID, alice, "one")
	sendDirect(e, "c1", roomID, alice, "two")
	req.NoError(workers.Close(context.Background()))

	// Then both are stored in order and delivered with the store timestamp
	got := e.transport.events("c2", domain.EventDirectMessage)
	req.Len(got, 2)
	first := got[0].Payload.(domain.Message)
	req.Equal("one", first.Text)
	req.Equal(stored, first.Timestamp)
	req.True(first.Persisted)
	req.Equal("two", got[1].Payload.(domain.Message).Text)

	messages, _ := repo.ListMessages(context.Background(), "")
	req.Len(messages, 2)
	req.Equal("conv-u1-u2", messages[0].ConversationID)

	conversationID, ok := e.handler.direct.ConversationOf(roomID)
	req.True(ok)
	req.Equal("conv-u1-u2", conversationID)
	req.Equal(1, repo.finds)
}

func TestDirect_Send_Falls_Back_On_Store_Error(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo(testNow.Add(-time.Hour))
	repo.failAppend = true
	workers := NewWorkers(1, 16, zap.NewNop())
	e := newEngine(WithConversationStore(repo, workers, time.Second))
	e.identify("c1", alice.ID, alice.Name)
	e.identify("c2", bob.ID, bob.Name)
	startDirect(e, "c1", alice, bob)
	roomID := domain.DirectRoomID(alice.ID, bob.ID)

	sendDirect(e, "c1", roomID, alice, "still arrives")
	req.NoError(workers.Close(context.Background()))

	got := e.transport.events("c2", domain.EventDirectMessage)
	req.Len(got, 1)
	msg := got[0].Payload.(domain.Message)
	req.Equal("still arrives", msg.Text)
	req.Equal(testNow, msg.Timestamp)
	req.False(msg.Persisted)
}

func TestDirect_Send_To_Plain_Room_Falls_Back(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo(testNow.Add(-time.Hour))
	workers := NewWorkers(1, 16, zap.NewNop())
	e := newEngine(WithConversationStore(repo, workers, time.Second))
	e.identify("c1", alice.ID, alice.Name)
	e.join("c1", "general", alice.ID, alice.Name)

	sendDirect(e, "c1", "general", alice, "not a dm room")
	req.NoError(workers.Close(context.Background()))

	got := e.transport.events("c1", domain.EventDirectMessage)
	req.Len(got, 1)
	req.False(got[0].Payload.(domain.Message).Persisted)
	req.Equal(0, repo.finds)
}

func TestDirect_Send_When_Workers_Closed_Falls_Back(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo(testNow)
	workers := NewWorkers(1, 1, zap.NewNop())
	e := newEngine(WithConversationStore(repo, workers, time.Second))
	e.identify("c1", alice.ID, alice.Name)
	startDirect(e, "c1", alice, bob)
	req.NoError(workers.Close(context.Background()))

	sendDirect(e, "c1", domain.DirectRoomID(alice.ID, bob.ID), alice, "late")

	got := e.transport.events("c1", domain.EventDirectMessage)
	req.Len(got, 1)
	req.False(got[0].Payload.(domain.Message).Persisted)
}
