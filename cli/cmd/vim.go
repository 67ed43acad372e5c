package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/ponyo877/lounge/server/domain"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
)

const typingIdle = 3 * time.Second

var vimCmd = &cobra.Command{
	Use:   "vim [room]",
	Short: "Opens a room in a tview-based chat interface",
	Long: `Joins a room and opens a chat interface.
You can type messages at the bottom and see the room history and live messages above.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := roomArg(args, 0)
		if err != nil {
			return err
		}
		return runChatUITview(cmd.Context(), lounge, roomID)
	},
}

func init() {
	rootCmd.AddCommand(vimCmd)
}

func runChatUITview(parent context.Context, s *session, roomID string) error {
	app := tview.NewApplication()

	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true).
		SetScrollable(true).
		ScrollToEnd()

	status := tview.NewTextView().SetDynamicColors(true)

	inputField := tview.NewInputField().
		SetLabel(s.user.Name + " ❯❯ ").
		SetFieldWidth(0).
		SetAcceptanceFunc(tview.InputFieldMaxLength(5000))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(textView, 0, 1, false).
		AddItem(status, 1, 0, false).
		AddItem(inputField, 1, 0, true)

	app.SetRoot(flex, true).SetFocus(inputField)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	history, err := s.join(ctx, roomID)
	if err != nil {
		return fmt.Errorf("join %s: %w", roomID, err)
	}
	for _, m := range history {
		writeMessage(textView, m)
	}
	fmt.Fprintf(textView, "[green]Welcome to %s! You are %s. (Ctrl+C to exit)\n", roomID, s.user.Name)
	textView.ScrollToEnd()

	direct := strings.Contains(roomID, domain.DirectSeparator)
	typists := newTypists()

	go func() {
		for {
			f, err := s.next(ctx)
			if err != nil {
				if ctx.Err() == nil {
					app.QueueUpdateDraw(func() {
						fmt.Fprintf(textView, "[red]Connection lost: %v\n", err)
					})
				}
				return
			}
			switch domain.EventName(f.Event) {
			case domain.EventMessage, domain.EventDirectMessage:
				var m domain.Message
				if json.Unmarshal(f.Data, &m) != nil || m.RoomID != roomID {
					continue
				}
				typists.remove(m.Sender.ID)
				app.QueueUpdateDraw(func() {
					writeMessage(textView, m)
					status.SetText(typists.String())
					textView.ScrollToEnd()
				})
			case domain.EventUserTyping, domain.EventUserStoppedTyping:
				var p domain.TypingPayload
				if json.Unmarshal(f.Data, &p) != nil || p.RoomID != roomID {
					continue
				}
				if f.Event == string(domain.EventUserTyping) {
					typists.add(p.User)
				} else {
					typists.remove(p.User.ID)
				}
				app.QueueUpdateDraw(func() {
					status.SetText(typists.String())
				})
			case domain.EventRoomMembersChanged:
				var p domain.RoomMembersPayload
				if json.Unmarshal(f.Data, &p) != nil || p.RoomID != roomID {
					continue
				}
				app.QueueUpdateDraw(func() {
					fmt.Fprintf(textView, "[gray]%d in room\n", len(p.Members))
				})
			}
		}
	}()

	typing := false
	stopTyping := func() {
		if typing {
			typing = false
			_ = s.emit(domain.CommandStopTyping, domain.TypingCommand{RoomID: roomID, User: s.ref()})
		}
	}
	idle := time.AfterFunc(typingIdle, func() { app.QueueUpdate(stopTyping) })
	idle.Stop()
	defer idle.Stop()
	inputField.SetChangedFunc(func(text string) {
		if text == "" {
			idle.Stop()
			stopTyping()
			return
		}
		if !typing {
			typing = true
			_ = s.emit(domain.CommandTyping, domain.TypingCommand{RoomID: roomID, User: s.ref()})
		}
		idle.Reset(typingIdle)
	})

	// Send messages when Enter is pressed
	inputField.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(inputField.GetText())
		if text == "" {
			return
		}
		name := domain.CommandSendMessage
		if direct {
			name = domain.CommandSendDirectMessage
		}
		if err := s.emit(name, domain.SendMessageCommand{RoomID: roomID, Message: text, Sender: s.ref()}); err != nil {
			fmt.Fprintf(textView, "[red]Failed to send message: %v\n", err)
		}
		inputField.SetText("")
		stopTyping()
	})

	// Leave and exit on Ctrl+C
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			stopTyping()
			_ = s.emit(domain.CommandLeaveRoom, domain.LeaveRoomCommand{RoomID: roomID, User: s.ref()})
			cancel()
			app.Stop()
			return nil
		}
		return event
	})

	return app.Run()
}

func writeMessage(w *tview.TextView, m domain.Message) {
	ts := m.Timestamp.Local().Format("15:04:05")
	if m.IsSystem {
		fmt.Fprintf(w, "[white][%s] [yellow]%s\n", ts, tview.Escape(m.Text))
		return
	}
	fmt.Fprintf(w, "[white][%s] [blue]%s[white]: %s\n", ts, tview.Escape(m.Sender.Name), tview.Escape(m.Text))
}

// typists tracks who is typing in the open room.
type typists struct {
	mu    sync.Mutex
	users map[string]string
}

func newTypists() *typists {
	return &typists{users: make(map[string]string)}
}

func (t *typists) add(u domain.UserSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users[u.ID] = u.Name
}

func (t *typists) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.users, id)
}

func (t *typists) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch len(t.users) {
	case 0:
		return ""
	case 1:
		for _, name := range t.users {
			return "[gray]" + tview.Escape(name) + " is typing..."
		}
	}
	return fmt.Sprintf("[gray]%d people are typing...", len(t.users))
}
