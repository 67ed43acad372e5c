package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CommandName is the wire name of a client to server command.
type CommandName string

const (
	CommandIdentify           CommandName = "identify"
	CommandGetOnlineUsers     CommandName = "getOnlineUsers"
	CommandJoinRoom           CommandName = "joinRoom"
	CommandLeaveRoom          CommandName = "leaveRoom"
	CommandCreateRoom         CommandName = "createRoom"
	CommandListRooms          CommandName = "listRooms"
	CommandSendMessage        CommandName = "sendMessage"
	CommandSendDirectMessage  CommandName = "sendDirectMessage"
	CommandStartDirectMessage CommandName = "startDirectMessage"
	CommandTyping             CommandName = "typing"
	CommandStopTyping         CommandName = "stopTyping"
	CommandGetRoomUsers       CommandName = "getRoomUsers"
)

var validate = validator.New()

type UserRef struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
}

func (u UserRef) Summary() UserSummary {
	return NewUserSummary(u.ID, u.Name)
}

type IdentifyCommand struct {
	UserID string `json:"userId"`
	Name   string `json:"name" validate:"required"`
}

type JoinRoomCommand struct {
	RoomID   string  `json:"roomId" validate:"required"`
	RoomName string  `json:"roomName"`
	User     UserRef `json:"user"`
}

type LeaveRoomCommand struct {
	RoomID string  `json:"roomId" validate:"required"`
	User   UserRef `json:"user"`
}

type CreateRoomCommand struct {
	RoomName string  `json:"roomName" validate:"required"`
	User     UserRef `json:"user"`
}

type SendMessageCommand struct {
	RoomID  string  `json:"roomId" validate:"required"`
	Message string  `json:"message" validate:"required"`
	Sender  UserRef `json:"sender"`
}

type StartDirectMessageCommand struct {
	CurrentUser UserRef `json:"currentUser"`
	TargetUser  UserRef `json:"targetUser"`
}

type TypingCommand struct {
	RoomID string  `json:"roomId" validate:"required"`
	User   UserRef `json:"user"`
}

type GetRoomUsersCommand struct {
	RoomID string `json:"roomId" validate:"required"`
}

// UnmarshalJSON also accepts a bare room id string.
func (c *GetRoomUsersCommand) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.RoomID)
	}
	type plain GetRoomUsersCommand
	return json.Unmarshal(data, (*plain)(c))
}

type emptyCommand struct{}

// DecodeCommand parses and validates the payload of the named command. It
// returns a pointer to the typed command, or an error wrapping
// ErrMalformedCommand.
func DecodeCommand(name CommandName, data json.RawMessage) (any, error) {
	var cmd any
	switch name {
	case CommandIdentify:
		cmd = &IdentifyCommand{}
	case CommandGetOnlineUsers, CommandListRooms:
		cmd = &emptyCommand{}
	case CommandJoinRoom:
		cmd = &JoinRoomCommand{}
	case CommandLeaveRoom:
		cmd = &LeaveRoomCommand{}
	case CommandCreateRoom:
		cmd = &CreateRoomCommand{}
	case CommandSendMessage, CommandSendDirectMessage:
		cmd = &SendMessageCommand{}
	case CommandStartDirectMessage:
		cmd = &StartDirectMessageCommand{}
	case CommandTyping, CommandStopTyping:
		cmd = &TypingCommand{}
	case CommandGetRoomUsers:
		cmd = &GetRoomUsersCommand{}
	default:
		return nil, fmt.Errorf("unknown command %q: %w", name, ErrMalformedCommand)
	}

	if _, empty := cmd.(*emptyCommand); empty {
		return cmd, nil
	}
	if len(bytes.TrimSpace(data)) == 0 || string(bytes.TrimSpace(data)) == "null" {
		return nil, fmt.Errorf("%s: empty payload: %w", name, ErrMalformedCommand)
	}
	if err := json.Unmarshal(data, cmd); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", name, err, ErrMalformedCommand)
	}
	trimCommand(cmd)
	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", name, err, ErrMalformedCommand)
	}
	return cmd, nil
}

func trimCommand(cmd any) {
	switch c := cmd.(type) {
	case *IdentifyCommand:
		c.UserID = strings.TrimSpace(c.UserID)
		c.Name = strings.TrimSpace(c.Name)
	case *JoinRoomCommand:
		c.RoomID = strings.TrimSpace(c.RoomID)
		c.RoomName = strings.TrimSpace(c.RoomName)
	case *CreateRoomCommand:
		c.RoomName = strings.TrimSpace(c.RoomName)
	case *SendMessageCommand:
		c.RoomID = strings.TrimSpace(c.RoomID)
	case *GetRoomUsersCommand:
		c.RoomID = strings.TrimSpace(c.RoomID)
	}
}
