/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/ponyo877/lounge/server/domain"
	"github.com/spf13/cobra"
)

// echoCmd represents the echo command
var echoCmd = &cobra.Command{
	Use:   "echo <text> [room]",
	Short: "Sends a message to a room.",
	Long: `Sends the given text to the room, or to the current room when none is
given. Direct rooms are written with sendDirectMessage.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := roomArg(args, 1)
		if err != nil {
			return err
		}
		name := domain.CommandSendMessage
		if strings.Contains(roomID, domain.DirectSeparator) {
			name = domain.CommandSendDirectMessage
		}
		msg := domain.SendMessageCommand{RoomID: roomID, Message: args[0], Sender: lounge.ref()}
		if err := lounge.emit(name, msg); err != nil {
			return fmt.Errorf("send to %s: %w", roomID, err)
		}
		fmt.Printf("Text written to %s\n", roomID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(echoCmd)
}
