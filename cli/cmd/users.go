/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/ponyo877/lounge/server/domain"
	"github.com/spf13/cobra"
)

// usersCmd represents the users command
var usersCmd = &cobra.Command{
	Use:   "users [room]",
	Short: "Lists the members of a room.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := roomArg(args, 0)
		if err != nil {
			return err
		}
		if err := lounge.emit(domain.CommandGetRoomUsers, domain.GetRoomUsersCommand{RoomID: roomID}); err != nil {
			return err
		}
		f, err := lounge.await(cmd.Context(), domain.EventRoomMembersChanged)
		if err != nil {
			return err
		}
		var payload domain.RoomMembersPayload
		if err := json.Unmarshal(f.Data, &payload); err != nil {
			return fmt.Errorf("decode members: %w", err)
		}
		for _, m := range payload.Members {
			fmt.Printf("%-20s %s\n", m.Name, m.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
}
