/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ponyo877/lounge/server/domain"
	"github.com/spf13/cobra"
)

var touchCmd = &cobra.Command{
	Use:   "touch <room_name...>",
	Short: "Creates new rooms.",
	Long: `Creates one room per name on the lounge server and prints the id
the server assigned to it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range args {
			if err := lounge.emit(domain.CommandCreateRoom, domain.CreateRoomCommand{RoomName: name, User: lounge.ref()}); err != nil {
				return err
			}
			f, err := lounge.await(cmd.Context(), domain.EventRoomCreatedSuccess)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create room %s: %v\n", name, err)
				continue
			}
			var ack domain.RoomCreatedAckPayload
			if err := json.Unmarshal(f.Data, &ack); err != nil {
				return fmt.Errorf("decode room: %w", err)
			}
			fmt.Printf("Room created: %s (%s)\n", ack.Name, ack.RoomID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(touchCmd)
}
