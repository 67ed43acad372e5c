/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/ponyo877/lounge/server/domain"
	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat [room...]",
	Short: "Prints the history of rooms.",
	Long:  `Prints the retained history of each room, or of the current room when none is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			room, err := roomArg(args, 0)
			if err != nil {
				return err
			}
			args = []string{room}
		}
		for _, roomID := range args {
			history, err := lounge.join(cmd.Context(), roomID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", roomID, err)
				continue
			}
			for _, m := range history {
				printMessage(os.Stdout, m)
			}
			_ = lounge.emit(domain.CommandLeaveRoom, domain.LeaveRoomCommand{RoomID: roomID, User: lounge.ref()})
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}
