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
	"github.com/spf13/viper"
)

var dmCmd = &cobra.Command{
	Use:   "dm <user_id> [name]",
	Short: "Opens a direct room with another user.",
	Long: `Opens the direct room shared with another user, prints its history and
makes it the current room.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := domain.UserRef{ID: args[0], Name: args[0]}
		if len(args) == 2 {
			target.Name = args[1]
		}
		if target.ID == lounge.user.ID {
			return fmt.Errorf("cannot open a direct room with yourself")
		}
		start := domain.StartDirectMessageCommand{CurrentUser: lounge.ref(), TargetUser: target}
		if err := lounge.emit(domain.CommandStartDirectMessage, start); err != nil {
			return err
		}
		f, err := lounge.await(cmd.Context(), domain.EventDirectRoomReady)
		if err != nil {
			return err
		}
		var ready domain.DirectRoomReadyPayload
		if err := json.Unmarshal(f.Data, &ready); err != nil {
			return fmt.Errorf("decode direct room: %w", err)
		}
		fmt.Printf("Direct room %s ready\n", ready.RoomID)
		for _, m := range ready.History {
			printMessage(os.Stdout, m)
		}
		viper.Set(currentRoomKey, ready.RoomID)
		saveConfig()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dmCmd)
}
