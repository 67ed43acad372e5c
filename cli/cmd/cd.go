/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/ponyo877/lounge/server/domain"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cdCmd represents the cd command
var cdCmd = &cobra.Command{
	Use:   "cd [room]",
	Short: "Changes the current room.",
	Long: `Changes the room that cat, echo, grep, tail, users and vim use when
no room is given. Without an argument the current room is cleared.
The room must exist on the server unless it is a direct room.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := ""
		if len(args) == 1 {
			target = strings.TrimSpace(args[0])
		}
		if target != "" && target != "/" && !strings.Contains(target, domain.DirectSeparator) {
			rooms, err := lounge.rooms(cmd.Context())
			if err != nil {
				return err
			}
			room, ok := lo.Find(rooms, func(r domain.RoomSummary) bool {
				return r.ID == target || r.Name == target
			})
			if !ok {
				return fmt.Errorf("room does not exist: %s", target)
			}
			target = room.ID
		}
		if target == "/" {
			target = ""
		}
		viper.Set(currentRoomKey, target)
		saveConfig()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cdCmd)
}
