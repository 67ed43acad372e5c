/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"regexp"

	"github.com/ponyo877/lounge/server/domain"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// grepCmd represents the grep command
var grepCmd = &cobra.Command{
	Use:   "grep <pattern> [room]",
	Short: "Searches a room's history for a pattern.",
	Long:  `Prints the messages of a room whose text matches the regular expression.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		re, err := regexp.Compile(args[0])
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", args[0], err)
		}
		roomID, err := roomArg(args, 1)
		if err != nil {
			return err
		}
		history, err := lounge.join(cmd.Context(), roomID)
		if err != nil {
			return err
		}
		defer func() {
			_ = lounge.emit(domain.CommandLeaveRoom, domain.LeaveRoomCommand{RoomID: roomID, User: lounge.ref()})
		}()
		matches := lo.Filter(history, func(m domain.Message, _ int) bool {
			return re.MatchString(m.Text)
		})
		for _, m := range matches {
			printMessage(os.Stdout, m)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(grepCmd)
}
