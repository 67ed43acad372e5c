/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/ponyo877/lounge/server/domain"
	"github.com/spf13/cobra"
)

var (
	follow bool // Flag for -f option
	lines  int
)

// tailCmd represents the tail command
var tailCmd = &cobra.Command{
	Use:   "tail [-f] [-n lines] [room]",
	Short: "Prints the last messages of a room.",
	Long: `Prints the last messages of a room.
With -f, keeps the room open and prints new messages as they arrive until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := roomArg(args, 0)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		history, err := lounge.join(ctx, roomID)
		if err != nil {
			return err
		}
		if lines >= 0 && len(history) > lines {
			history = history[len(history)-lines:]
		}
		for _, m := range history {
			printMessage(os.Stdout, m)
		}
		if !follow {
			return nil
		}

		for {
			f, err := lounge.next(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			switch domain.EventName(f.Event) {
			case domain.EventMessage, domain.EventDirectMessage:
				var m domain.Message
				if err := json.Unmarshal(f.Data, &m); err != nil {
					fmt.Fprintln(os.Stderr, "Error decoding message:", err)
					continue
				}
				if m.RoomID == roomID {
					printMessage(os.Stdout, m)
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(tailCmd)
	tailCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow the room")
	tailCmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of messages to print")
}
