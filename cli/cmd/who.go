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

// whoCmd represents the who command
var whoCmd = &cobra.Command{
	Use:   "who",
	Short: "Lists the users who are online.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := lounge.emit(domain.CommandGetOnlineUsers, nil); err != nil {
			return err
		}
		f, err := lounge.await(cmd.Context(), domain.EventPresenceSnapshot)
		if err != nil {
			return err
		}
		var users []domain.UserSummary
		if err := json.Unmarshal(f.Data, &users); err != nil {
			return fmt.Errorf("decode users: %w", err)
		}
		for _, u := range users {
			marker := " "
			if u.ID == lounge.user.ID {
				marker = "*"
			}
			fmt.Printf("%s %-20s %s\n", marker, u.Name, u.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoCmd)
}
