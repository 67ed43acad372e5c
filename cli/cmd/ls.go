/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// lsCmd represents the ls command
var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "Lists rooms.",
	Long: `Lists the rooms known to the lounge server with their member count
and creation time. The current room is marked with *.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rooms, err := lounge.rooms(cmd.Context())
		if err != nil {
			return err
		}
		if len(rooms) == 0 {
			fmt.Println("No rooms yet.")
			return nil
		}
		current := viper.GetString(currentRoomKey)
		for _, r := range rooms {
			marker := " "
			if r.ID == current {
				marker = "*"
			}
			t := r.CreatedAt.Local()
			formattedTime := fmt.Sprintf("%s %2d %s", t.Format("1"), t.Day(), t.Format("15:04"))
			fmt.Printf("%s %3d  %s  %-24s %s\n", marker, r.UserCount, formattedTime, r.Name, r.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
