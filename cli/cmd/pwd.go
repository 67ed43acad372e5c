/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// pwdCmd represents the pwd command
var pwdCmd = &cobra.Command{
	Use:   "pwd",
	Short: "Prints the current room.",
	Run: func(cmd *cobra.Command, args []string) {
		current := viper.GetString(currentRoomKey)
		if current == "" {
			current = "/"
		}
		fmt.Println(current)
	},
}

func init() {
	rootCmd.AddCommand(pwdCmd)
}
