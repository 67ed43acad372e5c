/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// idCmd represents the id command
var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Prints the configured identity.",
	Long:  `Prints the user id and display name this client identifies with.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		user := identity()
		fmt.Printf("UserID: %s\n", user.ID)
		fmt.Printf("DisplayName: %s\n", user.Name)
		fmt.Printf("Server: %s\n", viper.GetString(serverURLKey))
	},
}

func init() {
	rootCmd.AddCommand(idCmd)
}
