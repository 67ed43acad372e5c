/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [new_display_name]",
	Short: "Gets or sets the display name.",
	Long: `Manages configuration for the lounge client.
If called without arguments, it displays the current display name.
If called with an argument, it sets the display name used on the next connection.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Printf("Display Name: %s\n", identity().Name)
			return nil
		}
		name := strings.TrimSpace(args[0])
		if name == "" || len(name) > 64 {
			return errors.New("display name must be 1 to 64 characters")
		}
		viper.Set(displayNameKey, name)
		saveConfig()
		fmt.Printf("Display name set to: %s\n", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
