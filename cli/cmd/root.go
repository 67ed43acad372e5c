/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"
	"github.com/ponyo877/lounge/server/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	lounge  *session
)

const (
	serverURLKey   = "server_url"
	userIDKey      = "user_id"
	displayNameKey = "display_name"
	currentRoomKey = "current_room"
)

// commands that only touch local configuration
var offline = map[string]bool{"id": true, "config": true, "pwd": true, "help": true, "completion": true}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lounge",
	Short: "Terminal client for the lounge presence server",
	Long: `lounge talks to a lounge server over WebSocket.
Rooms behave like files: ls lists them, cd selects one,
cat prints its history and echo writes to it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if lounge != nil {
			_ = lounge.Close()
			lounge = nil
		}
		if offline[cmd.Name()] {
			return nil
		}
		s, err := dial(cmd.Context(), viper.GetString(serverURLKey), identity())
		if err != nil {
			return err
		}
		lounge = s
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if lounge != nil {
			err := lounge.Close()
			lounge = nil
			return err
		}
		return nil
	},
}

// Execute runs one command from the arguments, or the interactive shell
// when there are none.
func Execute() {
	// one‑shot
	if len(os.Args) > 1 {
		if err := rootCmd.ExecuteContext(context.Background()); err != nil {
			os.Exit(1)
		}
		return
	}

	// REPL
	fmt.Println("entering interactive mode, type 'exit' to quit")
	p := prompt.New(
		executor,
		completer,
		prompt.OptionPrefix("❯❯❯ "),
		prompt.OptionTitle("lounge"),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			in = strings.TrimSpace(in)
			return breakline && (in == "exit" || in == "quit")
		}),
	)
	p.Run()
}

func executor(line string) {
	line = strings.TrimSpace(line)
	if line == "" || line == "exit" || line == "quit" {
		return
	}
	args, err := shellwords.Parse(line)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error parsing input:", err)
		return
	}
	resetFlags()
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
}

// resetFlags restores flag defaults between REPL lines.
func resetFlags() {
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			}
		})
	}
}

func completer(d prompt.Document) []prompt.Suggest {
	if strings.Contains(d.TextBeforeCursor(), " ") {
		return nil
	}
	var suggests []prompt.Suggest
	for _, c := range rootCmd.Commands() {
		if c.Hidden || c.Name() == "completion" {
			continue
		}
		suggests = append(suggests, prompt.Suggest{Text: c.Name(), Description: c.Short})
	}
	return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
}

// identity returns the configured user, generating and saving an id on
// first use.
func identity() domain.UserSummary {
	id := viper.GetString(userIDKey)
	if id == "" {
		id = uuid.NewString()
		viper.Set(userIDKey, id)
		saveConfig()
	}
	name := viper.GetString(displayNameKey)
	if name == "" {
		name = id
	}
	return domain.NewUserSummary(id, name)
}

// roomArg resolves an optional room argument against current_room.
func roomArg(args []string, i int) (string, error) {
	if len(args) > i && args[i] != "" {
		return args[i], nil
	}
	if room := viper.GetString(currentRoomKey); room != "" {
		return room, nil
	}
	return "", errors.New("no room given and no current room, use cd <room> first")
}

func saveConfig() {
	if err := viper.WriteConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || viper.ConfigFileUsed() == "" {
			if err := viper.SafeWriteConfig(); err != nil {
				fmt.Fprintln(os.Stderr, "Error creating config file:", err)
			}
			return
		}
		fmt.Fprintln(os.Stderr, "Error writing config file:", err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.lounge.yaml)")
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "Address of the lounge server")
	rootCmd.PersistentFlags().String("user-id", "", "User id to identify as")
	rootCmd.PersistentFlags().String("name", "", "Display name to identify as")

	_ = viper.BindPFlag(serverURLKey, rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag(userIDKey, rootCmd.PersistentFlags().Lookup("user-id"))
	_ = viper.BindPFlag(displayNameKey, rootCmd.PersistentFlags().Lookup("name"))
	viper.SetDefault(serverURLKey, "http://localhost:8080")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".lounge" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".lounge")
	}

	viper.SetEnvPrefix("LOUNGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}
