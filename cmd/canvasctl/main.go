// Command canvasctl drives a canvas server from the terminal: it lists and
// maps elements, replays drags through the same state machine and mapping
// negotiation a browser uses, and follows the push channel.
package main

import (
	"context"
	"os"
	"os/signal"

	"brain2-canvas/internal/canvas"

	"github.com/spf13/cobra"
)

var (
	serverURL  string
	token      string
	devUser    string
	jsonOutput bool

	settings     Settings
	canvasClient *canvas.Client
)

var rootCmd = &cobra.Command{
	Use:          "canvasctl <command>",
	Short:        "CLI client for the canvas mapping engine",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("server") {
			s.Server = serverURL
		}
		if flags.Changed("token") {
			s.Token = token
		}
		if flags.Changed("user") {
			s.User = devUser
		}
		settings = s

		var opts []canvas.ClientOption
		if s.User != "" {
			opts = append(opts, canvas.WithDevUser(s.User))
		}
		canvasClient = canvas.NewClient(s.Server, s.Token, opts...)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default from config file)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token (default from config file)")
	rootCmd.PersistentFlags().StringVar(&devUser, "user", "", "user id for servers running without auth")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "read", Title: "Reading:"},
		&cobra.Group{ID: "write", Title: "Mapping:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(moveCmd)

	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(connectionsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
