package main

import (
	"encoding/json"
	"fmt"

	"brain2-canvas/internal/canvas"
	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/geometry"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Follow changes made from any device",
	GroupID: "read",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		keepAlives, _ := cmd.Flags().GetBool("keepalives")

		logger := zap.NewNop()
		if verbose {
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer l.Sync()
			logger = l
		}

		out := cmd.OutOrStdout()
		store := canvas.NewStore(geometry.DefaultFootprints, logger)
		follower := canvas.NewFollower(canvasClient, store, logger)
		follower.OnEvent = func(ev domain.ChangeEvent, applied int) {
			if !ev.CarriesData() && !keepAlives {
				return
			}
			if jsonOutput {
				data, err := json.Marshal(ev)
				if err == nil {
					fmt.Fprintln(out, string(data))
				}
				return
			}
			printEvent(out, ev)
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl-C to stop)\n", settings.Server)
		return follower.Run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().BoolP("verbose", "v", false, "log reconnects and ignored changes")
	watchCmd.Flags().Bool("keepalives", false, "also print keep-alive and greeting events")
}
