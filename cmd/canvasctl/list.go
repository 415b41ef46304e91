package main

import (
	"fmt"

	"brain2-canvas/internal/canvas"
	"brain2-canvas/internal/domain"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list <dots|wheels|chakras>",
	Short:   "List elements of one kind",
	GroupID: "read",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseKind(args[0])
		if err != nil {
			return err
		}
		unmapped, _ := cmd.Flags().GetBool("unmapped")
		parent, _ := cmd.Flags().GetString("parent")
		opts := canvas.ListOptions{Unmapped: unmapped, Parent: parent}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		switch kind {
		case domain.KindDot:
			resp, err := canvasClient.ListDots(ctx, opts)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(out, resp.Dots)
			}
			printDots(out, resp.Dots)
		case domain.KindWheel:
			resp, err := canvasClient.ListWheels(ctx, opts)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(out, resp.Wheels)
			}
			printWheels(out, resp.Wheels)
		case domain.KindChakra:
			resp, err := canvasClient.ListChakras(ctx, opts)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(out, resp.Chakras)
			}
			printChakras(out, resp.Chakras)
		default:
			return fmt.Errorf("cannot list %s", kind)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("unmapped", false, "only elements without a parent (chakras: without children)")
	listCmd.Flags().String("parent", "", "only children of this wheel or chakra")
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show mapped and unmapped counts per kind",
	GroupID: "read",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := canvasClient.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), stats)
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

var connectionsCmd = &cobra.Command{
	Use:     "connections",
	Short:   "Show your open push channel connections",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := canvasClient.Connections(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d open (ws: %d, sse: %d)\n",
			resp.Connections, resp.Transports["ws"], resp.Transports["sse"])
		return nil
	},
}
