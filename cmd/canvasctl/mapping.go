package main

import (
	"context"
	"fmt"
	"strings"

	"brain2-canvas/internal/canvas"
	"brain2-canvas/internal/domain"
	"brain2-canvas/pkg/api"

	"github.com/spf13/cobra"
)

// mapFunc is one of the client's mapping calls.
type mapFunc func(ctx context.Context, id string, target *string) (*api.MappingResponse, error)

// resolveMapping picks the mapping call for a source and target kind. A
// target id of "none" clears the link.
func resolveMapping(c *canvas.Client, sourceKind, targetKind, targetID string) (mapFunc, *string, error) {
	source, err := domain.ParseKind(sourceKind)
	if err != nil {
		return nil, nil, err
	}
	target, err := domain.ParseKind(targetKind)
	if err != nil {
		return nil, nil, err
	}
	transition, ok := canvas.Classify(source, target)
	if !ok {
		return nil, nil, fmt.Errorf("a %s cannot be mapped to a %s", source, target)
	}

	var id *string
	if !strings.EqualFold(targetID, "none") {
		id = &targetID
	}

	switch transition {
	case canvas.DotToWheel:
		return c.MapDotToWheel, id, nil
	case canvas.DotToChakra:
		return c.MapDotToChakra, id, nil
	default:
		return c.MapWheelToChakra, id, nil
	}
}

var mapCmd = &cobra.Command{
	Use:   "map <dot|wheel> <id> <wheel|chakra> <target-id|none>",
	Short: "Set or clear an element's parent",
	Long: `Set or clear an element's parent directly, without the drag negotiation.

  canvasctl map dot dot-abc wheel whl-xyz
  canvasctl map dot dot-abc chakra none`,
	GroupID: "write",
	Args:    cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		call, target, err := resolveMapping(canvasClient, args[0], args[2], args[3])
		if err != nil {
			return err
		}
		resp, err := call(cmd.Context(), args[1], target)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	},
}
