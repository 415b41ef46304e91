package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"brain2-canvas/internal/canvas"
	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/geometry"

	"github.com/spf13/cobra"
)

// answer is how a pending proposal gets resolved.
type answer int

const (
	answerAsk answer = iota
	answerYes
	answerNo
)

var moveCmd = &cobra.Command{
	Use:   "move <kind> <id> <x> <y>",
	Short: "Drag an element to a canvas position",
	Long: `Replay a drag of the element to (x, y) in canvas coordinates.

Dropping onto a wheel or chakra proposes a mapping, which is confirmed
interactively unless --yes or --no is given. Dropping onto empty canvas
only saves the new position.`,
	GroupID: "write",
	Args:    cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseKind(args[0])
		if err != nil {
			return err
		}
		x, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid x %q: %w", args[2], err)
		}
		y, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("invalid y %q: %w", args[3], err)
		}

		yes, _ := cmd.Flags().GetBool("yes")
		no, _ := cmd.Flags().GetBool("no")
		if yes && no {
			return errors.New("--yes and --no are mutually exclusive")
		}
		mode := answerAsk
		switch {
		case yes:
			mode = answerYes
		case no:
			mode = answerNo
		}

		return runMove(cmd.Context(), canvasClient, kind, args[1], domain.Position{X: x, Y: y},
			mode, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	moveCmd.Flags().BoolP("yes", "y", false, "confirm a proposed mapping without asking")
	moveCmd.Flags().Bool("no", false, "decline a proposed mapping and keep only the position")
}

// runMove seeds a store from the server, presses on the element, moves the
// pointer to the target and releases, then settles the outcome.
func runMove(ctx context.Context, c *canvas.Client, kind domain.Kind, id string, to domain.Position, mode answer, in io.Reader, out io.Writer) error {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}
	store := canvas.NewStore(geometry.DefaultFootprints, nil)
	store.Seed(snap)

	item, ok := store.Item(kind, id)
	if !ok {
		return fmt.Errorf("%s %s not found", kind, id)
	}

	machine := canvas.NewMachine(canvas.MachineConfig{
		ClickThreshold: 5,
		Zoom:           geometry.DefaultZoomLimits,
		ViewSize:       domain.Position{X: 1280, Y: 800},
	})
	vp := machine.Viewport()
	start, end := vp.ToScreen(item.Position), vp.ToScreen(to)

	machine.PointerDown(start, &canvas.Grab{Kind: item.Kind, ID: item.ID, Position: item.Position})
	machine.PointerMove(end)
	ended := machine.PointerUp(end)
	if ended == nil {
		return errors.New("drag did not start")
	}

	negotiator := canvas.NewNegotiator(store, c, nil)
	res, err := negotiator.DragEnded(ctx, *ended)
	switch res.Outcome {
	case canvas.OutcomeClick:
		fmt.Fprintln(out, "Moved less than the click threshold, nothing saved")
		return nil
	case canvas.OutcomeReposition:
		fmt.Fprintf(out, "%s %s saved at %s\n", kind, id, formatPosition(res.Position.Position, false))
		return nil
	case canvas.OutcomeInvalid:
		return errors.New(res.Notice)
	case canvas.OutcomeFailed:
		return fmt.Errorf("%s: %w", res.Notice, err)
	}

	p := res.Proposal
	confirm, err := decide(p.Message, mode, in, out)
	if err != nil {
		return err
	}
	if !confirm {
		pos, err := negotiator.Cancel(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Mapping declined, %s %s saved at %s\n", kind, id, formatPosition(pos.Position, false))
		return nil
	}

	resp, err := negotiator.Confirm(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, resp.Message)
	return nil
}

func decide(message string, mode answer, in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprintln(out, message)
	switch mode {
	case answerYes:
		return true, nil
	case answerNo:
		return false, nil
	}

	fmt.Fprint(out, "Confirm? [y/N] ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
