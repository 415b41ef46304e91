package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"brain2-canvas/internal/domain"
	"brain2-canvas/pkg/api"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func formatPosition(p domain.Position, auto bool) string {
	s := fmt.Sprintf("(%g, %g)", p.X, p.Y)
	if auto {
		s += " auto"
	}
	return s
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func printDots(w io.Writer, dots []api.DotResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEEL\tCHAKRA\tPOSITION\tSUMMARY")
	for _, d := range dots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.ID, orDash(d.WheelID), orDash(d.ChakraID), formatPosition(d.Position, d.AutoPlaced), d.Summary)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d dots\n", len(dots))
}

func printWheels(w io.Writer, wheels []api.WheelResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCHAKRA\tDOTS\tRADIUS\tPOSITION\tHEADING")
	for _, wh := range wheels {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%g\t%s\t%s\n",
			wh.ID, orDash(wh.ChakraID), wh.DotCount, wh.Radius, formatPosition(wh.Position, wh.AutoPlaced), wh.Heading)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d wheels\n", len(wheels))
}

func printChakras(w io.Writer, chakras []api.ChakraResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEELS\tDOTS\tRADIUS\tPOSITION\tHEADING")
	for _, c := range chakras {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%g\t%s\t%s\n",
			c.ID, c.WheelCount, c.DotCount, c.Radius, formatPosition(c.Position, c.AutoPlaced), c.Heading)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d chakras\n", len(chakras))
}

func printStats(w io.Writer, s *api.StatsResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tTOTAL\tMAPPED\tUNMAPPED\tRATIO")
	row := func(name string, k api.KindStats) {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.0f%%\n", name, k.Total, k.Mapped, k.Unmapped, k.MappedRatio*100)
	}
	row("dots", s.Dots)
	row("wheels", s.Wheels)
	row("chakras", s.Chakras)
	tw.Flush()
}

func describeChange(ch domain.ElementChange) string {
	s := fmt.Sprintf("%s %s", ch.Kind, ch.ID)
	if ch.Parent != nil {
		switch {
		case ch.Parent.WheelID != "":
			s += " -> wheel " + ch.Parent.WheelID
		case ch.Parent.ChakraID != "":
			s += " -> chakra " + ch.Parent.ChakraID
		default:
			s += " -> none"
		}
	}
	if ch.Position != nil {
		s += " at " + formatPosition(*ch.Position, false)
	}
	return s
}

func printEvent(w io.Writer, ev domain.ChangeEvent) {
	ts := ev.Timestamp.Format("15:04:05")
	if len(ev.Elements) == 0 {
		fmt.Fprintf(w, "%s  %s\n", ts, ev.Type)
		return
	}
	for _, ch := range ev.Elements {
		fmt.Fprintf(w, "%s  %-24s %s\n", ts, ev.Type, describeChange(ch))
	}
}
