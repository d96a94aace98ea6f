package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"volcal/internal/events"
)

var layoutMonth string

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print the band layout of a month",
	Long:  "Compute the month grid, row placements and overflow for a month and print them as a table",
	RunE:  runLayout,
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	layoutCmd.Flags().StringVar(&layoutMonth, "month", "", "Month as YYYY-MM (default: current month)")
}

func runLayout(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	month, err := parseMonth(layoutMonth, time.Now(), a.svc.Location())
	if err != nil {
		return err
	}

	a.refreshFeeds(cmd.Context())

	ml, err := a.svc.Layout(cmd.Context(), month)
	if err != nil {
		return fmt.Errorf("failed to compute layout: %w", err)
	}
	return printLayout(cmd.OutOrStdout(), ml)
}

func printLayout(out io.Writer, ml events.MonthLayout) error {
	g := ml.Grid
	fmt.Fprintf(out, "%04d-%02d  grid %s .. %s\n\n", g.Year(), g.Month(),
		g.First().Format(time.DateOnly), g.Last().Format(time.DateOnly))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tCOLOR\tCELLS\tSTART\tEND\tNAME\tTARGET")
	for _, p := range ml.Result.Placements {
		fmt.Fprintf(tw, "%d\t%d\t%d-%d\t%s\t%s\t%s\t%s\n",
			p.Row, p.Color, p.Span.Start, p.Span.End,
			p.Event.Start.Format(time.DateOnly), p.Event.End.Format(time.DateOnly),
			p.Event.Name, p.Event.LinkTarget())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(ml.Result.Overflow) == 0 {
		return nil
	}
	fmt.Fprintf(out, "\noverflow (%d):\n", len(ml.Result.Overflow))
	for _, o := range ml.Result.Overflow {
		fmt.Fprintf(out, "  %d-%d\t%s\n", o.Span.Start, o.Span.End, o.Event.Name)
	}
	return nil
}
