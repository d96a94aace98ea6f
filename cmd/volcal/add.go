package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"volcal/internal/model"
)

var (
	addName        string
	addStart       string
	addEnd         string
	addTarget      string
	addLocation    string
	addDescription string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an event to the local database",
	RunE:  runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().StringVar(&addName, "name", "", "Event name (required)")
	addCmd.Flags().StringVar(&addStart, "start", "", "First day, YYYY-MM-DD (required)")
	addCmd.Flags().StringVar(&addEnd, "end", "", "Last day, YYYY-MM-DD (default: start)")
	addCmd.Flags().StringVar(&addTarget, "target", "", "Link target (default: event ID)")
	addCmd.Flags().StringVar(&addLocation, "location", "", "Location")
	addCmd.Flags().StringVar(&addDescription, "description", "", "Description")

	addCmd.MarkFlagRequired("name")
	addCmd.MarkFlagRequired("start")
}

func runAdd(cmd *cobra.Command, args []string) error {
	start, err := time.Parse(time.DateOnly, addStart)
	if err != nil {
		return fmt.Errorf("invalid --start %q, expected YYYY-MM-DD", addStart)
	}
	end := start
	if addEnd != "" {
		if end, err = time.Parse(time.DateOnly, addEnd); err != nil {
			return fmt.Errorf("invalid --end %q, expected YYYY-MM-DD", addEnd)
		}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	saved, err := a.store.Save(cmd.Context(), model.CalendarEvent{
		Name:        addName,
		Start:       start,
		End:         end,
		Target:      addTarget,
		Location:    addLocation,
		Description: addDescription,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), saved.ID)
	return nil
}
