package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"volcal/internal/capture"
	appLog "volcal/internal/log"
)

var (
	snapshotMonth string
	snapshotOut   string
	snapshotURL   string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture the month page of a running server as PNG",
	RunE:  runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().StringVar(&snapshotMonth, "month", "", "Month as YYYY-MM (default: current month)")
	snapshotCmd.Flags().StringVar(&snapshotOut, "out", "", "Output PNG path (default: preview.path from config)")
	snapshotCmd.Flags().StringVar(&snapshotURL, "url", "", "Server base URL (default: derived from listen)")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if snapshotMonth != "" {
		if _, err := parseMonth(snapshotMonth, time.Now(), time.UTC); err != nil {
			return err
		}
	}

	out := snapshotOut
	if out == "" {
		out = cfg.Preview.Path
	}
	base := snapshotURL
	if base == "" {
		base = baseURL(cfg)
	}

	if err := capture.CalendarPNG(cmd.Context(), capture.Options{
		URL:        capture.CalendarURL(base, snapshotMonth),
		OutputPath: out,
		Width:      cfg.Preview.Width,
		Height:     cfg.Preview.Height,
	}); err != nil {
		return err
	}

	appLog.Info("snapshot written", "path", out)
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
