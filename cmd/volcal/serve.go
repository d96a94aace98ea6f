package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"volcal/internal/capture"
	appLog "volcal/internal/log"
	"volcal/internal/scheduler"
	"volcal/internal/web"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server and the feed refresh scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config if set)")
}

func runServe(cmd *cobra.Command, args []string) error {
	appLog.Info("volcal starting", "version", version)

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if listenAddr != "" {
		a.cfg.Listen = listenAddr
	}

	appLog.Info("effective config",
		"listen", a.cfg.Listen,
		"timezone", a.cfg.Timezone,
		"week_start", a.cfg.WeekStart,
		"refresh", a.cfg.RefreshCron,
		"horizon_days", a.cfg.HorizonDays,
		"max_rows", a.cfg.MaxRows,
		"ics_count", len(a.cfg.ICS),
		"preview", a.cfg.Preview.Enabled,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := web.NewServer(a.cfg, a.svc, a.store)

	var jobs []scheduler.Job
	if a.cfg.Preview.Enabled {
		jobs = append(jobs, previewJob(a, srv.Ready()))
	}

	sched, err := scheduler.New(a.cfg.RefreshCron, a.svc, jobs...)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() {
		// A preview job may still be waiting for the listener.
		cancel()
		sched.Stop()
	}()

	err = srv.ListenAndServe(ctx)
	appLog.Info("volcal exiting")
	return err
}

// previewJob snapshots the current month after every refresh. The first
// run starts before the server listens, so it waits for ready.
func previewJob(a *app, ready <-chan struct{}) scheduler.Job {
	return func(ctx context.Context) error {
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
		return capture.CalendarPNG(ctx, capture.Options{
			URL:        capture.CalendarURL(baseURL(a.cfg), ""),
			OutputPath: a.cfg.Preview.Path,
			Width:      a.cfg.Preview.Width,
			Height:     a.cfg.Preview.Height,
		})
	}
}
