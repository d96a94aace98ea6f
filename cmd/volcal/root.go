package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"volcal/internal/config"
	"volcal/internal/events"
	"volcal/internal/ics"
	appLog "volcal/internal/log"
	"volcal/internal/store"
)

const version = "0.1.0"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "volcal",
	Short:         "Volunteer event month calendar",
	Long:          "Serves a month calendar of volunteer events with multi-day event bands, merged from a local database and ICS feeds",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}
		lvl, err := appLog.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		appLog.SetLevel(lvl)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/volcal/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// app bundles what every command needs to read events.
type app struct {
	cfg   *config.Config
	store *store.Store
	svc   *events.Service
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	opts := events.OptionsFromConfig(cfg)
	var fetcher events.FeedFetcher
	if len(opts.Sources) > 0 {
		fetcher = ics.NewFetcher(cfg.CacheDir)
	}

	return &app{cfg: cfg, store: st, svc: events.NewService(st, fetcher, opts)}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		appLog.Error("failed to close database", err)
	}
}

// parseMonth parses "YYYY-MM" in loc; empty means the current month.
func parseMonth(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	if raw == "" {
		now = now.In(loc)
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation("2006-01", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --month %q, expected YYYY-MM", raw)
	}
	return t, nil
}

// baseURL is the address the local server can be reached at. Basic auth
// credentials are embedded so the headless browser can pass the middleware.
func baseURL(cfg *config.Config) string {
	host, port, err := net.SplitHostPort(cfg.Listen)
	if err != nil {
		host, port = "127.0.0.1", "8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, port)}
	if cfg.BasicAuth != nil && cfg.BasicAuth.Username != "" {
		u.User = url.UserPassword(cfg.BasicAuth.Username, cfg.BasicAuth.Password)
	}
	return u.String()
}

// refreshFeeds loads feeds once for one-shot commands. Failed sources are
// logged and the command continues with what it has.
func (a *app) refreshFeeds(ctx context.Context) {
	if err := a.svc.Refresh(ctx); err != nil {
		appLog.Warn("feed refresh incomplete", "error", err.Error())
	}
}
