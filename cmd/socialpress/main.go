package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"socialpress/internal/apiclient"
	"socialpress/internal/config"
	"socialpress/internal/engine"
	"socialpress/internal/fetcher"
	"socialpress/internal/logging"
	"socialpress/internal/provider"
	"socialpress/internal/scheduler"
	"socialpress/internal/server"
	"socialpress/internal/store"
	"socialpress/internal/translator"
)

var version = "dev"

var (
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "socialpress",
	Short:   "Social media campaign processing engine",
	Long:    "socialpress pulls content from social media sources, filters, translates, and publishes it on campaign schedules.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(campaignsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(testConnectionCmd)
	rootCmd.AddCommand(logsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("socialpress", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/socialpress/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the database path, server, and logging.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		stats, err := app.store.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Campaigns:")
		fmt.Printf("  Total: %d\n", stats.TotalCampaigns)
		statuses := make([]string, 0, len(stats.CampaignsByStatus))
		for status := range stats.CampaignsByStatus {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			fmt.Printf("  %s: %d\n", status, stats.CampaignsByStatus[status])
		}
		fmt.Println("\nOutput:")
		fmt.Printf("  Published artifacts: %d\n", stats.TotalArtifacts)
		fmt.Printf("  Log entries: %d\n", stats.TotalLogs)
		return nil
	},
}

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "List configured campaigns",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		campaigns, err := app.store.ListCampaigns()
		if err != nil {
			return err
		}
		if len(campaigns) == 0 {
			fmt.Println("No campaigns configured.")
			return nil
		}

		for _, c := range campaigns {
			lastRun := "never"
			if c.LastRun != nil {
				lastRun = c.LastRun.Format(time.RFC3339)
			}
			fmt.Printf("  [%d] %s (%s, %s/%s) last run: %s\n",
				c.ID, c.Title, c.Status, c.FetcherType, c.Schedule.Type, lastRun)
			if c.LastError != nil && *c.LastError != "" {
				fmt.Printf("        last error: %s\n", *c.LastError)
			}
		}
		return nil
	},
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run [campaign-id]",
	Short: "Run a single campaign now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid campaign ID: %s", args[0])
		}

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		result, err := app.sched.RunCampaign(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Println("Run complete:")
		fmt.Printf("  Fetched: %d\n", result.Fetched)
		fmt.Printf("  Filtered out: %d\n", result.Filtered)
		fmt.Printf("  Published: %d\n", result.Published)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		fmt.Printf("  Failed: %d\n", result.Failed)
		return nil
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Evaluate schedules once and run all due campaigns",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.sched.Tick(cmd.Context(), time.Now()); err != nil {
			return err
		}
		fmt.Println("Tick complete.")
		return nil
	},
}

// --- serve command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler and the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(app.store, app.sched, app.fetchers, app.translators, app.logger, cfg.Server.AuthToken)
		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: srv.Handler(),
		}

		go app.runScheduleLoop(ctx)
		go app.runCleanupLoop(ctx, cfg.Logging.RetentionDays)

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		fmt.Printf("Starting server at http://localhost:%d\n", cfg.Server.Port)
		fmt.Println("Press Ctrl+C to stop")
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// --- test-connection command ---

var testSettings []string

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection [fetcher|translator] [type]",
	Short: "Validate provider settings with a real API call",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := make(map[string]string, len(testSettings))
		for _, kv := range testSettings {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("invalid --set value %q, expected key=value", kv)
			}
			settings[key] = value
		}

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		switch args[0] {
		case "fetcher":
			err = app.fetchers.TestConnection(cmd.Context(), args[1], settings)
		case "translator":
			err = app.translators.TestConnection(cmd.Context(), args[1], settings)
		default:
			return fmt.Errorf("unknown provider kind: %s", args[0])
		}
		if err != nil {
			return err
		}

		fmt.Printf("Connection to %s OK.\n", args[1])
		return nil
	},
}

func init() {
	testConnectionCmd.Flags().StringArrayVar(&testSettings, "set", nil, "Provider setting as key=value (repeatable)")
}

// --- logs command ---

var (
	logsLevel    string
	logsCampaign int64
	logsLimit    int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect and clear the persistent log",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		entries, err := app.store.GetLogs(store.LogQuery{
			Level:      logsLevel,
			CampaignID: logsCampaign,
			Limit:      logsLimit,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No log entries.")
			return nil
		}

		for _, e := range entries {
			campaign := ""
			if e.CampaignID != nil {
				campaign = fmt.Sprintf(" [campaign %d]", *e.CampaignID)
			}
			fmt.Printf("%s %-8s%s %s\n", e.Timestamp, e.Level, campaign, e.Message)
		}
		return nil
	},
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete log entries, optionally only one level",
	RunE: func(cmd *cobra.Command, args []string) error {
		if logsLevel != "" && !logging.Level(logsLevel).Valid() {
			return fmt.Errorf("invalid level: %s", logsLevel)
		}

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		deleted, err := app.store.ClearLogs(logsLevel)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d log entries.\n", deleted)
		return nil
	},
}

var logsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete log entries older than the configured retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		deleted, err := app.store.CleanupLogs(cfg.Logging.RetentionDays)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d expired log entries.\n", deleted)
		return nil
	},
}

func init() {
	logsCmd.PersistentFlags().StringVar(&logsLevel, "level", "", "Filter by level")
	logsListCmd.Flags().Int64Var(&logsCampaign, "campaign", 0, "Filter by campaign ID")
	logsListCmd.Flags().IntVar(&logsLimit, "limit", 50, "Maximum entries to show")
	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsClearCmd)
	logsCmd.AddCommand(logsCleanupCmd)
}

// --- wiring ---

type app struct {
	store       *store.Store
	logger      *logging.Logger
	fetchers    *provider.Registry[provider.Fetcher]
	translators *provider.Registry[provider.Translator]
	sched       *scheduler.Scheduler
}

func newApp() (*app, error) {
	dbPath := cfg.DatabasePath()
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	logger := logging.New(st, logging.Level(cfg.Logging.Level))

	client := apiclient.New(
		time.Duration(cfg.Engine.FetchTimeoutSeconds)*time.Second,
		cfg.Engine.RequestsPerSecond,
		logger,
	)

	fetchers := fetcher.NewRegistry(client, logger)
	translators := translator.NewRegistry(client)
	pipe := engine.New(st, fetchers, translators, logger)
	sched := scheduler.New(st, pipe, logger, cfg.Engine.ConcurrentCampaigns)

	return &app{
		store:       st,
		logger:      logger,
		fetchers:    fetchers,
		translators: translators,
		sched:       sched,
	}, nil
}

func (a *app) Close() {
	a.logger.Sync()
	_ = a.store.Close()
}

// runScheduleLoop ticks the scheduler until the context is cancelled.
func (a *app) runScheduleLoop(ctx context.Context) {
	interval := time.Duration(cfg.Engine.TickIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := a.sched.Tick(ctx, now); err != nil {
				a.logger.Error("schedule tick failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// runCleanupLoop removes expired log entries once a day.
func (a *app) runCleanupLoop(ctx context.Context, retentionDays int) {
	if retentionDays <= 0 {
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if deleted, err := a.store.CleanupLogs(retentionDays); err != nil {
			a.logger.Error("log cleanup failed", map[string]any{"error": err.Error()})
		} else if deleted > 0 {
			a.logger.Info("log cleanup removed expired entries", map[string]any{"deleted": deleted})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
