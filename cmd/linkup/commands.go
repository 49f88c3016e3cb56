package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/jwulff/linkup-go/internal/config"
	"github.com/jwulff/linkup-go/internal/librelink"
	"github.com/jwulff/linkup-go/internal/monitor"
	"github.com/jwulff/linkup-go/internal/notify"
	"github.com/jwulff/linkup-go/internal/poller"
	"github.com/jwulff/linkup-go/internal/render"
	"github.com/jwulff/linkup-go/internal/storage"
)

func watchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll continuously and print each reading",
		Long: `Poll LibreLinkUp every update_interval minutes until interrupted.

Edits to the config file apply on the next tick. Send SIGUSR1 to refresh
immediately and show the time of the last entry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, flags)
		},
	}
}

func runWatch(ctx context.Context, cmd *cobra.Command, flags *globalFlags) error {
	printBanner(cmd)

	app, err := newApp(ctx, flags, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer app.Close()

	var provider config.Provider = config.Static(*app.cfg)
	watcher, err := config.NewWatcher(flags.configPath, app.cfg, app.logger)
	if err != nil {
		app.logger.Warn().Err(err).Str("path", flags.configPath).Msg("Config file not watched")
	} else {
		defer watcher.Close()
		watcher.OnInvalid = func(err error) {
			app.notifier.Notify(notify.Notice{
				Level:   notify.LevelError,
				Key:     "invalid-config",
				Message: fmt.Sprintf("LibreLink Up - Invalid configuration: %v", err),
			})
		}
		provider = watcher
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				app.logger.Error().Err(err).Msg("Config watcher stopped")
			}
		}()
	}

	mon := app.monitor(provider)
	p := poller.New(mon,
		func() time.Duration { return provider.Snapshot().Interval() },
		poller.WithTimeout(func() time.Duration { return provider.Snapshot().Client.Timeout }),
		poller.WithLogger(app.logger),
	)

	if watcher != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-watcher.Changes():
					app.logger.Info().Msg("Configuration changed, refreshing")
					app.applyNoticeWindow(provider.Snapshot())
					p.Trigger()
				}
			}
		}()
	}

	refresh := make(chan os.Signal, 1)
	notifyRefresh(refresh)
	defer signal.Stop(refresh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-refresh:
				mon.ShowDateOnNextDelivery()
				p.Trigger()
			}
		}
	}()

	if addr := app.cfg.MetricsAddr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsMux(app), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			app.logger.Info().Str("addr", addr).Msg("Serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	app.logger.Info().
		Str("region", string(app.cfg.Region)).
		Dur("interval", app.cfg.Interval()).
		Msg("Watching")

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	app.logger.Info().Msg("Stopped")
	return nil
}

func metricsMux(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", app.metrics.Handler())
	return mux
}

func printBanner(cmd *cobra.Command) {
	banner := figure.NewFigure(appName, "cybermedium", true)
	fmt.Fprintln(cmd.OutOrStdout(), banner.String())
}

func onceCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Fetch and print the latest reading once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, flags, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer app.Close()

			mon := app.monitor(config.Static(*app.cfg))
			d := mon.RunOnce(ctx)
			mon.Deliver(ctx, d)
			if !d.Available() {
				return errors.New("no reading available")
			}
			return nil
		},
	}
}

func lastCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "last",
		Short: "Show when the last stored reading was taken",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStoreOnly(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer store.Close()

			msg, err := monitor.LastStored(cmd.Context(), store)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func statusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show poll state and the last display",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStoreOnly(ctx, flags)
			if err != nil {
				return err
			}
			defer store.Close()
			return printStatus(ctx, cmd, store, time.Now())
		},
	}
}

func printStatus(ctx context.Context, cmd *cobra.Command, store storage.Store, now time.Time) error {
	out := cmd.OutOrStdout()

	state, err := store.GetPollState(ctx, monitor.PollStateID)
	switch {
	case storage.IsNotFound(err):
		fmt.Fprintln(out, "Never polled.")
		return nil
	case err != nil:
		return err
	}

	health := "ok"
	if !state.Healthy() {
		health = "failing"
	}
	fmt.Fprintf(out, "Status:       %s\n", health)
	fmt.Fprintf(out, "Last run:     %s\n", formatTime(state.LastRun))
	fmt.Fprintf(out, "Last success: %s\n", formatTime(state.LastSuccess))
	if state.PatientID != "" {
		fmt.Fprintf(out, "Connection:   %s\n", state.PatientID)
	}
	if state.ErrorCount > 0 {
		fmt.Fprintf(out, "Errors:       %d in a row, last at %s: %s\n", state.ErrorCount, state.LastStage, state.LastError)
	}

	reading, err := store.LatestReading(ctx)
	switch {
	case err == nil:
		fmt.Fprintf(out, "Reading:      %.0f mg/dL, %s ago\n", reading.ValueMgdl, reading.Age(now).Truncate(time.Minute))
	case !storage.IsNotFound(err):
		return err
	}

	cached, err := store.GetCachedDisplay(ctx)
	if storage.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var d render.DisplayState
	if err := json.Unmarshal(cached.Data, &d); err != nil {
		return fmt.Errorf("failed to decode cached display: %w", err)
	}
	fmt.Fprintf(out, "Display:      %s (%s)\n", d.String(), formatTime(cached.GeneratedAt))
	if d.Warning != "" {
		fmt.Fprintf(out, "Warning:      %s\n", d.Warning)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}

func openStoreOnly(ctx context.Context, flags *globalFlags) (storage.Store, error) {
	cfg, err := loadStoreConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	if !cfg.Durable() {
		return nil, fmt.Errorf("no durable storage configured (storage.driver: %s); set it to sqlite or postgres", cfg.Storage.Driver)
	}
	return openStore(ctx, cfg)
}

func connectionsCmd(flags *globalFlags) *cobra.Command {
	var pin string

	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Log in and list the shared connections",
		Long: `Log in and list the patient connections shared with the account, so one
can be pinned with the connection setting. --pin writes it to the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, flags, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer app.Close()

			cfg := app.cfg
			cred, err := app.client.Login(ctx, cfg.Region, cfg.Username, cfg.Password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			conns, err := app.client.Connections(ctx, cfg.Region, cred)
			if err != nil {
				return fmt.Errorf("list connections: %w", err)
			}

			printConnections(cmd, conns, cfg.Connection)

			if pin == "" {
				return nil
			}
			if !slices.ContainsFunc(conns, func(c librelink.Connection) bool { return c.PatientID == pin }) {
				return fmt.Errorf("cannot pin %q: %w", pin, librelink.ErrPreferredNotFound)
			}
			if err := pinConnection(flags.configPath, pin); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pinned %s in %s\n", pin, flags.configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&pin, "pin", "", "Patient id to save as the preferred connection")
	return cmd
}

func printConnections(cmd *cobra.Command, conns []librelink.Connection, preferred string) {
	out := cmd.OutOrStdout()
	if len(conns) == 0 {
		fmt.Fprintln(out, "No connections found.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tPATIENT ID\t")
	for i, c := range conns {
		mark := ""
		if c.PatientID == preferred {
			mark = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, c.Name(), c.PatientID, mark)
	}
	tw.Flush()
}

// pinConnection saves id in the config file. Only the file's own settings
// are written back, never environment overrides.
func pinConnection(path, id string) error {
	cfg, err := loadStoreConfig(path)
	if err != nil {
		return err
	}
	cfg.Connection = id
	return cfg.SaveToFile(path)
}

func regionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the supported region codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range librelink.Regions() {
				host, err := librelink.ResolveHost(r)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\n", r, host)
			}
			return tw.Flush()
		},
	}
}
