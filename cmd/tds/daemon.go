package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rthompson/todosync/internal/daemon"
	"github.com/rthompson/todosync/internal/dashboard"
	"github.com/rthompson/todosync/internal/ui"
)

var daemonDashboard bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run continuous background sync",
	Long: `Run a full refresh on a schedule, saving the offline snapshot after each
one. The config file is watched so interval changes apply without a
restart.

With --dashboard a WebSocket server broadcasts phase changes, task
updates and sync completions to connected clients:

  ws://localhost:<port>/ws

Message types: phase_change, task_update, sync_complete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		interval := viper.GetDuration("sync.interval")
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		cfg := daemon.DefaultConfig()
		cfg.SyncInterval = interval
		cfg.Logger = a.logger
		if used := viper.ConfigFileUsed(); used != "" {
			cfg.ConfigFile = used
			cfg.Reload = func() (time.Duration, error) {
				if err := viper.ReadInConfig(); err != nil {
					return 0, err
				}
				return viper.GetDuration("sync.interval"), nil
			}
		}

		var srv *dashboard.Server
		if daemonDashboard {
			port := viper.GetInt("dashboard.port")
			srv = dashboard.NewServer(&dashboard.Config{
				Port:   port,
				Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
			})
			if err := srv.Start(); err != nil {
				return fmt.Errorf("failed to start dashboard: %w", err)
			}
			defer func() {
				if err := srv.Stop(); err != nil {
					fmt.Fprintf(os.Stderr, "Error stopping dashboard: %v\n", err)
				}
			}()
			a.engine.SetNotifier(dashboard.NewHandler(srv, a.logger))
			fmt.Printf("%s Dashboard: ws://localhost:%d/ws\n", ui.RenderAccent("*"), port)
		}

		d, err := daemon.New(a.engine, a.cache, cfg)
		if err != nil {
			return err
		}

		fmt.Printf("%s Sync daemon running (every %v). Press Ctrl+C to stop.\n", ui.RenderAccent("*"), interval)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return d.Start(ctx)
	},
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonDashboard, "dashboard", false, "serve the WebSocket status dashboard")
}
