// Command bot runs the sleep-tracking reminder bot.
//
// Usage:
//
//	sleepbot --config ./config.yaml
//	sleepbot check-config --config ./config.yaml
//	sleepbot run-pass --config ./config.yaml
//	sleepbot prune-logs --config ./config.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sleepbot/internal/app"
	"sleepbot/internal/config"
	"sleepbot/internal/maintenance"
	"sleepbot/internal/storage"
	logx "sleepbot/pkg/logx"
)

const stopTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load(".env")

	var cfgPath string
	root := &cobra.Command{
		Use:          "sleepbot",
		Short:        "Baby sleep tracking reminder bot",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cfgPath)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "./config.yaml", "path to config file (json or yaml)")

	root.AddCommand(checkConfigCmd(&cfgPath))
	root.AddCommand(runPassCmd(&cfgPath))
	root.AddCommand(pruneLogsCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBot(cfgPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfgPath)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	return a.Stop(stopCtx)
}

func checkConfigCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Parse and validate the config file, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.NewManager(*cfgPath).Load(); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	}
}

func runPassCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run-pass",
		Short: "Run one reminder evaluation pass immediately, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			a, err := app.New(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
				defer stopCancel()
				_ = a.Stop(stopCtx)
			}()

			if !a.RunPassNow(ctx) {
				return fmt.Errorf("pass did not run")
			}
			return nil
		},
	}
}

func pruneLogsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prune-logs",
		Short: "Delete notification log entries past the retention age",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewManager(*cfgPath).Load()
			if err != nil {
				return err
			}
			log := logx.NewConsole(cfg.Logging.Level)

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			st, err := storage.Open(ctx, storage.Config{
				Driver: cfg.Storage.Driver,
				Path:   cfg.Storage.Path,
				DSN:    cfg.Storage.DSN,
			}, log)
			if err != nil {
				return err
			}
			defer st.Close()

			m := maintenance.New(maintenance.Config{
				RetentionDays: cfg.Reminders.RetentionDays,
			}, st, log)
			m.PruneNow(ctx)
			return nil
		},
	}
}
