package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/matheus3301/chordd/internal/config"
	"github.com/matheus3301/chordd/internal/daemon"
	"github.com/matheus3301/chordd/internal/instance"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var list config.ErrorList
		if errors.As(err, &list) {
			list.Report(os.Stderr)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		displayFlag  string
		settingsPath string
	)
	cmd := &cobra.Command{
		Use:           "chordd [flags] <bindings-file>",
		Short:         "Run commands on X11 key sequences",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadOrDefault(settingsPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("timeout") {
				settings.Timeout, _ = cmd.Flags().GetDuration("timeout")
				if err := settings.Validate(); err != nil {
					return err
				}
			}

			table, err := config.ParseFile(args[0])
			if err != nil {
				return err
			}

			display, err := instance.ResolveDisplay(displayFlag, settings)
			if err != nil {
				return err
			}
			key, err := instance.Key(display)
			if err != nil {
				return err
			}

			app := fx.New(
				daemon.Module(daemon.Params{
					Display:  display,
					Key:      key,
					Table:    table,
					Settings: settings,
				}),
				fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
					return &fxevent.ZapLogger{Logger: logger.Named("fx")}
				}),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
	cmd.Flags().StringVarP(&displayFlag, "display", "d", "", "X display to serve (default $DISPLAY)")
	cmd.Flags().StringVar(&settingsPath, "settings", instance.SettingsPath(), "settings file")
	cmd.Flags().Duration("timeout", config.DefaultTimeout, "time allowed between the chords of a sequence")
	cmd.Flags().BoolP("version", "V", false, "print version and exit")
	return cmd
}
