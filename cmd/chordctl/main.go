package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matheus3301/chordd/internal/bus"
	"github.com/matheus3301/chordd/internal/client"
	"github.com/matheus3301/chordd/internal/config"
	"github.com/matheus3301/chordd/internal/eventloop"
	"github.com/matheus3301/chordd/internal/instance"
	"github.com/matheus3301/chordd/internal/lock"
	"github.com/matheus3301/chordd/internal/store"
	"github.com/matheus3301/chordd/internal/term"
)

// errReported means the command already printed its errors.
var errReported = errors.New("errors reported")

type globals struct {
	display      string
	settingsPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var list config.ErrorList
		switch {
		case errors.Is(err, errReported):
		case errors.As(err, &list):
			list.Report(os.Stderr)
		default:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "chordctl",
		Short:         "Inspect and test chordd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&g.display, "display", "d", "", "X display of the daemon (default $DISPLAY)")
	cmd.PersistentFlags().StringVar(&g.settingsPath, "settings", instance.SettingsPath(), "settings file")

	cmd.AddCommand(
		newStatusCmd(g),
		newHistoryCmd(g),
		newCheckCmd(),
		newTryCmd(g),
		newSettingsCmd(g),
	)
	return cmd
}

func (g *globals) settings() (*config.Settings, error) {
	return config.LoadOrDefault(g.settingsPath)
}

func (g *globals) resolve() (display, key string, err error) {
	settings, err := g.settings()
	if err != nil {
		return "", "", err
	}
	display, err = instance.ResolveDisplay(g.display, settings)
	if err != nil {
		return "", "", err
	}
	key, err = instance.Key(display)
	return display, key, err
}

func newStatusCmd(g *globals) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a daemon serves the display",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			display, key, err := g.resolve()
			if err != nil {
				return err
			}
			c, err := client.New(instance.SocketPath(key))
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			out := cmd.OutOrStdout()
			if watch {
				return c.Watch(cmd.Context(), func(serving bool) {
					fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.TimeOnly), servingText(serving))
				})
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			serving, err := c.Serving(ctx)
			if err != nil {
				return fmt.Errorf("display %s: %w", display, err)
			}
			fmt.Fprintf(out, "Display: %s\n", display)
			fmt.Fprintf(out, "Status:  %s\n", servingText(serving))
			if pid := lock.Holder(instance.Dir(key)); pid != 0 {
				fmt.Fprintf(out, "PID:     %d\n", pid)
			}
			if spawned, failed, err := dispatchCounts(key); err == nil {
				fmt.Fprintf(out, "Spawned: %d\n", spawned)
				fmt.Fprintf(out, "Failed:  %d\n", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "print every status change")
	return cmd
}

func servingText(serving bool) string {
	if serving {
		return "serving"
	}
	return "not serving"
}

func openJournal(key string) (*store.DB, error) {
	path := instance.DBPath(key)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no journal for this display: %w", err)
	}
	return store.Open(path)
}

func dispatchCounts(key string) (spawned, failed int, err error) {
	db, err := openJournal(key)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = db.Close() }()
	if spawned, err = db.CountDispatches(store.StatusSpawned); err != nil {
		return 0, 0, err
	}
	failed, err = db.CountDispatches(store.StatusFailed)
	return spawned, failed, err
}

func newHistoryCmd(g *globals) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent dispatches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, key, err := g.resolve()
			if err != nil {
				return err
			}
			db, err := openJournal(key)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			recent, err := db.RecentDispatches(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(recent)
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSEQUENCE\tSTATUS\tRESULT\tCOMMAND")
			for _, d := range recent {
				result := fmt.Sprint(d.PID)
				if d.Status == store.StatusFailed {
					result = d.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					d.CreatedAt.Format(time.DateTime), d.Sequence, d.Status, result, d.Command)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of dispatches to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <bindings-file>",
		Short: "Parse a bindings file and report every error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := config.ParseFile(args[0])
			var list config.ErrorList
			if errors.As(err, &list) {
				list.Report(cmd.ErrOrStderr())
				return errReported
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bindings\n", args[0], table.Len())
			return nil
		},
	}
}

// dryRun stands in for the dispatcher: completed bindings are only printed.
type dryRun struct{}

func (dryRun) Dispatch(config.Binding) {}

func newTryCmd(g *globals) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "try <bindings-file>",
		Short: "Type sequences in the terminal and see what would run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := g.settings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("timeout") {
				settings.Timeout = timeout
			}
			table, err := config.ParseFile(args[0])
			if err != nil {
				return err
			}

			screen, err := term.Open()
			if err != nil {
				return err
			}
			defer screen.Close()

			m, err := eventloop.Prepare(table, screen, settings.Timeout)
			if err != nil {
				return err
			}

			b := bus.New()
			events, unsub := b.Subscribe(bus.NamespaceMatch, 64)
			defer unsub()
			go func() {
				for evt := range events {
					screen.Print(describe(evt))
				}
			}()

			screen.Print(fmt.Sprintf("%s: %d bindings, timeout %s. Ctrl+C quits.", args[0], m.Len(), m.Timeout()))
			loop := eventloop.New(m, screen, dryRun{}, nil, b, zap.NewNop())
			err = loop.Run(cmd.Context())
			if errors.Is(err, term.ErrQuit) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "time allowed between the chords of a sequence")
	return cmd
}

func describe(evt bus.Event) string {
	p, _ := evt.Payload.(bus.MatchPayload)
	switch evt.Kind {
	case bus.KindMatchPending:
		return fmt.Sprintf("%s ...", p.Sequence)
	case bus.KindMatchCompleted:
		return fmt.Sprintf("%s => %s (line %d)", p.Sequence, p.Command, p.Line)
	case bus.KindMatchNoMatch:
		return fmt.Sprintf("%s: no binding", p.Sequence)
	case bus.KindMatchTimedOut:
		return fmt.Sprintf("%s: timed out", p.Sequence)
	}
	return evt.Kind
}

func newSettingsCmd(g *globals) *cobra.Command {
	var initFile bool
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if initFile {
				if _, err := os.Stat(g.settingsPath); err == nil {
					return fmt.Errorf("%s already exists", g.settingsPath)
				}
				if err := config.Save(g.settingsPath, config.Defaults()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", g.settingsPath)
				return nil
			}
			s, err := g.settings()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "default_display = %q\n", s.DefaultDisplay)
			fmt.Fprintf(out, "timeout         = %q\n", s.Timeout)
			fmt.Fprintf(out, "shell           = %q\n", s.Shell)
			fmt.Fprintf(out, "log_level       = %q\n", s.LogLevel)
			fmt.Fprintf(out, "journal         = %t\n", s.Journal)
			return nil
		},
	}
	cmd.Flags().BoolVar(&initFile, "init", false, "write a settings file with the defaults")
	return cmd
}
