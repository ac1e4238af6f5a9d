// Package dispatch runs the action of a completed binding.
package dispatch

import (
	"os/exec"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/chordd/internal/bus"
	"github.com/matheus3301/chordd/internal/config"
)

// StartFunc starts a prepared command without waiting for it.
type StartFunc func(cmd *exec.Cmd) error

// Dispatcher spawns binding commands as detached processes.
type Dispatcher struct {
	shell  string
	bus    *bus.Bus
	logger *zap.Logger
	start  StartFunc
}

// New creates a Dispatcher that runs commands through shell -c.
func New(shell string, b *bus.Bus, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{shell: shell, bus: b, logger: logger, start: startDetached}
}

// WithStart replaces the process starter. Used by tests.
func (d *Dispatcher) WithStart(fn StartFunc) *Dispatcher {
	d.start = fn
	return d
}

// Dispatch runs b's action. It never blocks on the child and never fails:
// spawn errors are logged and published.
func (d *Dispatcher) Dispatch(b config.Binding) {
	seq := b.Sequence.String()
	if b.Action.Kind != config.RunCommand {
		d.logger.Warn("unknown action kind", zap.Stringer("kind", b.Action.Kind), zap.String("sequence", seq))
		return
	}
	if b.Action.Command == "" {
		d.logger.Debug("binding has no command", zap.String("sequence", seq), zap.Int("line", b.Line))
		return
	}

	id := uuid.NewString()
	cmd := exec.Command(d.shell, "-c", b.Action.Command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := d.start(cmd); err != nil {
		d.logger.Error("spawn failed",
			zap.String("id", id),
			zap.String("sequence", seq),
			zap.String("command", b.Action.Command),
			zap.Error(err),
		)
		d.bus.Emit(bus.KindDispatchFailed, bus.DispatchPayload{
			ID: id, Sequence: seq, Command: b.Action.Command, Err: err.Error(),
		})
		return
	}

	pid := 0
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}
	d.logger.Info("spawned",
		zap.String("id", id),
		zap.String("sequence", seq),
		zap.String("command", b.Action.Command),
		zap.Int("pid", pid),
	)
	d.bus.Emit(bus.KindDispatchSpawned, bus.DispatchPayload{
		ID: id, Sequence: seq, Command: b.Action.Command, PID: pid,
	})
}

// startDetached starts cmd with stdio on the null device and reaps it in the
// background.
func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
