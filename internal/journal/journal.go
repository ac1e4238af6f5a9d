// Package journal records dispatched commands in the store.
package journal

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/chordd/internal/bus"
	"github.com/matheus3301/chordd/internal/store"
)

// Journal subscribes to "dispatch.*" events on the bus and writes one row
// per event.
type Journal struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new journal.
func New(db *store.DB, b *bus.Bus, logger *zap.Logger) *Journal {
	return &Journal{
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to dispatch events on the bus.
func (j *Journal) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})
	ch, unsub := j.bus.Subscribe(bus.NamespaceDispatch, 256)

	go func() {
		defer close(j.done)
		defer unsub()
		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					return
				}
				j.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the journal and waits for the subscriber to exit.
func (j *Journal) Stop() {
	if j.cancel != nil {
		j.cancel()
		<-j.done
	}
}

func (j *Journal) handleEvent(evt bus.Event) {
	p, ok := evt.Payload.(bus.DispatchPayload)
	if !ok {
		return
	}
	d := store.Dispatch{
		ID:        p.ID,
		Sequence:  p.Sequence,
		Command:   p.Command,
		PID:       p.PID,
		Error:     p.Err,
		CreatedAt: evt.Timestamp,
	}
	switch evt.Kind {
	case bus.KindDispatchSpawned:
		d.Status = store.StatusSpawned
	case bus.KindDispatchFailed:
		d.Status = store.StatusFailed
	default:
		return
	}
	if err := j.db.RecordDispatch(d); err != nil {
		j.logger.Error("failed to journal dispatch", zap.Error(err), zap.String("id", d.ID))
	}
}
