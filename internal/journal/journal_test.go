package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chordd/internal/bus"
	"github.com/matheus3301/chordd/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// waitRows polls until the journal holds n rows.
func waitRows(t *testing.T, db *store.DB, n int) []store.Dispatch {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rows, err := db.RecentDispatches(100)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) >= n || time.Now().After(deadline) {
			if len(rows) != n {
				t.Fatalf("got %d rows, want %d", len(rows), n)
			}
			return rows
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestJournalRecordsDispatchEvents(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	logger, _ := zap.NewDevelopment()
	j := New(db, b, logger)
	j.Start(context.Background())
	defer j.Stop()

	b.Emit(bus.KindDispatchSpawned, bus.DispatchPayload{ID: "1", Sequence: "ctrl+a", Command: "echo A", PID: 42})
	b.Emit(bus.KindDispatchFailed, bus.DispatchPayload{ID: "2", Sequence: "ctrl+a b", Command: "nope", Err: "not found"})

	rows := waitRows(t, db, 2)
	byID := map[string]store.Dispatch{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	if r := byID["1"]; r.Status != store.StatusSpawned || r.PID != 42 || r.Command != "echo A" {
		t.Errorf("spawned row = %+v", r)
	}
	if r := byID["2"]; r.Status != store.StatusFailed || r.Error != "not found" {
		t.Errorf("failed row = %+v", r)
	}
}

func TestJournalIgnoresOtherEvents(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	j := New(db, b, zap.NewNop())
	j.Start(context.Background())

	b.Emit(bus.KindMatchCompleted, bus.MatchPayload{Sequence: "a"})
	b.Emit(bus.KindDispatchSpawned, "not a payload")
	b.Emit(bus.KindDispatchSpawned, bus.DispatchPayload{ID: "ok", Sequence: "a", Command: "true"})

	waitRows(t, db, 1)
	j.Stop()
}

func TestJournalStopsOnStop(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	j := New(db, b, zap.NewNop())
	j.Start(context.Background())
	j.Stop()

	b.Emit(bus.KindDispatchSpawned, bus.DispatchPayload{ID: "late", Sequence: "a", Command: "true"})
	time.Sleep(50 * time.Millisecond)
	if n, _ := db.CountDispatches(""); n != 0 {
		t.Errorf("journal recorded %d rows after Stop", n)
	}
}
