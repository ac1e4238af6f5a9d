package store

import (
	"fmt"
	"time"
)

// Dispatch statuses.
const (
	StatusSpawned = "spawned"
	StatusFailed  = "failed"
)

// Dispatch is one journaled command launch.
type Dispatch struct {
	ID        string    `json:"id"`
	Sequence  string    `json:"sequence"`
	Command   string    `json:"command"`
	Status    string    `json:"status"`
	PID       int       `json:"pid,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordDispatch inserts a journal row. A zero CreatedAt is stamped with now.
func (db *DB) RecordDispatch(d Dispatch) error {
	switch d.Status {
	case StatusSpawned, StatusFailed:
	default:
		return fmt.Errorf("record dispatch %s: unknown status %q", d.ID, d.Status)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO dispatches (id, sequence, command, status, pid, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Sequence, d.Command, d.Status, d.PID, d.Error, d.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record dispatch %s: %w", d.ID, err)
	}
	return nil
}

// RecentDispatches returns up to limit rows, newest first.
func (db *DB) RecentDispatches(limit int) ([]Dispatch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, sequence, command, status, pid, error, created_at
		FROM dispatches ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Dispatch
	for rows.Next() {
		var d Dispatch
		var created int64
		if err := rows.Scan(&d.ID, &d.Sequence, &d.Command, &d.Status, &d.PID, &d.Error, &created); err != nil {
			return nil, err
		}
		d.CreatedAt = time.UnixMilli(created)
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountDispatches returns the number of journal rows with the given status,
// or all rows when status is empty.
func (db *DB) CountDispatches(status string) (int, error) {
	var n int
	var err error
	if status == "" {
		err = db.QueryRow(`SELECT COUNT(*) FROM dispatches`).Scan(&n)
	} else {
		err = db.QueryRow(`SELECT COUNT(*) FROM dispatches WHERE status = ?`, status).Scan(&n)
	}
	return n, err
}
