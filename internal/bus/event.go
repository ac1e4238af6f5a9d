package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Namespaces, used as Subscribe prefixes.
const (
	NamespaceMatch    = "match."
	NamespaceDispatch = "dispatch."
	NamespaceDaemon   = "daemon."
)

// Event kinds.
const (
	KindMatchPending   = "match.pending"
	KindMatchCompleted = "match.completed"
	KindMatchNoMatch   = "match.nomatch"
	KindMatchTimedOut  = "match.timedout"

	KindDispatchSpawned = "dispatch.spawned"
	KindDispatchFailed  = "dispatch.failed"

	KindStatusChanged = "daemon.status_changed"
)

// MatchPayload accompanies match.* events.
type MatchPayload struct {
	Sequence string // chords of the attempt, space separated
	Command  string // set for match.completed
	Line     int    // bindings file line, set for match.completed
}

// DispatchPayload accompanies dispatch.* events.
type DispatchPayload struct {
	ID       string
	Sequence string
	Command  string
	PID      int    // set for dispatch.spawned
	Err      string // set for dispatch.failed
}
