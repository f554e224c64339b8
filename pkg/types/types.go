package types

import "time"

// EventType discriminates which mandatory-field schema a telemetry event
// must satisfy. The set is extensible; these are the kinds the MUX side
// currently emits.
type EventType string

const (
	EventSay  EventType = "SAY"
	EventMove EventType = "MOVE"
)

// Identity is a server-assigned object reference plus a display name.
// The bridge records both as the raw dbref; name resolution happens
// downstream (renderer identity map).
type Identity struct {
	DBRef string `json:"dbref"`
	Name  string `json:"name"`
}

// Perception carries visibility metadata for an event. The bridge never
// interprets it; it is passed through opaquely for downstream consumers.
type Perception struct {
	PerceivedBy []string `json:"perceived_by"`
	OccludedFor []string `json:"occluded_for"`
}

// Event is the canonical telemetry record, one JSON line in the journal.
type Event struct {
	TsUTC      string            `json:"ts_utc"`
	RunID      string            `json:"run_id"`
	Seq        uint64            `json:"seq"`
	Type       EventType         `json:"type"`
	Actor      Identity          `json:"actor"`
	Location   Identity          `json:"location"`
	Content    map[string]string `json:"content"`
	Perception Perception        `json:"perception"`
}

// RunMeta describes one process run. Written once at startup, immutable.
type RunMeta struct {
	RunID        string `json:"run_id"`
	StartedAtUTC string `json:"started_at_utc"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	PID          int    `json:"pid"`
	Version      string `json:"bridge_version"`
	AuthUser     string `json:"auth_user"`
}

// HeartbeatSnapshot is the full-replace liveness record. Each emission
// supersedes the previous one; no history is kept.
type HeartbeatSnapshot struct {
	Ts            string `json:"ts"`
	PID           int    `json:"pid"`
	Connected     bool   `json:"mux_connected"`
	LastRxUTC     string `json:"last_event_rx_utc,omitempty"`
	LastWriteUTC  string `json:"last_event_write_utc,omitempty"`
	EventsWritten uint64 `json:"events_written"`
	RunID         string `json:"run_id"`
}

// TimestampUTC formats t as ISO-8601 UTC with millisecond precision,
// the wire format of every ts_utc field.
func TimestampUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// DayUTC returns the UTC calendar day of t as YYYY-MM-DD, the journal
// partition key.
func DayUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
