package session

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/noesislabs/noesis-bridge/pkg/types"
)

// Counters holds the live state shared between the session's primary loop
// and the timer-driven observers (heartbeat, keepalive). The primary loop
// is the only mutator; observers read through atomic snapshot accessors.
//
// Counters outlive any single Session: the run driver creates one set per
// process run and hands it to every Session it constructs, which is what
// keeps seq strictly increasing across reconnects within a run_id.
type Counters struct {
	seq           atomic.Uint64
	eventsWritten atomic.Uint64
	lastRxMs      atomic.Int64
	lastWriteMs   atomic.Int64
	connected     atomic.Bool
}

// NewCounters creates a zeroed counter set for one process run.
func NewCounters() *Counters {
	return &Counters{}
}

// NextSeq consumes and returns the next sequence number, starting at 1.
// Callers must only invoke it for an event that has already passed
// validation; rejected input never consumes a number.
func (c *Counters) NextSeq() uint64 {
	return c.seq.Add(1)
}

// Seq returns the last assigned sequence number without consuming one.
func (c *Counters) Seq() uint64 {
	return c.seq.Load()
}

// EventsWritten returns the cumulative count of durably written events.
func (c *Counters) EventsWritten() uint64 {
	return c.eventsWritten.Load()
}

// Connected reports whether the session is currently in the Ready state.
func (c *Counters) Connected() bool {
	return c.connected.Load()
}

// LastReceive returns the time of the last byte received, or the zero
// time if nothing has been received yet.
func (c *Counters) LastReceive() time.Time {
	return msToTime(c.lastRxMs.Load())
}

// LastWrite returns the time of the last durable event write, or the
// zero time if nothing has been written yet.
func (c *Counters) LastWrite() time.Time {
	return msToTime(c.lastWriteMs.Load())
}

func (c *Counters) markReceive(t time.Time) {
	c.lastRxMs.Store(t.UnixMilli())
}

func (c *Counters) markWrite(t time.Time) {
	c.eventsWritten.Add(1)
	c.lastWriteMs.Store(t.UnixMilli())
}

func (c *Counters) setConnected(v bool) {
	c.connected.Store(v)
}

// Snapshot assembles the heartbeat record from the current counter values.
func (c *Counters) Snapshot(runID string) types.HeartbeatSnapshot {
	hb := types.HeartbeatSnapshot{
		Ts:            types.TimestampUTC(time.Now()),
		PID:           os.Getpid(),
		Connected:     c.Connected(),
		EventsWritten: c.EventsWritten(),
		RunID:         runID,
	}
	if rx := c.LastReceive(); !rx.IsZero() {
		hb.LastRxUTC = types.TimestampUTC(rx)
	}
	if w := c.LastWrite(); !w.IsZero() {
		hb.LastWriteUTC = types.TimestampUTC(w)
	}
	return hb
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
