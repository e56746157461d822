// Package progress models operation progress as a bounded event stream with
// cooperative cancellation. The pipeline produces events at chunk boundaries;
// callers consume them through a sink and request cancellation through the
// same tracker.
package progress

import (
	"errors"
	"sync"
	"sync/atomic"
)

// StageComplete is the stage of the final event of a successful operation.
const StageComplete = "complete"

// ErrCancelled is returned by pipeline stages after Cancel has been observed.
var ErrCancelled = errors.New("operation cancelled")

// Event is one progress notification.
type Event struct {
	BytesProcessed uint64
	TotalBytes     uint64 // 0 when unknown
	Percent        int    // -1 when unknown
	Stage          string
	Detail         string
}

// Sink receives events for one operation in emission order.
type Sink func(Event)

// Tracker accumulates byte counts for one operation and emits monotonically
// bounded events to its sink. The zero tracker and the nil tracker are both
// usable; they count bytes (or nothing) and emit nothing.
type Tracker struct {
	mu        sync.Mutex
	sink      Sink
	stage     string
	total     uint64
	processed uint64
	lastPct   int
	finished  bool

	cancelled atomic.Bool
}

// NewTracker creates a tracker emitting to sink. totalBytes may be 0 when the
// operation's total is unknown; percent is then reported as -1.
func NewTracker(sink Sink, totalBytes uint64) *Tracker {
	return &Tracker{sink: sink, total: totalBytes, lastPct: -1}
}

// SetTotal records the operation's total byte count once it becomes known.
func (t *Tracker) SetTotal(n uint64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.total = n
	t.mu.Unlock()
}

// Start emits the initial event for the given stage.
func (t *Tracker) Start(stage string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = stage
	t.emitLocked("")
}

// Add accumulates n processed bytes and emits an event for the current stage.
// No events are emitted after cancellation or completion.
func (t *Tracker) Add(n uint64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed += n
	t.emitLocked("")
}

// Complete emits the terminal 100% event. It must only be called after the
// operation has fully succeeded; failed or cancelled operations never reach
// 100%.
func (t *Tracker) Complete(detail string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.stage = StageComplete
	t.lastPct = 100
	if t.sink != nil && !t.cancelled.Load() {
		t.sink(Event{
			BytesProcessed: t.processed,
			TotalBytes:     t.total,
			Percent:        100,
			Stage:          StageComplete,
			Detail:         detail,
		})
	}
	t.finished = true
}

// Cancel requests cooperative cancellation. The pipeline observes it at the
// next chunk boundary.
func (t *Tracker) Cancel() {
	if t == nil {
		return
	}
	t.cancelled.Store(true)
}

// Cancelled reports whether cancellation has been requested.
func (t *Tracker) Cancelled() bool {
	return t != nil && t.cancelled.Load()
}

// BytesProcessed returns the accumulated byte count.
func (t *Tracker) BytesProcessed() uint64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed
}

// emitLocked computes the bounded percent and forwards one event to the sink.
// Percent never decreases; it is clamped below 100 until Complete.
func (t *Tracker) emitLocked(detail string) {
	if t.sink == nil || t.finished || t.cancelled.Load() {
		return
	}

	pct := -1
	if t.total > 0 {
		pct = int(t.processed * 100 / t.total)
		if pct > 99 {
			pct = 99
		}
		if pct < t.lastPct {
			pct = t.lastPct
		}
		t.lastPct = pct
	}

	t.sink(Event{
		BytesProcessed: t.processed,
		TotalBytes:     t.total,
		Percent:        pct,
		Stage:          t.stage,
		Detail:         detail,
	})
}
