// Package reconcile drives the statistics cache toward the server catalog:
// new tool versions are inserted, removed ones deactivated, and stale
// records re-aggregated.
package reconcile

import (
	"time"

	"github.com/runlab/toolstats/core"
)

// EventKind identifies the type of event emitted during a pass.
type EventKind string

const (
	// EventPassStarted is emitted when a reconciliation pass begins.
	EventPassStarted EventKind = "pass.started"

	// EventToolInserted is emitted when a tool version is cached for the
	// first time.
	EventToolInserted EventKind = "tool.inserted"

	// EventToolDeactivated is emitted when a tool version no longer in the
	// catalog is flagged inactive.
	EventToolDeactivated EventKind = "tool.deactivated"

	// EventToolRefreshed is emitted when a stale record is re-aggregated.
	EventToolRefreshed EventKind = "tool.refreshed"

	// EventToolEmpty is emitted alongside an insert or refresh that found
	// no recorded runs for the tool version.
	EventToolEmpty EventKind = "tool.empty"

	// EventPassFinished is emitted when a pass completes.
	EventPassFinished EventKind = "pass.finished"

	// EventPassFailed is emitted when a pass aborts on an error. Progress
	// committed before the failure stays in the cache.
	EventPassFailed EventKind = "pass.failed"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is a structured record of one reconciliation action.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind

	// PassID identifies the pass that produced the event.
	PassID string

	// Tool carries the record a tool-level event acted on; nil for
	// pass-level events.
	Tool *core.ToolStats

	// Time is when the event occurred.
	Time time.Time

	// Elapsed is the duration since the pass started.
	Elapsed time.Duration

	// Counts summarizes the pass so far; populated on pass.finished and
	// pass.failed.
	Counts Counts

	// Err is the failure that ended the pass; set on pass.failed only.
	Err error
}

// EventHandler is a function type for handling events.
// Implementations can log, count, or forward events as needed.
type EventHandler func(Event)

// MultiEventHandler combines multiple handlers into one.
func MultiEventHandler(handlers ...EventHandler) EventHandler {
	return func(e Event) {
		for _, h := range handlers {
			if h != nil {
				h(e)
			}
		}
	}
}
