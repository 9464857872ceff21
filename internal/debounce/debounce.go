// Package debounce collapses bursts of events on the same key into a single
// callback invocation, the way the teacher's daemon debounces mutation and
// file-change events before triggering export/import.
//
// Unlike the teacher's single-key Debouncer (one timer for one JSONL file),
// the watcher emits events for many paths concurrently, so this package
// keeps one independent timer per key: a cancel-and-rearm timer that fires
// `duration` after the last Trigger call for that key, last-event-wins.
//
// Each Trigger call also carries a kind (created/modified/existing); the
// callback receives whichever kind was passed on the Trigger call that
// armed the timer that fired, so a burst of events on one path collapses
// into a single callback carrying the most recent event's kind.
package debounce

import (
	"sync"
	"time"
)

// Debouncer tracks one timer per key. Calling Trigger for a key that already
// has a pending timer cancels and restarts it; the callback only runs once
// the key has gone quiet for the configured duration.
type Debouncer struct {
	duration time.Duration
	callback func(key, kind string)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// New creates a Debouncer that invokes callback(key, kind) duration after
// the most recent Trigger(key, kind) call, provided no further Trigger(key,
// ...) arrives in the meantime. kind is whatever was passed on that last
// call.
//
// callback runs on its own goroutine (via time.AfterFunc) — callers that
// need to serialize callback invocations must do so themselves.
func New(duration time.Duration, callback func(key, kind string)) *Debouncer {
	return &Debouncer{
		duration: duration,
		callback: callback,
		timers:   make(map[string]*time.Timer),
	}
}

// Trigger (re)arms the timer for key, remembering kind. A Trigger received
// while a previous timer for the same key is still pending cancels that
// timer and replaces its kind; the callback fires at most once per quiet
// period, with the kind from the Trigger call that armed the timer which
// actually fired.
func (d *Debouncer) Trigger(key, kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}

	d.timers[key] = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		d.callback(key, kind)
	})
}

// Cancel stops the pending timer for key, if any, without invoking the
// callback.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
		delete(d.timers, key)
	}
}

// CancelAll stops every pending timer and prevents further Trigger calls
// from arming new ones. It is safe to call more than once.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
	d.stopped = true
}
