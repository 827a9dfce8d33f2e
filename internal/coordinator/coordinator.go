// Package coordinator makes sure only the latest calculation of a session
// is surfaced and that bursts of edits collapse into one calculation.
package coordinator

import (
	"sync"
	"time"
)

// Versions issues and tracks monotonically increasing request versions per
// session. A result may be surfaced only while its version is the latest.
type Versions struct {
	mu     sync.Mutex
	latest map[string]uint64
}

// NewVersions returns an empty version registry.
func NewVersions() *Versions {
	return &Versions{latest: make(map[string]uint64)}
}

// Next issues a new version for session.
func (v *Versions) Next(session string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.latest[session]++
	return v.latest[session]
}

// Observe records a caller-assigned version. It reports false when a newer
// version was already seen, in which case the request is stale.
func (v *Versions) Observe(session string, version uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if version < v.latest[session] {
		return false
	}
	v.latest[session] = version
	return true
}

// IsLatest reports whether version is still the newest of session.
func (v *Versions) IsLatest(session string, version uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.latest[session] == version
}

// Latest returns the newest version of session, 0 if none.
func (v *Versions) Latest(session string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.latest[session]
}

// Debouncer runs the most recently triggered function once no trigger has
// arrived for its delay.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

// NewDebouncer returns a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn, replacing any function still waiting.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels the waiting function, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
