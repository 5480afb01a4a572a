package duty

import (
	"time"

	"github.com/pkg/errors"
)

// Window is the sliding interval over which on-air time is tracked, per §4.8.
const Window = time.Hour

// entry records one transmission's airtime for sliding-window accounting.
type entry struct {
	at      time.Time
	airtime time.Duration
}

// Tracker gates transmissions against a per-sub-band duty-cycle budget
// over a 1-hour sliding window. A zero-value Budget means unconstrained,
// the US915 default (FCC rules substitute frequency hopping for duty
// cycling), while still recording airtime for host policies to inspect.
type Tracker struct {
	// Budget is the maximum fraction of Window that may be on-air per
	// sub-band, e.g. 0.01 for a 1% duty cycle. Zero means unconstrained.
	Budget float64

	bySubBand map[int][]entry
}

// NewTracker returns a Tracker with the given per-sub-band duty budget.
// Pass 0 for the US915 default (unconstrained).
func NewTracker(budget float64) *Tracker {
	return &Tracker{
		Budget:    budget,
		bySubBand: make(map[int][]entry),
	}
}

// Allow reports whether a transmission of airtime duration on subBand may
// proceed at now without exceeding the configured budget over the
// trailing Window.
func (t *Tracker) Allow(now time.Time, subBand int, airtime time.Duration) bool {
	if t.Budget <= 0 {
		return true
	}
	used := t.usedLocked(now, subBand)
	return float64(used+airtime) <= t.Budget*float64(Window)
}

// Record accounts for a transmission that was actually sent, per the
// Allow call that gated it.
func (t *Tracker) Record(now time.Time, subBand int, airtime time.Duration) {
	t.bySubBand[subBand] = append(t.prune(now, subBand), entry{at: now, airtime: airtime})
}

// Reserve is Allow followed by Record when allowed, or an error when the
// budget would be exceeded; send_uplink calls this directly.
func (t *Tracker) Reserve(now time.Time, subBand int, airtime time.Duration) error {
	if !t.Allow(now, subBand, airtime) {
		return errors.New("duty: sub-band duty-cycle budget exceeded")
	}
	t.Record(now, subBand, airtime)
	return nil
}

func (t *Tracker) usedLocked(now time.Time, subBand int) time.Duration {
	var used time.Duration
	for _, e := range t.prune(now, subBand) {
		used += e.airtime
	}
	return used
}

// prune drops entries that have aged out of the trailing window and
// returns the surviving slice.
func (t *Tracker) prune(now time.Time, subBand int) []entry {
	entries := t.bySubBand[subBand]
	cutoff := now.Add(-Window)
	i := 0
	for i < len(entries) && entries[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		entries = append([]entry(nil), entries[i:]...)
		t.bySubBand[subBand] = entries
	}
	return entries
}
