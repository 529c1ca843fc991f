package ui

import (
	"sync"
	"time"
)

// rateInterval is the minimum gap between throughput samples.
const rateInterval = 250 * time.Millisecond

// Throughput is measured in contacts per second.
type Throughput struct {
	Now  float64 // over the last sample interval
	Mean float64 // since the stage began
	Peak float64
}

// Snapshot is a point-in-time view of an import.
type Snapshot struct {
	Stage     Stage
	Done      int
	Total     int
	Item      string
	Elapsed   time.Duration // in the current stage
	Remaining time.Duration // zero when unknown
	Rate      Throughput
	Errors    int
	Warnings  int
	Problem   string // most recent error or warning
}

// Fraction returns Done/Total clamped to [0, 1]; zero when Total is unknown.
func (s Snapshot) Fraction() float64 {
	if s.Total <= 0 {
		return 0
	}
	return min(1, float64(s.Done)/float64(s.Total))
}

// Tracker folds progress and error events into a Snapshot. It is safe for
// concurrent use.
type Tracker struct {
	mu    sync.Mutex
	clock func() time.Time

	stage      Stage
	done       int
	total      int
	item       string
	stageStart time.Time

	lastSample time.Time
	lastDone   int
	rateNow    float64
	ratePeak   float64
	spark      *Sparkline

	errors   int
	warnings int
	problem  string
}

// NewTracker returns a tracker positioned at the loading stage.
func NewTracker() *Tracker {
	return newTracker(time.Now)
}

func newTracker(clock func() time.Time) *Tracker {
	now := clock()
	return &Tracker{
		clock:      clock,
		stage:      StageLoading,
		stageStart: now,
		lastSample: now,
		spark:      NewSparkline(60),
	}
}

// Observe applies a progress event. Entering a new stage resets the
// counters and the throughput history.
func (t *Tracker) Observe(ev ProgressEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	if ev.Stage != t.stage {
		t.stage = ev.Stage
		t.done, t.total, t.item = 0, 0, ""
		t.stageStart, t.lastSample, t.lastDone = now, now, 0
		t.rateNow, t.ratePeak = 0, 0
		t.spark.Clear()
	}
	if ev.Total > 0 {
		t.total = ev.Total
	}
	t.done = ev.Current
	if ev.CurrentItem != "" {
		t.item = ev.CurrentItem
	}

	if gap := now.Sub(t.lastSample); gap >= rateInterval {
		if delta := t.done - t.lastDone; delta > 0 {
			t.rateNow = float64(delta) / gap.Seconds()
			t.ratePeak = max(t.ratePeak, t.rateNow)
			t.spark.Add(t.rateNow)
		}
		t.lastSample, t.lastDone = now, t.done
	}
}

// Record counts an error or warning.
func (t *Tracker) Record(ev ErrorEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.IsWarn {
		t.warnings++
	} else {
		t.errors++
	}
	if ev.Err != nil {
		t.problem = ev.Err.Error()
		if ev.Item != "" {
			t.problem = ev.Item + ": " + t.problem
		}
	}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		Stage:    t.stage,
		Done:     t.done,
		Total:    t.total,
		Item:     t.item,
		Elapsed:  t.clock().Sub(t.stageStart),
		Rate:     Throughput{Now: t.rateNow, Peak: t.ratePeak},
		Errors:   t.errors,
		Warnings: t.warnings,
		Problem:  t.problem,
	}
	if s.Done > 0 && s.Elapsed > 0 {
		s.Rate.Mean = float64(s.Done) / s.Elapsed.Seconds()
		if s.Done < s.Total {
			s.Remaining = time.Duration(float64(s.Elapsed) * float64(s.Total-s.Done) / float64(s.Done))
		}
	}
	return s
}

// Sparkline renders the recent throughput samples width cells wide.
func (t *Tracker) Sparkline(width int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spark.RenderWithWidth(width)
}
