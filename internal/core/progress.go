package core

import (
	"sync"
	"time"
)

// ProgressSource emits step-cursor advances for one commit attempt. The
// production source is a wall-clock simulation because the backend exposes
// no incremental progress channel for generation commits; this interface is
// the seam where a real server-sent channel would plug in.
type ProgressSource interface {
	// Start begins emitting; advance is called with the new active step
	// index (1-based position within stepCount). The returned stop function
	// tears the source down and is safe to call more than once.
	Start(stepCount int, advance func(cursor int)) (stop func())
}

// SimulatedTimeline advances the cursor on a fixed cadence, independent of
// actual backend progress. Phase semantics (pending→active→done) are the
// contract; the cadence is cosmetic.
type SimulatedTimeline struct {
	Interval time.Duration
}

// Start implements ProgressSource.
func (s SimulatedTimeline) Start(stepCount int, advance func(cursor int)) func() {
	interval := s.Interval
	if interval <= 0 {
		interval = 700 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		cursor := 1
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				// Hold on the last step until the commit settles; the
				// tracker forces completion on success.
				if cursor < stepCount {
					cursor++
					advance(cursor)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// DefaultGenerationSteps is the fixed timeline shown during an
// AI-generation-heavy commit.
func DefaultGenerationSteps() []GenerationStep {
	return []GenerationStep{
		{Ordinal: 1, Title: "Interpreting command", Subtitle: "Parsing the natural-language request"},
		{Ordinal: 2, Title: "Generating search terms", Subtitle: "Deriving queries for source discovery"},
		{Ordinal: 3, Title: "Deriving URL patterns", Subtitle: "Building crawl scope filters"},
		{Ordinal: 4, Title: "Composing extraction prompt", Subtitle: "Writing the AI extraction instructions"},
		{Ordinal: 5, Title: "Linking sources", Subtitle: "Attaching sources and scheduling crawls"},
	}
}

// ProgressTracker renders a best-effort multi-step indicator while a
// generation-heavy commit is in flight. Its source is torn down exactly once
// per commit attempt, on success, failure, and teardown alike.
type ProgressTracker struct {
	mu     sync.Mutex
	source ProgressSource
	steps  []GenerationStep
	cursor int // 1-based active step; 0 when inactive
	stop   func()
	active bool
}

// NewProgressTracker creates a tracker over the given source; a nil source
// falls back to the simulated timeline.
func NewProgressTracker(source ProgressSource) *ProgressTracker {
	if source == nil {
		source = SimulatedTimeline{}
	}
	return &ProgressTracker{source: source}
}

// Begin starts a new attempt for the named operation. A still-active
// previous attempt is finished (unsuccessfully) first so its timer can never
// leak into this one.
func (t *ProgressTracker) Begin(operation string) {
	t.Finish(false)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.steps = DefaultGenerationSteps()
	t.cursor = 1
	t.applyCursorLocked()
	t.active = true
	t.stop = t.source.Start(len(t.steps), t.advance)
}

func (t *ProgressTracker) advance(cursor int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		// Late tick after Finish; the attempt is over.
		return
	}
	t.cursor = cursor
	t.applyCursorLocked()
}

// Finish tears the current attempt down. Idempotent: a second call (or a
// call with no attempt running) is a no-op. On success the cursor is forced
// to the final step and every step is marked done.
func (t *ProgressTracker) Finish(success bool) {
	t.mu.Lock()
	stop := t.stop
	t.stop = nil
	wasActive := t.active
	t.active = false

	if wasActive && success {
		t.cursor = len(t.steps)
		for i := range t.steps {
			t.steps[i].Status = StepDone
		}
	}
	if wasActive && !success {
		t.steps = nil
		t.cursor = 0
	}
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Active reports whether an attempt is in flight.
func (t *ProgressTracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Snapshot returns a copy of the current step list for rendering.
func (t *ProgressTracker) Snapshot() []GenerationStep {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]GenerationStep, len(t.steps))
	copy(out, t.steps)
	return out
}

func (t *ProgressTracker) applyCursorLocked() {
	for i := range t.steps {
		switch {
		case i+1 < t.cursor:
			t.steps[i].Status = StepDone
		case i+1 == t.cursor:
			t.steps[i].Status = StepActive
		default:
			t.steps[i].Status = StepPending
		}
	}
}
