package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTranscriber hands the test a channel to drive events through.
type fakeTranscriber struct {
	mu       sync.Mutex
	events   chan Event
	startErr error
	stops    int
}

func (f *fakeTranscriber) Start(ctx context.Context) (<-chan Event, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = make(chan Event, 8)
	return f.events, nil
}

func (f *fakeTranscriber) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeTranscriber) send(ev Event) {
	f.mu.Lock()
	ch := f.events
	f.mu.Unlock()
	ch <- ev
}

func (f *fakeTranscriber) close() {
	f.mu.Lock()
	ch := f.events
	f.mu.Unlock()
	close(ch)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestToggleStartsAndStops(t *testing.T) {
	tr := &fakeTranscriber{}
	b := NewBridge(tr, nil)

	if got := b.State(); got != StateIdle {
		t.Fatalf("initial state = %v", got)
	}

	if err := b.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if got := b.State(); got != StateListening {
		t.Fatalf("state after toggle = %v", got)
	}

	if err := b.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if got := b.State(); got != StateIdle {
		t.Fatalf("state after second toggle = %v", got)
	}
	tr.close()
}

func TestInterimNeverEntersTranscript(t *testing.T) {
	tr := &fakeTranscriber{}
	b := NewBridge(tr, nil)
	if err := b.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	tr.send(Event{Text: "zeige alle", Final: false})
	waitFor(t, func() bool { return b.Interim() == "zeige alle" })

	if got := b.Transcript(); got != "" {
		t.Errorf("interim text leaked into the transcript: %q", got)
	}

	tr.send(Event{Text: "zeige alle Quellen", Final: true})
	waitFor(t, func() bool { return b.Transcript() == "zeige alle Quellen" })

	if got := b.Interim(); got != "" {
		t.Errorf("interim should clear on finalization, got %q", got)
	}
	b.Stop()
	tr.close()
}

func TestStopBeforeFinalKeepsBuffer(t *testing.T) {
	tr := &fakeTranscriber{}
	b := NewBridge(tr, nil)
	if err := b.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	tr.send(Event{Text: "erste Aufnahme", Final: true})
	waitFor(t, func() bool { return b.Transcript() == "erste Aufnahme" })

	tr.send(Event{Text: "zweite unvollendet", Final: false})
	waitFor(t, func() bool { return b.Interim() == "zweite unvollendet" })

	// Cancelling mid-utterance discards the interim, keeps the finalized text.
	b.Stop()
	if got := b.Transcript(); got != "erste Aufnahme" {
		t.Errorf("transcript after stop = %q, want the finalized segment only", got)
	}
	if got := b.Interim(); got != "" {
		t.Errorf("interim survived the stop: %q", got)
	}
	tr.close()
}

func TestNewRecordingClearsPreviousTranscript(t *testing.T) {
	tr := &fakeTranscriber{}
	b := NewBridge(tr, nil)

	if err := b.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	tr.send(Event{Text: "alte Aufnahme", Final: true})
	waitFor(t, func() bool { return b.Transcript() == "alte Aufnahme" })
	b.Stop()
	tr.close()

	if err := b.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if got := b.Transcript(); got != "" {
		t.Errorf("starting a recording must clear the old transcript, got %q", got)
	}
	b.Stop()
	tr.close()
}

func TestRecognitionErrorForcesIdle(t *testing.T) {
	tr := &fakeTranscriber{}
	b := NewBridge(tr, nil)
	if err := b.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	tr.send(Event{Err: errors.New("microphone lost")})
	waitFor(t, func() bool { return b.State() == StateIdle })
	if b.Err() == nil {
		t.Error("capture error not exposed")
	}
	tr.close()

	// A new recording starts clean.
	if err := b.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle after error: %v", err)
	}
	if b.Err() != nil {
		t.Error("capture error survived a new recording")
	}
	b.Stop()
	tr.close()
}

func TestClearErrDismissesCaptureError(t *testing.T) {
	tr := &fakeTranscriber{}
	b := NewBridge(tr, nil)
	if err := b.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	tr.send(Event{Err: errors.New("recognizer crashed")})
	waitFor(t, func() bool { return b.Err() != nil })
	tr.close()

	b.ClearErr()
	if b.Err() != nil {
		t.Error("ClearErr left the error in place")
	}
}

func TestStartFailureStaysIdle(t *testing.T) {
	tr := &fakeTranscriber{startErr: errors.New("no recognizer")}
	b := NewBridge(tr, nil)

	if err := b.Toggle(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if got := b.State(); got != StateIdle {
		t.Errorf("state after failed start = %v", got)
	}
}

func TestConsumeClearsTranscript(t *testing.T) {
	tr := &fakeTranscriber{}
	b := NewBridge(tr, nil)
	if err := b.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	tr.send(Event{Text: "eins", Final: true})
	tr.send(Event{Text: "zwei", Final: true})
	waitFor(t, func() bool { return b.Transcript() == "eins zwei" })
	b.Stop()

	if got := b.Consume(); got != "eins zwei" {
		t.Fatalf("Consume = %q", got)
	}
	if got := b.Consume(); got != "" {
		t.Errorf("second Consume = %q, want empty", got)
	}
	tr.close()
}
