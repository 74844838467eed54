// Package speech bridges an external speech-to-text engine into the query
// input field. The bridge owns a two-state machine (idle, listening); interim
// transcripts are display-only and never touch the input buffer, finalized
// segments accumulate until the console consumes them.
package speech

import (
	"context"
	"strings"
	"sync"

	"crawldesk/internal/logging"
)

// State is the bridge's recording state.
type State int

const (
	StateIdle State = iota
	StateListening
)

func (s State) String() string {
	if s == StateListening {
		return "listening"
	}
	return "idle"
}

// Event is one emission from the transcriber. Interim events (Final=false)
// replace the previous interim text; final events append to the transcript.
type Event struct {
	Text  string
	Final bool
	Err   error
}

// Transcriber runs the actual speech recognition. Start returns the event
// stream; the channel closes when recognition ends. Stop must be safe to
// call regardless of state.
type Transcriber interface {
	Start(ctx context.Context) (<-chan Event, error)
	Stop()
}

// Bridge mediates between a transcriber and the console input field.
type Bridge struct {
	mu          sync.Mutex
	transcriber Transcriber
	state       State
	interim     string
	transcript  []string
	lastErr     error
	gen         int
	cancel      context.CancelFunc
	notify      func()
}

// NewBridge creates a bridge over the given transcriber. notify is invoked
// (outside the lock) whenever interim or finalized text changes; pass nil
// when polling.
func NewBridge(t Transcriber, notify func()) *Bridge {
	return &Bridge{transcriber: t, notify: notify}
}

// Toggle flips between idle and listening. Starting a new recording clears
// the previous transcript and interim text; a start failure leaves the
// bridge idle.
func (b *Bridge) Toggle(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateListening {
		b.stopLocked()
		b.mu.Unlock()
		b.fireNotify()
		return nil
	}

	b.interim = ""
	b.transcript = nil
	b.lastErr = nil
	runCtx, cancel := context.WithCancel(ctx)
	events, err := b.transcriber.Start(runCtx)
	if err != nil {
		cancel()
		b.mu.Unlock()
		logging.Speech("start failed: %v", err)
		return err
	}
	b.state = StateListening
	b.cancel = cancel
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	logging.Speech("listening")
	go b.consume(events, gen)
	b.fireNotify()
	return nil
}

// State returns the current recording state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Interim returns the in-flight transcript fragment. Display-only; it never
// enters the input buffer until finalized.
func (b *Bridge) Interim() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interim
}

// Transcript returns the finalized text accumulated so far.
func (b *Bridge) Transcript() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.transcript, " ")
}

// Consume returns the finalized transcript and clears it. The console calls
// this to move recognized text into the input field.
func (b *Bridge) Consume() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := strings.Join(b.transcript, " ")
	b.transcript = nil
	b.interim = ""
	return text
}

// Err returns the error that ended the last capture, if any. Cleared when a
// new recording starts or the error is dismissed via ClearErr.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// ClearErr dismisses the last capture error.
func (b *Bridge) ClearErr() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastErr = nil
}

// Stop forces the bridge back to idle. Safe to call when already idle.
func (b *Bridge) Stop() {
	b.mu.Lock()
	b.stopLocked()
	b.mu.Unlock()
	b.fireNotify()
}

func (b *Bridge) stopLocked() {
	if b.state != StateListening {
		return
	}
	b.state = StateIdle
	b.interim = ""
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.transcriber.Stop()
	logging.Speech("stopped")
}

func (b *Bridge) consume(events <-chan Event, gen int) {
	for ev := range events {
		b.mu.Lock()
		if b.state != StateListening || b.gen != gen {
			// Late event after stop, or from a superseded stream; discard.
			b.mu.Unlock()
			continue
		}
		switch {
		case ev.Err != nil:
			logging.Speech("recognition error: %v", ev.Err)
			b.lastErr = ev.Err
			b.stopLocked()
		case ev.Final:
			if ev.Text != "" {
				b.transcript = append(b.transcript, ev.Text)
			}
			b.interim = ""
		default:
			b.interim = ev.Text
		}
		b.mu.Unlock()
		b.fireNotify()
	}

	// Stream ended on its own; settle back to idle unless a newer
	// recording already took over.
	b.mu.Lock()
	if b.gen == gen {
		b.stopLocked()
	}
	b.mu.Unlock()
	b.fireNotify()
}

func (b *Bridge) fireNotify() {
	if b.notify != nil {
		b.notify()
	}
}
