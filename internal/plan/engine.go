// Package plan runs the plan-mode dialogue: a multi-turn conversation with
// the backend that helps the user draft a query or write command. The
// conversation log is append-only; assistant responses stream in and are
// observable mid-stream.
package plan

import (
	"context"
	"sync"
	"time"

	"crawldesk/internal/core"
	"crawldesk/internal/logging"
)

// Streamer opens a streaming completion over the conversation so far.
// Implemented by the API client's plan stream.
type Streamer interface {
	PlanStream(ctx context.Context, turns []core.PlanTurn) (<-chan core.PlanChunk, error)
}

// Engine owns one plan-mode conversation. It satisfies the session engine's
// Planner interface, so plan submissions route here instead of the unary
// backend calls.
type Engine struct {
	mu        sync.Mutex
	streamer  Streamer
	turns     []core.PlanTurn
	streaming bool
	prompt    string // generated prompt from the last completed exchange
	lastErr   error
	cancel    context.CancelFunc
	notify    func()
}

// NewEngine creates a plan conversation engine. notify is invoked (outside
// the lock) whenever the visible conversation changes; pass nil when polling.
func NewEngine(streamer Streamer, notify func()) *Engine {
	return &Engine{streamer: streamer, notify: notify}
}

// Send appends the user's message and starts streaming the assistant's
// reply. Only one stream runs at a time.
func (e *Engine) Send(ctx context.Context, message string) error {
	e.mu.Lock()
	if e.streaming {
		e.mu.Unlock()
		return core.ErrBusy
	}

	e.turns = append(e.turns, core.PlanTurn{
		Role:      core.PlanRoleUser,
		Text:      message,
		Timestamp: time.Now(),
	})
	history := make([]core.PlanTurn, len(e.turns))
	copy(history, e.turns)

	runCtx, cancel := context.WithCancel(ctx)
	chunks, err := e.streamer.PlanStream(runCtx, history)
	if err != nil {
		cancel()
		e.lastErr = err
		e.mu.Unlock()
		e.fireNotify()
		return err
	}

	// The assistant turn exists from the first moment so the console can
	// render it growing as deltas arrive.
	e.turns = append(e.turns, core.PlanTurn{
		Role:      core.PlanRoleAssistant,
		Timestamp: time.Now(),
	})
	e.streaming = true
	e.lastErr = nil
	e.cancel = cancel
	e.mu.Unlock()

	logging.Plan("stream started, %d turns of context", len(history))
	go e.consume(chunks)
	e.fireNotify()
	return nil
}

// Turns returns a snapshot of the conversation, including the partially
// streamed assistant turn.
func (e *Engine) Turns() []core.PlanTurn {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.PlanTurn, len(e.turns))
	copy(out, e.turns)
	return out
}

// Streaming reports whether an assistant reply is currently arriving.
func (e *Engine) Streaming() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streaming
}

// GeneratedPrompt returns the prompt the dialogue has converged on, if any.
func (e *Engine) GeneratedPrompt() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prompt
}

// Err returns the last stream error, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Adopt hands the generated prompt to the caller and resets the
// conversation. Returns false when no prompt is available or a stream is
// still running.
func (e *Engine) Adopt() (string, bool) {
	e.mu.Lock()
	if e.streaming || e.prompt == "" {
		e.mu.Unlock()
		return "", false
	}
	prompt := e.prompt
	e.resetLocked()
	e.mu.Unlock()

	logging.Plan("prompt adopted")
	e.fireNotify()
	return prompt, true
}

// Reset discards the conversation, cancelling any in-flight stream.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.resetLocked()
	e.mu.Unlock()
	e.fireNotify()
}

func (e *Engine) resetLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.turns = nil
	e.streaming = false
	e.prompt = ""
	e.lastErr = nil
}

func (e *Engine) consume(chunks <-chan core.PlanChunk) {
	for chunk := range chunks {
		e.mu.Lock()
		if !e.streaming {
			// Reset raced the stream; drop the remainder.
			e.mu.Unlock()
			continue
		}
		switch {
		case chunk.Err != nil:
			logging.Plan("stream failed: %v", chunk.Err)
			e.lastErr = chunk.Err
			e.finishLocked()
		case chunk.Done:
			if chunk.GeneratedPrompt != "" {
				e.prompt = chunk.GeneratedPrompt
			}
			e.finishLocked()
			logging.PlanDebug("stream done, prompt=%v", e.prompt != "")
		default:
			last := len(e.turns) - 1
			if last >= 0 && e.turns[last].Role == core.PlanRoleAssistant {
				e.turns[last].Text += chunk.Delta
			}
		}
		e.mu.Unlock()
		e.fireNotify()
	}

	e.mu.Lock()
	if e.streaming {
		// Channel closed without a done chunk; treat as a finished reply.
		e.finishLocked()
	}
	e.mu.Unlock()
	e.fireNotify()
}

func (e *Engine) finishLocked() {
	e.streaming = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) fireNotify() {
	if e.notify != nil {
		e.notify()
	}
}
