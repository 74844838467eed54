package speech

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"crawldesk/internal/logging"
)

// ExecTranscriber runs an external recognizer process and reads its stdout
// as newline-delimited JSON: {"text": "...", "final": true|false}. Any local
// speech engine with that output contract plugs in via config.
type ExecTranscriber struct {
	Command string
	Args    []string

	mu     sync.Mutex
	cancel context.CancelFunc
}

type execLine struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// Start launches the recognizer and streams its output. The returned channel
// closes when the process exits or the context is cancelled.
func (t *ExecTranscriber) Start(ctx context.Context) (<-chan Event, error) {
	if t.Command == "" {
		return nil, fmt.Errorf("no speech command configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, t.Command, t.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open recognizer output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start recognizer %s: %w", t.Command, err)
	}

	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer cancel()

		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			var line execLine
			if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
				logging.Speech("skipping malformed recognizer line: %v", err)
				continue
			}
			select {
			case events <- Event{Text: line.Text, Final: line.Final}:
			case <-runCtx.Done():
				_ = cmd.Wait()
				return
			}
		}
		if err := scanner.Err(); err != nil && runCtx.Err() == nil {
			events <- Event{Err: err}
		}
		if err := cmd.Wait(); err != nil && runCtx.Err() == nil {
			logging.Speech("recognizer exited: %v", err)
		}
	}()

	return events, nil
}

// Stop terminates the recognizer process if one is running.
func (t *ExecTranscriber) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
