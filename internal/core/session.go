package core

import (
	"context"
	"strings"
	"sync"

	"crawldesk/internal/logging"
)

// Session is the explicit Smart Query session value object. Components
// receive snapshots of it and the engine publishes new states; nothing
// outside the engine mutates it. The single Phase field replaces per-concern
// loading flags.
type Session struct {
	Mode    Mode
	Phase   Phase
	Text    string
	Preview *PreviewEnvelope
	Read    *ReadResult
	Commit  *CommitResult
	Err     error
}

// Backend is the slice of the analysis REST API the session engine needs.
// The preview call is non-mutating by contract; only SmartWriteCommit may
// change server state.
type Backend interface {
	SmartQuery(ctx context.Context, question string) (*ReadResult, error)
	SmartWritePreview(ctx context.Context, question string) (*PreviewEnvelope, error)
	SmartWriteCommit(ctx context.Context, question string) (*CommitResult, error)
	AnalyzeMultimodal(ctx context.Context, question string, attachmentIDs []string) (*ReadResult, error)
}

// Planner receives plan-mode submissions instead of a direct backend call.
type Planner interface {
	Send(ctx context.Context, message string) error
}

// AttachmentSource exposes the pending attachment list to the engine.
// Implemented by the attachment manager.
type AttachmentSource interface {
	List() []Attachment
	UploadsPending() bool
	// ConsumeAll detaches all pending attachments after a successful
	// submission that used them.
	ConsumeAll()
}

// Engine drives the session state machine: mode switching, the mutually
// exclusive submit dispatch, and the two-phase preview→confirm protocol.
// All methods are safe for use from bubbletea command goroutines.
type Engine struct {
	mu          sync.Mutex
	backend     Backend
	planner     Planner
	attachments AttachmentSource
	tracker     *ProgressTracker

	s               Session
	pendingQuestion string // original text of the previewed write, reused verbatim on commit
	confirmInFlight bool   // single-flight guard; button disabling is cosmetic, this is the mechanism
}

// Option configures an Engine.
type Option func(*Engine)

// WithPlanner wires the plan-mode conversation engine.
func WithPlanner(p Planner) Option {
	return func(e *Engine) { e.planner = p }
}

// WithAttachments wires the pending-attachment source.
func WithAttachments(a AttachmentSource) Option {
	return func(e *Engine) { e.attachments = a }
}

// WithProgressTracker wires the generation progress tracker driven during
// generative commits.
func WithProgressTracker(t *ProgressTracker) Option {
	return func(e *Engine) { e.tracker = t }
}

// NewEngine creates a session engine in read mode, idle phase.
func NewEngine(backend Backend, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		s:       Session{Mode: ModeRead, Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Session returns a snapshot of the current session state. Pointer fields
// reference immutable values and must not be modified by callers.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s
}

// SetText updates the pending query text. Allowed in any phase; during
// previewing the console renders the input read-only, but a stale buffer
// write must not corrupt the protocol because the commit reuses the text
// captured at preview time.
func (e *Engine) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.Text = text
}

// ClearError dismisses the session error slot.
func (e *Engine) ClearError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.Err = nil
}

// SetMode switches the interaction mode. An unknown mode is rejected with
// ErrInvalidMode; switching fails with ErrModeLocked while a preview
// envelope is outstanding or a commit is in flight. Switching clears
// results belonging to the previous mode so a stale write summary is never
// rendered in read mode.
func (e *Engine) SetMode(m Mode) error {
	if !m.Valid() {
		return ErrInvalidMode
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.s.Preview != nil || e.s.Phase == PhaseCommitting {
		return ErrModeLocked
	}
	if e.s.Mode == m {
		return nil
	}

	logging.Session("mode switch %s -> %s", e.s.Mode, m)
	e.s.Mode = m
	e.s.Read = nil
	e.s.Commit = nil
	e.s.Err = nil
	return nil
}

// Submit runs the dispatch rule for the pending query. It is mutually
// exclusive: rejected while a prior submission, preview, or commit is in
// flight. Dispatch order:
//
//  1. attachments present → multimodal analysis, regardless of mode
//  2. plan mode → delegate to the plan conversation engine
//  3. write mode → dry-run preview, handed to the preview gate
//  4. read mode → direct query
//
// Errors land in the session error slot and leave mode and query text
// untouched so the user can retry without retyping.
func (e *Engine) Submit(ctx context.Context) error {
	e.mu.Lock()

	switch e.s.Phase {
	case PhasePreviewing:
		e.mu.Unlock()
		return ErrPreviewOutstanding
	case PhaseSubmitting, PhaseCommitting:
		e.mu.Unlock()
		return ErrBusy
	}

	text := strings.TrimSpace(e.s.Text)
	var atts []Attachment
	if e.attachments != nil {
		if e.attachments.UploadsPending() {
			e.mu.Unlock()
			return ErrUploadsPending
		}
		atts = e.attachments.List()
	}

	if text == "" && len(atts) == 0 {
		e.mu.Unlock()
		return ErrEmptyQuery
	}

	mode := e.s.Mode

	// Plan mode never blocks the session phase: the conversation engine has
	// its own streaming lifecycle and the turns are observable mid-stream.
	if len(atts) == 0 && mode == ModePlan {
		e.mu.Unlock()
		if e.planner == nil {
			return ErrBusy
		}
		if err := e.planner.Send(ctx, text); err != nil {
			e.setError(err)
			return err
		}
		e.mu.Lock()
		e.s.Text = ""
		e.mu.Unlock()
		return nil
	}

	e.s.Phase = PhaseSubmitting
	e.mu.Unlock()

	switch {
	case len(atts) > 0:
		return e.submitMultimodal(ctx, text, atts)
	case mode == ModeWrite:
		return e.submitPreview(ctx, text)
	default:
		return e.submitRead(ctx, text)
	}
}

func (e *Engine) submitRead(ctx context.Context, text string) error {
	timer := logging.StartTimer(logging.CategorySession, "read query")
	res, err := e.backend.SmartQuery(ctx, text)
	timer.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.s.Phase = PhaseIdle
		e.s.Err = err
		return err
	}
	e.s.Phase = PhaseIdle
	e.s.Read = res
	e.s.Commit = nil
	e.s.Err = nil
	e.s.Text = ""
	return nil
}

func (e *Engine) submitMultimodal(ctx context.Context, text string, atts []Attachment) error {
	ids := make([]string, len(atts))
	for i, a := range atts {
		ids[i] = a.ID
	}

	res, err := e.backend.AnalyzeMultimodal(ctx, text, ids)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.s.Phase = PhaseIdle
		e.s.Err = err
		return err
	}
	e.s.Phase = PhaseIdle
	e.s.Read = res
	e.s.Commit = nil
	e.s.Err = nil
	e.s.Text = ""
	if e.attachments != nil {
		e.attachments.ConsumeAll()
	}
	return nil
}

func (e *Engine) submitPreview(ctx context.Context, text string) error {
	env, err := e.backend.SmartWritePreview(ctx, text)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		// Failed preview rolls back to idle, not a broken previewing state.
		e.s.Phase = PhaseIdle
		e.s.Err = err
		return err
	}
	logging.Session("preview ready: %s", env.OperationLabel)
	e.s.Phase = PhasePreviewing
	e.s.Preview = env
	e.s.Err = nil
	e.pendingQuestion = text
	return nil
}

// Confirm commits the outstanding preview. Guarded by a single in-flight
// flag so confirming twice in rapid succession issues exactly one commit
// call. On transport failure the session returns to previewing with the
// envelope intact; a CommitResult with Success=false is a normal outcome.
func (e *Engine) Confirm(ctx context.Context) error {
	e.mu.Lock()
	if e.s.Phase != PhasePreviewing || e.s.Preview == nil {
		e.mu.Unlock()
		return ErrNoPreview
	}
	if e.confirmInFlight {
		e.mu.Unlock()
		return ErrBusy
	}
	e.confirmInFlight = true
	e.s.Phase = PhaseCommitting
	question := e.pendingQuestion
	operation := e.s.Preview.OperationLabel
	e.mu.Unlock()

	generative := e.tracker != nil && IsGenerativeOperation(operation)
	if generative {
		e.tracker.Begin(operation)
	}

	res, err := e.backend.SmartWriteCommit(ctx, question)

	if generative {
		// Torn down on every exit path, success and failure alike.
		e.tracker.Finish(err == nil && res != nil && res.Success)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirmInFlight = false

	if err != nil {
		// Envelope stays intact so the user can cancel or retry without
		// regenerating the preview.
		e.s.Phase = PhasePreviewing
		e.s.Err = err
		return err
	}

	logging.Session("commit settled: %s success=%v", operation, res.Success)
	e.s.Phase = PhaseIdle
	e.s.Commit = res
	e.s.Read = nil
	e.s.Preview = nil
	e.s.Err = nil
	e.s.Text = ""
	e.pendingQuestion = ""
	return nil
}

// CancelPreview discards the outstanding envelope with zero server-visible
// side effects and returns the session to idle.
func (e *Engine) CancelPreview() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.s.Phase != PhasePreviewing || e.s.Preview == nil {
		return ErrNoPreview
	}
	if e.confirmInFlight {
		return ErrBusy
	}

	logging.Session("preview cancelled: %s", e.s.Preview.OperationLabel)
	e.s.Preview = nil
	e.s.Phase = PhaseIdle
	e.pendingQuestion = ""
	return nil
}

// Reset clears the transient session state: text, results, error. Refused
// while a preview or commit is outstanding. Attachment release is the
// caller's responsibility (it is best-effort and must not block).
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.s.Phase != PhaseIdle {
		return ErrBusy
	}

	e.s.Text = ""
	e.s.Read = nil
	e.s.Commit = nil
	e.s.Err = nil
	e.pendingQuestion = ""
	return nil
}

func (e *Engine) setError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.Err = err
}
