// Package console implements the interactive Smart Query TUI: mode
// switching, attachment handling, the preview→confirm gate for writes, plan
// mode streaming, and result rendering.
package console

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"crawldesk/cmd/crawldesk/ui"
	"crawldesk/internal/api"
	"crawldesk/internal/attach"
	"crawldesk/internal/core"
	"crawldesk/internal/history"
	"crawldesk/internal/jobs"
	"crawldesk/internal/plan"
	"crawldesk/internal/speech"
)

// viewMode determines which surface the console shows.
type viewMode int

const (
	queryView viewMode = iota
	historyView
)

// refreshInterval drives the periodic repaint that surfaces streamed plan
// deltas, progress steps, speech interims, and the crawl banner.
const refreshInterval = 200 * time.Millisecond

// Deps bundles everything the console model needs.
type Deps struct {
	Engine      *core.Engine
	Attachments *attach.Manager
	Voice       *speech.Bridge
	Plans       *plan.Engine
	Tracker     *core.ProgressTracker
	Poller      *jobs.Poller
	Client      *api.Client
	Store       *history.Store
	Styles      ui.Styles
}

// Model is the bubbletea model for the Smart Query console.
type Model struct {
	ctx context.Context

	engine      *core.Engine
	attachments *attach.Manager
	voice       *speech.Bridge
	plans       *plan.Engine
	tracker     *core.ProgressTracker
	poller      *jobs.Poller
	client      *api.Client
	store       *history.Store

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   ui.Styles
	renderer *glamour.TermRenderer

	mode        viewMode
	histEntries []core.HistoryEntry
	histCursor  int

	examples []core.ExamplePrompt

	// Submitted queries for up/down recall, newest last.
	inputHistory []string
	inputIndex   int
	inputDraft   string

	width  int
	height int
	ready  bool
	status string
}

// NewModel builds the console model.
func NewModel(ctx context.Context, deps Deps) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about the extracted data..."
	ta.Prompt = "┃ "
	ta.CharLimit = 4000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = deps.Styles.Spinner

	glamourStyle := "light"
	if deps.Styles.Theme.IsDark {
		glamourStyle = "dark"
	}
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle(glamourStyle),
		glamour.WithWordWrap(100),
	)

	return Model{
		ctx:         ctx,
		engine:      deps.Engine,
		attachments: deps.Attachments,
		voice:       deps.Voice,
		plans:       deps.Plans,
		tracker:     deps.Tracker,
		poller:      deps.Poller,
		client:      deps.Client,
		store:       deps.Store,
		textarea:    ta,
		spinner:     sp,
		styles:      deps.Styles,
		renderer:    renderer,
	}
}

// Init starts the background polling and loads the suggestion cards.
func (m Model) Init() tea.Cmd {
	if m.poller != nil {
		m.poller.Start(m.ctx)
	}
	return tea.Batch(
		m.spinner.Tick,
		m.loadExamplesCmd(),
		refreshTick(),
		textarea.Blink,
	)
}

// =============================================================================
// MESSAGES
// =============================================================================

type refreshMsg time.Time

type examplesMsg struct {
	examples []core.ExamplePrompt
}

type submitDoneMsg struct {
	err error
}

type confirmDoneMsg struct {
	err error
}

type historyLoadedMsg struct {
	entries []core.HistoryEntry
	err     error
}

type attachmentsDoneMsg struct {
	results []attach.UploadResult
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) loadExamplesCmd() tea.Cmd {
	client := m.client
	ctx := m.ctx
	return func() tea.Msg {
		if client == nil {
			return examplesMsg{}
		}
		examples, err := client.ExamplePrompts(ctx)
		if err != nil {
			return examplesMsg{}
		}
		return examplesMsg{examples: examples}
	}
}

func (m Model) submitCmd() tea.Cmd {
	engine := m.engine
	ctx := m.ctx
	return func() tea.Msg {
		return submitDoneMsg{err: engine.Submit(ctx)}
	}
}

// confirmCmd commits the outstanding preview and, on success, records the
// command in the write history.
func (m Model) confirmCmd() tea.Cmd {
	engine := m.engine
	store := m.store
	ctx := m.ctx

	s := engine.Session()
	question := s.Text
	interpretation := ""
	if s.Preview != nil {
		interpretation = s.Preview.Description
	}

	return func() tea.Msg {
		err := engine.Confirm(ctx)
		if err == nil && store != nil {
			if _, herr := store.Append(ctx, question, interpretation); herr != nil {
				// History is a convenience; the commit already settled.
				_ = herr
			}
		}
		return confirmDoneMsg{err: err}
	}
}

func (m Model) loadHistoryCmd() tea.Cmd {
	store := m.store
	ctx := m.ctx
	return func() tea.Msg {
		if store == nil {
			return historyLoadedMsg{}
		}
		entries, err := store.List(ctx, false, 20)
		return historyLoadedMsg{entries: entries, err: err}
	}
}

func (m Model) rerunCmd(entry core.HistoryEntry) tea.Cmd {
	engine := m.engine
	ctx := m.ctx
	return func() tea.Msg {
		return submitDoneMsg{err: history.Rerun(ctx, engine, entry)}
	}
}

func (m Model) uploadCmd(files []attach.File) tea.Cmd {
	mgr := m.attachments
	ctx := m.ctx
	return func() tea.Msg {
		return attachmentsDoneMsg{results: mgr.UploadBatch(ctx, files)}
	}
}
