package console

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"crawldesk/internal/attach"
	"crawldesk/internal/core"
	"crawldesk/internal/speech"
)

// readAttachmentFiles loads files named in an /attach command. Content types
// come from the extension; validation proper happens in the manager.
func readAttachmentFiles(paths []string) ([]attach.File, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("usage: /attach <path>...")
	}
	var files []attach.File
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", p, err)
		}
		contentType := mime.TypeByExtension(filepath.Ext(p))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		files = append(files, attach.File{
			Name:        filepath.Base(p),
			ContentType: contentType,
			Data:        data,
		})
	}
	return files, nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		taCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.refreshViewport()
		return m, nil

	case refreshMsg:
		// Finalized speech overwrites the input buffer; interim text never
		// touches it.
		if m.voice != nil {
			if m.voice.State() == speech.StateListening {
				if transcript := m.voice.Transcript(); transcript != "" {
					m.textarea.SetValue(transcript)
					m.engine.SetText(transcript)
				}
			} else if transcript := m.voice.Consume(); transcript != "" {
				m.textarea.SetValue(transcript)
				m.engine.SetText(transcript)
			}
		}
		m.refreshViewport()
		return m, refreshTick()

	case spinner.TickMsg:
		m.spinner, spCmd = m.spinner.Update(msg)
		return m, spCmd

	case examplesMsg:
		m.examples = msg.examples
		m.refreshViewport()
		return m, nil

	case submitDoneMsg:
		if msg.err == nil {
			m.textarea.SetValue(m.engine.Session().Text)
		}
		m.mode = queryView
		m.refreshViewport()
		return m, nil

	case confirmDoneMsg:
		if msg.err == nil {
			m.textarea.Reset()
			// A commit may have started crawl jobs; wake the poller.
			if m.poller != nil {
				m.poller.Nudge()
			}
		}
		m.refreshViewport()
		return m, nil

	case attachmentsDoneMsg:
		failed := 0
		for _, r := range msg.results {
			if r.Err != nil {
				failed++
			}
		}
		if failed > 0 {
			m.status = m.styles.Warning.Render("some attachments failed to upload")
		} else {
			m.status = ""
		}
		m.refreshViewport()
		return m, nil

	case historyLoadedMsg:
		if msg.err == nil {
			m.histEntries = msg.entries
			m.histCursor = 0
			m.mode = historyView
		}
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(taCmd, vpCmd)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	session := m.engine.Session()

	// Global keys
	switch msg.Type {
	case tea.KeyCtrlC:
		m.shutdown()
		return m, tea.Quit
	case tea.KeyEsc:
		switch {
		case m.mode == historyView:
			m.mode = queryView
			m.refreshViewport()
			return m, nil
		case session.Phase == core.PhasePreviewing:
			_ = m.engine.CancelPreview()
			m.refreshViewport()
			return m, nil
		default:
			m.shutdown()
			return m, tea.Quit
		}
	}

	if m.mode == historyView {
		return m.handleHistoryKey(msg)
	}

	// The preview gate owns the keyboard while an envelope is outstanding.
	if session.Phase == core.PhasePreviewing {
		switch msg.String() {
		case "y", "Y", "enter":
			return m, m.confirmCmd()
		case "n", "N":
			_ = m.engine.CancelPreview()
			m.refreshViewport()
			return m, nil
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+t":
		m.cycleMode()
		m.refreshViewport()
		return m, nil

	case "ctrl+v":
		if m.voice != nil {
			starting := m.voice.State() == speech.StateIdle
			if err := m.voice.Toggle(m.ctx); err != nil {
				m.status = m.styles.Error.Render("speech: " + err.Error())
			} else if starting {
				// A new recording replaces the buffer, never appends to
				// stale text.
				m.textarea.Reset()
				m.engine.SetText("")
			}
		}
		m.refreshViewport()
		return m, nil

	case "ctrl+r":
		if err := m.engine.Reset(); err == nil {
			m.textarea.Reset()
			if m.plans != nil {
				m.plans.Reset()
			}
			if m.attachments != nil {
				m.attachments.ReleaseAll(m.ctx)
			}
			m.status = ""
		}
		m.refreshViewport()
		return m, nil

	case "ctrl+h":
		return m, m.loadHistoryCmd()

	case "ctrl+a":
		// Adopt the plan-generated prompt into the input.
		if m.plans != nil {
			if prompt, ok := m.plans.Adopt(); ok {
				m.textarea.SetValue(prompt)
				m.engine.SetText(prompt)
			}
		}
		m.refreshViewport()
		return m, nil

	case "ctrl+d":
		// Detach the most recent attachment.
		if m.attachments != nil {
			if atts := m.attachments.List(); len(atts) > 0 {
				m.attachments.Remove(m.ctx, atts[len(atts)-1].ID)
			}
		}
		m.refreshViewport()
		return m, nil

	case "up":
		if !strings.Contains(m.textarea.Value(), "\n") && len(m.inputHistory) > 0 {
			m.recallInput(-1)
			return m, nil
		}

	case "down":
		if !strings.Contains(m.textarea.Value(), "\n") && len(m.inputHistory) > 0 {
			m.recallInput(1)
			return m, nil
		}
	}

	if msg.Type == tea.KeyEnter && !msg.Alt {
		return m.submit()
	}

	var taCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.engine.SetText(m.textarea.Value())
	return m, taCmd
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.histCursor > 0 {
			m.histCursor--
		}
	case "down", "j":
		if m.histCursor < len(m.histEntries)-1 {
			m.histCursor++
		}
	case "f":
		if m.store != nil && m.histCursor < len(m.histEntries) {
			entry := &m.histEntries[m.histCursor]
			if fav, err := m.store.ToggleFavorite(m.ctx, entry.ID); err == nil {
				entry.Favorite = fav
			}
		}
	case "enter":
		if m.histCursor < len(m.histEntries) {
			entry := m.histEntries[m.histCursor]
			m.mode = queryView
			m.textarea.SetValue(entry.CommandText)
			m.refreshViewport()
			return m, m.rerunCmd(entry)
		}
	}
	m.refreshViewport()
	return m, nil
}

// submit runs the dispatch for the pending input. An "/attach <path>..."
// line uploads files instead of querying.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.textarea.Value())

	if rest, ok := strings.CutPrefix(text, "/attach "); ok {
		files, err := readAttachmentFiles(strings.Fields(rest))
		if err != nil {
			m.status = m.styles.Error.Render(err.Error())
			m.refreshViewport()
			return m, nil
		}
		m.textarea.Reset()
		m.engine.SetText("")
		m.status = m.styles.Muted.Render(fmt.Sprintf("uploading %d file(s)...", len(files)))
		return m, m.uploadCmd(files)
	}

	m.engine.SetText(text)

	if text != "" {
		m.inputHistory = append(m.inputHistory, text)
	}
	m.inputIndex = len(m.inputHistory)
	m.inputDraft = ""
	m.status = ""
	if m.voice != nil {
		m.voice.ClearErr()
	}

	m.refreshViewport()
	return m, m.submitCmd()
}

// recallInput walks the submitted-query history. The live draft is stashed
// so walking past the newest entry restores it.
func (m *Model) recallInput(direction int) {
	if m.inputIndex == len(m.inputHistory) && direction < 0 {
		m.inputDraft = m.textarea.Value()
	}
	m.inputIndex += direction
	if m.inputIndex < 0 {
		m.inputIndex = 0
	}
	if m.inputIndex >= len(m.inputHistory) {
		m.inputIndex = len(m.inputHistory)
		m.textarea.SetValue(m.inputDraft)
	} else {
		m.textarea.SetValue(m.inputHistory[m.inputIndex])
	}
	m.engine.SetText(m.textarea.Value())
}

func (m *Model) cycleMode() {
	var next core.Mode
	switch m.engine.Session().Mode {
	case core.ModeRead:
		next = core.ModeWrite
	case core.ModeWrite:
		next = core.ModePlan
	default:
		next = core.ModeRead
	}
	if err := m.engine.SetMode(next); err != nil {
		m.status = m.styles.Warning.Render("mode locked while a preview is pending")
	} else {
		m.status = ""
	}
}

func (m *Model) layout() {
	headerHeight := 2
	footerHeight := 2
	inputHeight := m.textarea.Height() + 1

	vpHeight := m.height - headerHeight - footerHeight - inputHeight
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.viewport = newViewport(m.width, vpHeight)
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(m.width - 4)
}

func (m *Model) shutdown() {
	if m.voice != nil {
		m.voice.Stop()
	}
	if m.poller != nil {
		m.poller.Stop()
	}
	if m.attachments != nil {
		m.attachments.ReleaseAll(m.ctx)
	}
}
