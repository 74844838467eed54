package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"crawldesk/cmd/crawldesk/ui"
	"crawldesk/internal/core"
	"crawldesk/internal/render"
	"crawldesk/internal/speech"
)

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	return vp
}

func (m Model) View() string {
	if !m.ready {
		return "starting..."
	}

	var sb strings.Builder
	sb.WriteString(m.headerView())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.inputView())
	sb.WriteString("\n")
	sb.WriteString(m.footerView())
	return sb.String()
}

// =============================================================================
// CHROME
// =============================================================================

func (m Model) headerView() string {
	session := m.engine.Session()

	title := m.styles.Header.Render("crawldesk")

	var badges []string
	for _, mode := range []core.Mode{core.ModeRead, core.ModeWrite, core.ModePlan} {
		label := strings.ToUpper(string(mode))
		if mode == session.Mode {
			badges = append(badges, m.styles.ModeActive.Render(label))
		} else {
			badges = append(badges, m.styles.ModeInactive.Render(label))
		}
	}

	banner := ""
	if m.poller != nil {
		if count := m.poller.Count(); count > 0 {
			banner = m.styles.Info.Render(fmt.Sprintf("  ⟳ %d crawl(s) running", count))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", strings.Join(badges, " "), banner)
}

func (m Model) inputView() string {
	session := m.engine.Session()

	if session.Phase == core.PhasePreviewing {
		return m.styles.Warning.Render("  confirm write? [y]es / [n]o")
	}
	if session.Phase == core.PhaseSubmitting || session.Phase == core.PhaseCommitting {
		return "  " + m.spinner.View() + m.styles.Muted.Render(" working...")
	}

	var extras []string
	if m.voice != nil && m.voice.State() == speech.StateListening {
		line := m.styles.Error.Render("● rec")
		if interim := m.voice.Interim(); interim != "" {
			line += m.styles.Subtitle.Render(" " + interim)
		}
		extras = append(extras, "  "+line)
	}
	if m.attachments != nil {
		if atts := m.attachments.List(); len(atts) > 0 {
			names := make([]string, len(atts))
			for i, a := range atts {
				names[i] = a.Filename
			}
			extras = append(extras, "  "+m.styles.Badge.Render(fmt.Sprintf("📎 %d", len(atts)))+
				m.styles.Muted.Render(" "+strings.Join(names, ", ")))
		}
	}

	out := m.textarea.View()
	if len(extras) > 0 {
		out = strings.Join(extras, "\n") + "\n" + out
	}
	return out
}

func (m Model) footerView() string {
	keys := "enter submit · ctrl+t mode · ctrl+v voice · ctrl+h history · ctrl+r reset · esc quit"
	if m.mode == historyView {
		keys = "↑/↓ select · enter rerun · f favorite · esc back"
	}
	footer := m.styles.Footer.Render(keys)
	if m.status != "" {
		footer += "  " + m.status
	}
	return footer
}

// =============================================================================
// CONTENT
// =============================================================================

// refreshViewport rebuilds the scrollable content for the current state.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	var content string
	session := m.engine.Session()

	switch {
	case m.mode == historyView:
		content = m.historyContent()
	case session.Mode == core.ModePlan:
		content = m.planContent()
	case session.Phase == core.PhasePreviewing && session.Preview != nil:
		content = m.previewContent(*session.Preview)
	case session.Phase == core.PhaseCommitting && m.tracker != nil && m.tracker.Active():
		content = ui.RenderSteps(m.tracker.Snapshot(), m.spinner.View(), m.styles)
	default:
		content = m.resultContent(session)
	}

	if session.Err != nil {
		content += "\n" + m.styles.Error.Render("✗ "+session.Err.Error())
	}
	if m.voice != nil {
		if verr := m.voice.Err(); verr != nil {
			content += "\n" + m.styles.Error.Render("✗ speech: "+verr.Error())
		}
	}

	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m Model) previewContent(env core.PreviewEnvelope) string {
	var sb strings.Builder
	sb.WriteString(m.styles.PreviewTitle.Render("⚠ Pending write: " + env.OperationLabel))
	sb.WriteString("\n\n")
	if env.Description != "" {
		sb.WriteString(m.styles.Body.Render(env.Description))
		sb.WriteString("\n")
	}
	for _, d := range env.Details {
		sb.WriteString(m.styles.PreviewDetail.Render("• " + d))
		sb.WriteString("\n")
	}
	return m.styles.PreviewBox.Render(sb.String())
}

func (m Model) planContent() string {
	if m.plans == nil {
		return m.styles.Muted.Render("plan mode is not available")
	}

	turns := m.plans.Turns()
	if len(turns) == 0 {
		return m.styles.Muted.Render("Start a conversation to draft your query step by step.")
	}

	var sb strings.Builder
	for _, turn := range turns {
		if turn.Role == core.PlanRoleUser {
			sb.WriteString(m.styles.UserTurn.Render("you ▸ " + turn.Text))
			sb.WriteString("\n\n")
			continue
		}
		text := turn.Text
		if m.renderer != nil && text != "" {
			if rendered, err := m.renderer.Render(text); err == nil {
				text = strings.TrimSpace(rendered)
			}
		}
		sb.WriteString(m.styles.AssistantTurn.Render(text))
		sb.WriteString("\n\n")
	}

	if m.plans.Streaming() {
		sb.WriteString(m.spinner.View())
	} else if m.plans.GeneratedPrompt() != "" {
		sb.WriteString(m.styles.Success.Render("prompt ready · ctrl+a to adopt"))
	}
	if err := m.plans.Err(); err != nil {
		sb.WriteString("\n" + m.styles.Error.Render("✗ "+err.Error()))
	}
	return sb.String()
}

func (m Model) historyContent() string {
	if len(m.histEntries) == 0 {
		return m.styles.Muted.Render("No write commands recorded yet.")
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Write history"))
	sb.WriteString("\n")
	for i, e := range m.histEntries {
		cursor := "  "
		if i == m.histCursor {
			cursor = m.styles.Bold.Render("▸ ")
		}
		star := " "
		if e.Favorite {
			star = "★"
		}
		line := fmt.Sprintf("%s%s %s  %s", cursor, star,
			e.Timestamp.Local().Format("2006-01-02 15:04"), e.CommandText)
		if i == m.histCursor {
			sb.WriteString(m.styles.Bold.Render(line))
		} else {
			sb.WriteString(m.styles.Body.Render(line))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) resultContent(session core.Session) string {
	switch plan := render.Dispatch(session).(type) {
	case render.CommitSummary:
		return m.commitContent(plan.Result)

	case render.CompoundPanels:
		var sb strings.Builder
		if plan.Interpretation != "" {
			sb.WriteString(m.styles.Subtitle.Render(plan.Interpretation))
			sb.WriteString("\n\n")
		}
		for i, panel := range plan.Panels {
			sb.WriteString(ui.RenderChart(panel, i, m.styles))
			sb.WriteString("\n")
		}
		if len(plan.Items) > 0 {
			sb.WriteString(m.entityTable("Matching objects", plan.Items))
		}
		return sb.String()

	case render.SingleVisualization:
		var sb strings.Builder
		if plan.Interpretation != "" {
			sb.WriteString(m.styles.Subtitle.Render(plan.Interpretation))
			sb.WriteString("\n\n")
		}
		sb.WriteString(ui.RenderChart(plan.Spec, 0, m.styles))
		return sb.String()

	case render.GroupedTable:
		var sb strings.Builder
		if plan.Interpretation != "" {
			sb.WriteString(m.styles.Subtitle.Render(plan.Interpretation))
			sb.WriteString("\n\n")
		}
		for _, group := range plan.Groups {
			sb.WriteString(m.entityTable(group.Event, group.Items))
		}
		sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("%d objects total", plan.Total)))
		return sb.String()

	case render.FlatTable:
		var sb strings.Builder
		if plan.Interpretation != "" {
			sb.WriteString(m.styles.Subtitle.Render(plan.Interpretation))
			sb.WriteString("\n\n")
		}
		sb.WriteString(m.entityTable("", plan.Items))
		sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("%d objects total", plan.Total)))
		return sb.String()

	case render.EmptyState:
		return m.emptyContent(plan.Message)
	}
	return ""
}

func (m Model) commitContent(res core.CommitResult) string {
	var sb strings.Builder
	if res.Success {
		sb.WriteString(m.styles.Success.Render("✓ " + res.Message))
	} else {
		sb.WriteString(m.styles.Error.Render("✗ " + res.Message))
	}
	sb.WriteString("\n\n")

	if len(res.CreatedItems) > 0 {
		table := ui.NewSimpleTable("Created", []string{"Type", "Name", "ID"})
		for _, item := range res.CreatedItems {
			table.AddRow(item.Type, item.Name, item.ID)
		}
		sb.WriteString(table.View(m.styles))
	}
	if len(res.SearchTerms) > 0 {
		sb.WriteString(m.styles.Bold.Render("Search terms: "))
		sb.WriteString(m.styles.Body.Render(strings.Join(res.SearchTerms, ", ")))
		sb.WriteString("\n")
	}
	if len(res.URLPatterns) > 0 {
		sb.WriteString(m.styles.Bold.Render("URL patterns: "))
		sb.WriteString(m.styles.Body.Render(strings.Join(res.URLPatterns, ", ")))
		sb.WriteString("\n")
	}
	if res.ExtractionPrompt != "" {
		sb.WriteString(m.styles.Bold.Render("Extraction prompt"))
		sb.WriteString("\n")
		sb.WriteString(m.styles.PreviewDetail.Render(res.ExtractionPrompt))
		sb.WriteString("\n")
	}
	if res.LinkedSourcesCount > 0 || res.CrawlJobsCount > 0 {
		sb.WriteString(m.styles.Muted.Render(fmt.Sprintf(
			"%d sources linked · %d crawl jobs started",
			res.LinkedSourcesCount, res.CrawlJobsCount)))
		sb.WriteString("\n")
	}
	if len(res.Steps) > 0 {
		sb.WriteString("\n")
		sb.WriteString(ui.RenderSteps(res.Steps, "", m.styles))
	}
	return sb.String()
}

func (m Model) emptyContent(message string) string {
	var sb strings.Builder
	sb.WriteString(m.styles.Muted.Render(message))
	sb.WriteString("\n")

	mode := m.engine.Session().Mode
	var cards []string
	for _, ex := range m.examples {
		if ex.Mode == mode {
			cards = append(cards, m.styles.SuggestionBox.Render(ex.Text))
		}
	}
	if len(cards) > 0 {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Subtitle.Render("Try one of these:"))
		sb.WriteString("\n")
		sb.WriteString(strings.Join(cards, "\n"))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) entityTable(title string, items []core.Entity) string {
	table := ui.NewSimpleTable(title, []string{"Type", "Name", "ID"})
	for _, e := range items {
		table.AddRow(e.Type, e.Name, e.ID)
	}
	return table.View(m.styles)
}
