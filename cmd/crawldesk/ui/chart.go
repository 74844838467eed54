package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"crawldesk/internal/core"
)

const maxBarWidth = 40

// RenderChart renders a visualization spec as a labelled horizontal bar
// chart. Kinds the terminal cannot draw (timeline, pie) degrade to the same
// bar shape; the data is what matters.
func RenderChart(spec core.VisualizationSpec, colorIndex int, styles Styles) string {
	var sb strings.Builder

	if spec.Title != "" {
		sb.WriteString(styles.Title.Render(spec.Title))
		sb.WriteString("\n")
	}

	if len(spec.Labels) == 0 || len(spec.Values) == 0 {
		sb.WriteString(styles.Muted.Render("(no data points)"))
		sb.WriteString("\n")
		return sb.String()
	}

	labelWidth := 0
	for _, l := range spec.Labels {
		if w := lipgloss.Width(l); w > labelWidth {
			labelWidth = w
		}
	}

	max := spec.Values[0]
	for _, v := range spec.Values {
		if v > max {
			max = v
		}
	}

	barStyle := lipgloss.NewStyle().Foreground(ChartColor(colorIndex))
	for i, label := range spec.Labels {
		if i >= len(spec.Values) {
			break
		}
		v := spec.Values[i]
		width := 0
		if max > 0 && v > 0 {
			width = int(v / max * maxBarWidth)
			if width == 0 {
				width = 1
			}
		}
		sb.WriteString(styles.Body.Width(labelWidth + 1).Render(label))
		sb.WriteString(barStyle.Render(strings.Repeat("█", width)))
		sb.WriteString(styles.Muted.Render(fmt.Sprintf(" %.6g", v)))
		sb.WriteString("\n")
	}

	return sb.String()
}
