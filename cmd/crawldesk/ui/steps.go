package ui

import (
	"strings"

	"crawldesk/internal/core"
)

// RenderSteps renders the generation step checklist shown while a generative
// commit is in flight.
func RenderSteps(steps []core.GenerationStep, spinnerFrame string, styles Styles) string {
	var sb strings.Builder
	for _, step := range steps {
		switch step.Status {
		case core.StepDone:
			sb.WriteString(styles.StepDone.Render("✓ " + step.Title))
		case core.StepActive:
			marker := spinnerFrame
			if marker == "" {
				marker = "•"
			}
			sb.WriteString(styles.StepActive.Render(marker + " " + step.Title))
			if step.Subtitle != "" {
				sb.WriteString("\n")
				sb.WriteString(styles.Muted.Render("    " + step.Subtitle))
			}
		default:
			sb.WriteString(styles.StepPending.Render("○ " + step.Title))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
