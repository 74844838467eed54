package ui

import (
	"strings"
	"testing"

	"crawldesk/internal/core"
)

func TestSimpleTable(t *testing.T) {
	table := NewSimpleTable("Matching objects", []string{"Type", "Name"})
	table.AddRow("person", "Max Mustermann")

	view := table.View(DefaultStyles())

	if !strings.Contains(view, "Matching objects") {
		t.Error("view missing title")
	}
	if !strings.Contains(view, "Max Mustermann") {
		t.Error("view missing cell content")
	}
}

func TestEmptyTableRendersNothing(t *testing.T) {
	table := NewSimpleTable("Empty", []string{"A"})
	if got := table.View(DefaultStyles()); got != "" {
		t.Errorf("empty table rendered %q", got)
	}
}

func TestNumericColumnsRightAligned(t *testing.T) {
	table := NewSimpleTable("", []string{"ID", "Name"})
	table.AddRow("7", "alpha")
	table.AddRow("1234", "beta")

	view := table.View(DefaultStyles())
	for _, line := range strings.Split(view, "\n") {
		if strings.Contains(line, "alpha") {
			if !strings.Contains(line, "   7 ") {
				t.Errorf("short id not right-aligned: %q", line)
			}
			return
		}
	}
	t.Fatal("row line not found")
}

func TestRenderChart(t *testing.T) {
	spec := core.VisualizationSpec{
		Kind:   "bar",
		Title:  "Quellen pro Kategorie",
		Labels: []string{"Verkehr", "Bau"},
		Values: []float64{10, 5},
	}
	view := RenderChart(spec, 0, DefaultStyles())

	if !strings.Contains(view, "Quellen pro Kategorie") {
		t.Error("chart missing title")
	}
	if !strings.Contains(view, "Verkehr") || !strings.Contains(view, "Bau") {
		t.Error("chart missing labels")
	}
	if !strings.Contains(view, "█") {
		t.Error("chart missing bars")
	}
}

func TestRenderChartNegativeValues(t *testing.T) {
	spec := core.VisualizationSpec{
		Kind:   "bar",
		Title:  "Delta pro Woche",
		Labels: []string{"KW 31", "KW 32"},
		Values: []float64{5, -3},
	}
	// Backend values are opaque; a negative one must render, not crash.
	view := RenderChart(spec, 0, DefaultStyles())

	if !strings.Contains(view, "-3") {
		t.Error("negative value missing from chart")
	}
	if !strings.Contains(view, "█") {
		t.Error("positive bar missing")
	}
}

func TestRenderChartNoData(t *testing.T) {
	view := RenderChart(core.VisualizationSpec{Title: "Leer"}, 0, DefaultStyles())
	if !strings.Contains(view, "no data") {
		t.Errorf("empty chart = %q", view)
	}
}

func TestRenderSteps(t *testing.T) {
	steps := []core.GenerationStep{
		{Ordinal: 1, Title: "Interpreting command", Status: core.StepDone},
		{Ordinal: 2, Title: "Generating search terms", Subtitle: "Deriving queries", Status: core.StepActive},
		{Ordinal: 3, Title: "Linking sources", Status: core.StepPending},
	}
	view := RenderSteps(steps, "", DefaultStyles())

	if !strings.Contains(view, "✓ Interpreting command") {
		t.Error("done step missing check mark")
	}
	if !strings.Contains(view, "Deriving queries") {
		t.Error("active step missing subtitle")
	}
	if !strings.Contains(view, "○ Linking sources") {
		t.Error("pending step missing marker")
	}
}

func TestThemeFor(t *testing.T) {
	if !ThemeFor("dark").IsDark {
		t.Error("dark theme not dark")
	}
	if ThemeFor("light").IsDark {
		t.Error("light theme dark")
	}
}
