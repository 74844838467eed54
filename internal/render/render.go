// Package render decides which visual shape a settled result takes. The
// decision is a closed tagged union: the console switches over the variants
// and cannot meet a shape this package did not produce.
package render

import (
	"fmt"

	"crawldesk/internal/core"
)

// Plan is the sealed set of result shapes. Exactly one variant is returned
// per dispatch.
type Plan interface{ renderPlan() }

// CompoundPanels renders a multi-part answer: one panel per visualization,
// with an optional trailing entity table.
type CompoundPanels struct {
	Interpretation string
	Panels         []core.VisualizationSpec
	Items          []core.Entity
}

// SingleVisualization renders one chart with the interpretation as caption.
type SingleVisualization struct {
	Interpretation string
	Spec           core.VisualizationSpec
}

// FlatTable renders entities as a single table.
type FlatTable struct {
	Interpretation string
	Total          int
	Items          []core.Entity
}

// GroupedTable renders entities clustered under event headings.
type GroupedTable struct {
	Interpretation string
	Total          int
	Groups         []core.EventGroup
}

// CommitSummary renders the outcome of a confirmed write, success or failure.
type CommitSummary struct {
	Result core.CommitResult
}

// EmptyState renders when there is nothing to show. Message is mode-aware.
type EmptyState struct {
	Message string
}

func (CompoundPanels) renderPlan()      {}
func (SingleVisualization) renderPlan() {}
func (FlatTable) renderPlan()           {}
func (GroupedTable) renderPlan()        {}
func (CommitSummary) renderPlan()       {}
func (EmptyState) renderPlan()          {}

// Dispatch maps a session snapshot to its result shape. A commit result
// outranks a read result; the engine clears the loser on every transition,
// so both being set would be a state machine bug, not a rendering choice.
func Dispatch(s core.Session) Plan {
	if s.Commit != nil {
		return CommitSummary{Result: *s.Commit}
	}
	if s.Read != nil {
		return dispatchRead(*s.Read)
	}
	return EmptyState{Message: idleMessage(s.Mode)}
}

func dispatchRead(r core.ReadResult) Plan {
	if r.IsCompound && len(r.Visualizations) > 0 {
		return CompoundPanels{
			Interpretation: r.QueryInterpretation,
			Panels:         r.Visualizations,
			Items:          r.Items,
		}
	}
	if r.Visualization != nil {
		return SingleVisualization{
			Interpretation: r.QueryInterpretation,
			Spec:           *r.Visualization,
		}
	}
	if r.Grouping == core.GroupingByEvent {
		if len(r.Groups) == 0 {
			return EmptyState{Message: noMatchesMessage(r.QueryInterpretation)}
		}
		return GroupedTable{
			Interpretation: r.QueryInterpretation,
			Total:          r.Total,
			Groups:         r.Groups,
		}
	}
	if len(r.Items) == 0 {
		return EmptyState{Message: noMatchesMessage(r.QueryInterpretation)}
	}
	return FlatTable{
		Interpretation: r.QueryInterpretation,
		Total:          r.Total,
		Items:          r.Items,
	}
}

func idleMessage(m core.Mode) string {
	switch m {
	case core.ModeWrite:
		return "Describe a change, e.g. \"Erstelle eine neue Person Max Mustermann\"."
	case core.ModePlan:
		return "Start a conversation to draft your query step by step."
	}
	return "Ask a question about the extracted data to get started."
}

func noMatchesMessage(interpretation string) string {
	if interpretation != "" {
		return fmt.Sprintf("No results for: %s", interpretation)
	}
	return "No results matched your query."
}
