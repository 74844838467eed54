// Package core holds the Smart Query data model and the session state
// machine that gates every interaction with the analysis backend.
//
// The types here are the normalized envelope shapes every backend response is
// converted into before anything downstream sees it; the result renderer and
// the console never branch on raw wire payloads.
package core

import "time"

// Mode is the active interaction mode of the console.
type Mode string

const (
	// ModeRead issues read-only queries against the extracted dataset.
	ModeRead Mode = "read"
	// ModeWrite issues mutating commands, always gated by preview→confirm.
	ModeWrite Mode = "write"
	// ModePlan runs the multi-turn dialogue used to draft a prompt.
	ModePlan Mode = "plan"
)

// Valid reports whether m is one of the three known modes.
func (m Mode) Valid() bool {
	return m == ModeRead || m == ModeWrite || m == ModePlan
}

// Phase is the session's single loading state machine. Exactly one phase is
// active at a time; illegal combinations ("previewing while submitting") are
// unrepresentable.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhasePreviewing
	PhaseCommitting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhasePreviewing:
		return "previewing"
	case PhaseCommitting:
		return "committing"
	}
	return "unknown"
}

// Attachment is a server-registered file bound to the pending query.
// The ID is assigned by the backend on upload.
type Attachment struct {
	ID             string
	Filename       string
	ContentType    string
	SizeBytes      int64
	PreviewDataURI string // set asynchronously for image types, best effort
}

// Query is the pending user input: text plus consumed-on-submit attachments.
type Query struct {
	Text        string
	Mode        Mode
	Attachments []Attachment
}

// PreviewEnvelope is the backend's dry-run interpretation of a write command.
// It is consumed exactly once: confirm triggers the commit, cancel discards it.
type PreviewEnvelope struct {
	Interpretation map[string]any
	OperationLabel string
	Description    string
	Details        []string
}

// Item is an object created by a confirmed write.
type Item struct {
	ID   string
	Type string
	Name string
}

// StepStatus is the lifecycle of one generation step.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepActive  StepStatus = "active"
	StepDone    StepStatus = "done"
)

// GenerationStep is one phase of the simulated progress indicator shown
// while an AI-generation-heavy commit is in flight.
type GenerationStep struct {
	Ordinal  int
	Title    string
	Subtitle string
	Status   StepStatus
}

// CommitResult is the terminal outcome of a confirmed write. Immutable once
// received. Success=false is a normal result rendered with failure styling,
// not a transport error.
type CommitResult struct {
	Success            bool
	Message            string
	CreatedItems       []Item
	Steps              []GenerationStep
	SearchTerms        []string
	URLPatterns        []string
	ExtractionPrompt   string
	LinkedSourcesCount int
	CrawlJobsCount     int
}

// Entity is an extracted object surfaced by the backend. Facet fields are
// opaque to the console; they are rendered, never interpreted.
type Entity struct {
	ID     string
	Type   string
	Name   string
	Facets map[string]any
}

// EventGroup is a cluster of entities under one event heading.
type EventGroup struct {
	Event string
	Items []Entity
}

// Grouping selects the tabular fallback shape of a read result.
type Grouping string

const (
	GroupingFlat    Grouping = "flat"
	GroupingByEvent Grouping = "by_event"
)

// VisualizationSpec describes one chart panel of a read result.
type VisualizationSpec struct {
	Kind   string // "bar", "pie", "timeline", ...
	Title  string
	Labels []string
	Values []float64
}

// ReadResult is the normalized outcome of a read query or multimodal
// analysis. Immutable once received; replaced wholesale by the next query.
type ReadResult struct {
	Total               int
	Items               []Entity
	Groups              []EventGroup
	Grouping            Grouping
	Visualization       *VisualizationSpec
	QueryInterpretation string
	IsCompound          bool
	Visualizations      []VisualizationSpec
}

// PlanRole distinguishes the two sides of a plan-mode conversation.
type PlanRole string

const (
	PlanRoleUser      PlanRole = "user"
	PlanRoleAssistant PlanRole = "assistant"
)

// PlanTurn is one message of the append-only plan conversation.
type PlanTurn struct {
	Role      PlanRole
	Text      string
	Timestamp time.Time
}

// PlanChunk is one increment of a streaming plan-mode response. The final
// chunk carries Done=true and optionally the generated prompt the dialogue
// converged on.
type PlanChunk struct {
	Delta           string
	Done            bool
	GeneratedPrompt string
	Err             error
}

// HistoryEntry is a persisted past write command. Read-only to the session
// engine except for triggering a rerun.
type HistoryEntry struct {
	ID             int64
	CommandText    string
	Interpretation string
	Timestamp      time.Time
	Favorite       bool
}

// ExamplePrompt seeds one suggestion card.
type ExamplePrompt struct {
	Mode Mode   `yaml:"mode" json:"mode"`
	Text string `yaml:"text" json:"text"`
}

// generativeOps are the operation labels whose commits run the multi-stage
// AI generation pipeline server-side and therefore get the simulated
// progress timeline.
var generativeOps = map[string]bool{
	"create_category":   true,
	"generate_sources":  true,
	"create_extraction": true,
}

// IsGenerativeOperation reports whether a previewed operation label should
// drive the generation progress tracker during commit.
func IsGenerativeOperation(label string) bool {
	return generativeOps[label]
}
