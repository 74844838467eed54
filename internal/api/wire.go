package api

import "crawldesk/internal/core"

// Wire payload structs mirror the backend's JSON bodies. They exist so the
// rest of the console only ever sees the core envelope shapes.

type smartQueryRequest struct {
	Question   string `json:"question"`
	AllowWrite bool   `json:"allow_write"`
}

type smartWriteRequest struct {
	Question    string `json:"question"`
	PreviewOnly bool   `json:"preview_only"`
	Confirmed   bool   `json:"confirmed,omitempty"`
}

type multimodalRequest struct {
	Message       string   `json:"message"`
	AttachmentIDs []string `json:"attachment_ids"`
}

type entityPayload struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Facets map[string]any `json:"facets"`
}

func (p entityPayload) toCore() core.Entity {
	return core.Entity{ID: p.ID, Type: p.Type, Name: p.Name, Facets: p.Facets}
}

type eventGroupPayload struct {
	Event string          `json:"event"`
	Items []entityPayload `json:"items"`
}

type vizPayload struct {
	Kind   string    `json:"kind"`
	Title  string    `json:"title"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

func (p vizPayload) toCore() core.VisualizationSpec {
	return core.VisualizationSpec(p)
}

type readResultPayload struct {
	Total               int                 `json:"total"`
	Items               []entityPayload     `json:"items"`
	Groups              []eventGroupPayload `json:"groups"`
	Grouping            string              `json:"grouping"`
	Visualization       *vizPayload         `json:"visualization"`
	QueryInterpretation string              `json:"query_interpretation"`
	IsCompound          bool                `json:"is_compound"`
	Visualizations      []vizPayload        `json:"visualizations"`
}

func (p readResultPayload) toCore() *core.ReadResult {
	out := &core.ReadResult{
		Total:               p.Total,
		Grouping:            core.Grouping(p.Grouping),
		QueryInterpretation: p.QueryInterpretation,
		IsCompound:          p.IsCompound,
	}
	if out.Grouping != core.GroupingByEvent {
		out.Grouping = core.GroupingFlat
	}
	for _, item := range p.Items {
		out.Items = append(out.Items, item.toCore())
	}
	for _, g := range p.Groups {
		group := core.EventGroup{Event: g.Event}
		for _, item := range g.Items {
			group.Items = append(group.Items, item.toCore())
		}
		out.Groups = append(out.Groups, group)
	}
	if p.Visualization != nil {
		v := p.Visualization.toCore()
		out.Visualization = &v
	}
	for _, v := range p.Visualizations {
		out.Visualizations = append(out.Visualizations, v.toCore())
	}
	return out
}

type previewPayload struct {
	Interpretation map[string]any `json:"interpretation"`
	OperationLabel string         `json:"operation_label"`
	Description    string         `json:"description"`
	Details        []string       `json:"details"`
}

func (p previewPayload) toCore() *core.PreviewEnvelope {
	return &core.PreviewEnvelope{
		Interpretation: p.Interpretation,
		OperationLabel: p.OperationLabel,
		Description:    p.Description,
		Details:        p.Details,
	}
}

type itemPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

type stepPayload struct {
	Ordinal  int    `json:"ordinal"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Status   string `json:"status"`
}

type commitPayload struct {
	Success            bool          `json:"success"`
	Message            string        `json:"message"`
	CreatedItems       []itemPayload `json:"created_items"`
	Steps              []stepPayload `json:"steps"`
	SearchTerms        []string      `json:"search_terms"`
	URLPatterns        []string      `json:"url_patterns"`
	ExtractionPrompt   string        `json:"extraction_prompt"`
	LinkedSourcesCount int           `json:"linked_sources_count"`
	CrawlJobsCount     int           `json:"crawl_jobs_count"`
}

func (p commitPayload) toCore() *core.CommitResult {
	out := &core.CommitResult{
		Success:            p.Success,
		Message:            p.Message,
		SearchTerms:        p.SearchTerms,
		URLPatterns:        p.URLPatterns,
		ExtractionPrompt:   p.ExtractionPrompt,
		LinkedSourcesCount: p.LinkedSourcesCount,
		CrawlJobsCount:     p.CrawlJobsCount,
	}
	for _, item := range p.CreatedItems {
		out.CreatedItems = append(out.CreatedItems, core.Item(item))
	}
	for _, s := range p.Steps {
		out.Steps = append(out.Steps, core.GenerationStep{
			Ordinal:  s.Ordinal,
			Title:    s.Title,
			Subtitle: s.Subtitle,
			Status:   core.StepStatus(s.Status),
		})
	}
	return out
}

type attachmentPayload struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

func (p attachmentPayload) toCore() *core.Attachment {
	return &core.Attachment{
		ID:          p.ID,
		Filename:    p.Filename,
		ContentType: p.ContentType,
		SizeBytes:   p.SizeBytes,
	}
}
