package domain

// ProcessedItem is the unit moved through the pipeline and held by the priority queue
type ProcessedItem struct {
	Record         *Message        `json:"record"`
	Classification *Classification `json:"classification"`
	Draft          *Draft          `json:"draft,omitempty"`
}

// ID returns the identifier of the underlying message
func (p *ProcessedItem) ID() string {
	if p == nil || p.Record == nil {
		return ""
	}
	return p.Record.ID
}

// Urgency returns the urgency used for ordering.
// Items without a classification order as DefaultUrgency; the record itself is untouched.
func (p *ProcessedItem) Urgency() int {
	if p == nil || p.Classification == nil {
		return DefaultUrgency
	}
	return p.Classification.UrgencyScore
}

// IsUrgent reports whether the item carries an urgent priority tag
func (p *ProcessedItem) IsUrgent() bool {
	return p != nil && p.Classification != nil && p.Classification.Priority == PriorityUrgent
}

// Stats is the summary report served to dashboards
type Stats struct {
	TotalProcessed int            `json:"total_processed"`
	DraftsCreated  int            `json:"drafts_created"`
	EmailsSent     int            `json:"emails_sent"`
	Categories     map[string]int `json:"categories"`
	LastRun        string         `json:"last_run,omitempty"`
}
