package model

import (
	"time"

	"github.com/sells-group/leadreport/pkg/apollo"
)

// ReportStatus represents the current state of a lead report.
type ReportStatus string

const (
	StatusProcessing     ReportStatus = "processing"
	StatusFetchingApollo ReportStatus = "fetching_apollo"
	StatusCompleted      ReportStatus = "completed"
	StatusFailed         ReportStatus = "failed"
)

// IsTerminal reports whether the status is an end state for polling clients.
func (s ReportStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// statusRank orders the forward path of the state machine. failed is
// reachable from any non-terminal state and absorbs.
var statusRank = map[ReportStatus]int{
	StatusProcessing:     1,
	StatusFetchingApollo: 2,
	StatusCompleted:      3,
}

// CanTransition reports whether moving from → to is a legal state change.
// Forward moves of exactly one step are allowed, plus any non-terminal
// state → failed.
func CanTransition(from, to ReportStatus) bool {
	if to == StatusFailed {
		return from == StatusProcessing || from == StatusFetchingApollo
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

// Report is the unit of work and the unit of persistence: one
// enrichment-and-insight job for one email.
type Report struct {
	ID         string                    `json:"id"`
	Email      string                    `json:"email"`
	Status     ReportStatus              `json:"status"`
	Enrichment *apollo.PersonRecord      `json:"enrichment_data,omitempty"`
	Narrative  string                    `json:"narrative_report,omitempty"`
	LeadData   *LeadData                 `json:"lead_data,omitempty"`
	AIContent  map[string]SectionContent `json:"ai_content,omitempty"`
	Error      string                    `json:"error,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

// LeadData is the denormalized projection of the enrichment result that
// downstream consumers read and edit. The pipeline builds it once and after
// that only re-asserts the fields it owns; meeting details and Project are
// supplied by the submitter and must survive every pipeline write verbatim.
type LeadData struct {
	Name            string         `json:"name,omitempty"`
	Position        string         `json:"position,omitempty"`
	CompanyName     string         `json:"company_name,omitempty"`
	Email           string         `json:"email,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	LinkedInURL     string         `json:"linkedin_url,omitempty"`
	Location        string         `json:"location,omitempty"`
	CompanyWebsite  string         `json:"company_website,omitempty"`
	CompanyIndustry string         `json:"company_industry,omitempty"`
	CompanySize     int            `json:"company_size,omitempty"`
	CompanyRevenue  string         `json:"company_revenue,omitempty"`
	CompanySummary  string         `json:"company_summary,omitempty"`
	LeadScore       int            `json:"lead_score,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	Status          string         `json:"status,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	MeetingDate     string         `json:"meeting_date,omitempty"`
	MeetingTime     string         `json:"meeting_time,omitempty"`
	MeetingPlatform string         `json:"meeting_platform,omitempty"`
	ProblemPitch    string         `json:"problem_pitch,omitempty"`
	Project         string         `json:"project,omitempty"`
	CustomFields    map[string]any `json:"custom_fields,omitempty"`
}

// MeetingFields returns the submitter-owned fields as a patch map for
// targeted store merges. Only non-empty fields are included so a merge
// never blanks a value set by a concurrent editor.
func (l *LeadData) MeetingFields() map[string]any {
	patch := make(map[string]any)
	if l.MeetingDate != "" {
		patch["meeting_date"] = l.MeetingDate
	}
	if l.MeetingTime != "" {
		patch["meeting_time"] = l.MeetingTime
	}
	if l.MeetingPlatform != "" {
		patch["meeting_platform"] = l.MeetingPlatform
	}
	if l.ProblemPitch != "" {
		patch["problem_pitch"] = l.ProblemPitch
	}
	if l.Project != "" {
		patch["project"] = l.Project
	}
	return patch
}
