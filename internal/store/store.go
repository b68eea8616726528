package store

import (
	"context"

	"github.com/sells-group/leadreport/internal/model"
	"github.com/sells-group/leadreport/pkg/apollo"
)

// ReportFilter specifies criteria for listing reports.
type ReportFilter struct {
	Status model.ReportStatus `json:"status,omitempty"`
	Email  string             `json:"email,omitempty"`
	Limit  int                `json:"limit,omitempty"`
	Offset int                `json:"offset,omitempty"`
}

// ErrNotFound is returned by GetReport when no report has the given id.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "report not found" }

// ErrNotClaimed is returned by UpdateStatus when the report is not in the
// expected source state. The caller lost the race (or the report was failed
// concurrently) and must not continue the pipeline.
var ErrNotClaimed = errNotClaimed{}

type errNotClaimed struct{}

func (errNotClaimed) Error() string { return "report not in expected status" }

// Store defines the persistence interface for the report pipeline.
//
// Writes are targeted: each method touches only the columns (or JSON keys)
// it owns, so concurrent editors of lead_data and late pipeline writes do
// not clobber each other.
type Store interface {
	// CreateReport inserts a new report in processing state. seed carries
	// the submitter-provided lead fields (meeting details, project) that
	// every later write must leave intact.
	CreateReport(ctx context.Context, email string, seed *model.LeadData) (*model.Report, error)

	// UpdateStatus advances a report from exactly one status to another.
	// Transitions the state machine does not allow are rejected outright;
	// returns ErrNotClaimed if the report is not currently in from.
	UpdateStatus(ctx context.Context, id string, from, to model.ReportStatus) error

	// MarkFailed moves a non-terminal report to failed with a client-safe
	// message. Terminal reports are left untouched.
	MarkFailed(ctx context.Context, id string, msg string) error

	// SetEnrichment stores the raw provider record and merges the
	// enrichment-derived lead fields into lead_data. Keys absent from
	// patch survive the merge.
	SetEnrichment(ctx context.Context, id string, rec *apollo.PersonRecord, patch map[string]any) error

	// SetSectionContent writes one insight section under ai_content.
	// Writes against a failed report are dropped silently.
	SetSectionContent(ctx context.Context, id string, section string, content model.SectionContent) error

	// SetCompleted stores the narrative and moves the report from
	// fetching_apollo to completed. Returns ErrNotClaimed if the report
	// was failed in the meantime.
	SetCompleted(ctx context.Context, id string, narrative string) error

	GetReport(ctx context.Context, id string) (*model.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
