package report

import (
	"fmt"

	"github.com/sells-group/leadreport/pkg/apollo"
)

// ValidationError reports malformed submission input. It is returned
// synchronously; no report row exists when it fires.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// EnrichmentError is a terminal failure of the enrichment lookup. Kind
// drives the user-facing message persisted on the report.
type EnrichmentError struct {
	Kind apollo.ErrorKind
	Err  error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrichment failed (%s): %v", e.Kind, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// UserMessage returns the client-safe failure description persisted on the
// report. Raw provider errors never reach polling clients.
func (e *EnrichmentError) UserMessage() string {
	switch e.Kind {
	case apollo.KindRateLimited:
		return "Enrichment provider rate limit reached. Please try again in a few minutes."
	case apollo.KindUnauthorized:
		return "Enrichment provider rejected our credentials. Contact an administrator."
	case apollo.KindBadRequest:
		return "Enrichment provider could not process this email address."
	case apollo.KindNotFound:
		return "No enrichment data was found for this email address."
	default:
		return "Enrichment lookup failed. Please try again later."
	}
}

// GenerationError is a terminal failure of the mandatory narrative step.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("narrative generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SectionGenerationError is a per-section failure during the best-effort
// fan-out. Never terminal for the report; logged for diagnostics only.
type SectionGenerationError struct {
	Section string
	Err     error
}

func (e *SectionGenerationError) Error() string {
	return fmt.Sprintf("section %s generation failed: %v", e.Section, e.Err)
}

func (e *SectionGenerationError) Unwrap() error { return e.Err }

// NotFoundError reports a status query for an unknown report id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("report not found: %s", e.ID)
}

// ParseError reports that none of the tolerated provider response shapes
// yielded usable JSON.
type ParseError struct {
	Section string
	Raw     string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable model response for %s: %v", e.Section, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
