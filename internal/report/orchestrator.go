package report

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadreport/internal/config"
	"github.com/sells-group/leadreport/internal/model"
	"github.com/sells-group/leadreport/internal/resilience"
	"github.com/sells-group/leadreport/internal/store"
	"github.com/sells-group/leadreport/pkg/apollo"
)

// SubmitRequest carries the submission payload. Everything except Email is
// optional metadata owned by the submitter; the pipeline preserves these
// fields verbatim through every later write.
type SubmitRequest struct {
	Email           string `json:"email"`
	MeetingDate     string `json:"meetingDate,omitempty"`
	MeetingTime     string `json:"meetingTime,omitempty"`
	MeetingPlatform string `json:"meetingPlatform,omitempty"`
	ProblemPitch    string `json:"problemPitch,omitempty"`
	Project         string `json:"project,omitempty"`
}

// StatusResult is the polling view of a report. Data is present only when
// the report completed; Error only when it failed.
type StatusResult struct {
	Status model.ReportStatus `json:"status"`
	Data   *model.Report      `json:"data,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Orchestrator owns the report lifecycle state machine. All collaborators
// are injected; it holds no global state.
type Orchestrator struct {
	store  store.Store
	apollo apollo.Client
	gen    *Generator
	cfg    config.ReportConfig

	// wg tracks in-flight pipelines so the process can drain them on
	// shutdown. The submitting caller never waits on it.
	wg sync.WaitGroup
}

// New creates an Orchestrator.
func New(st store.Store, ac apollo.Client, gen *Generator, cfg config.ReportConfig) *Orchestrator {
	return &Orchestrator{store: st, apollo: ac, gen: gen, cfg: cfg}
}

// Submit validates the request, creates the processing report row, and
// schedules the pipeline. It returns the new report id immediately; the
// caller never observes the background work. The only external call on the
// synchronous path is the persistence write.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if !strings.Contains(req.Email, "@") {
		return "", &ValidationError{Field: "email", Msg: "must contain @"}
	}

	seed := &model.LeadData{
		MeetingDate:     req.MeetingDate,
		MeetingTime:     req.MeetingTime,
		MeetingPlatform: req.MeetingPlatform,
		ProblemPitch:    req.ProblemPitch,
		Project:         req.Project,
	}
	r, err := o.store.CreateReport(ctx, req.Email, seed)
	if err != nil {
		return "", err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// Detached from the request context: the pipeline outlives the
		// submission call, and its outcome lands in the report row.
		o.Process(context.Background(), r.ID, req)
	}()

	return r.ID, nil
}

// Wait blocks until all in-flight pipelines have finished. Used by the
// server on graceful shutdown and by CLI runs.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Process drives one report through the state machine. Every failure on the
// mandatory path is converted into a persisted failed status with a
// client-safe message; nothing escapes this boundary.
func (o *Orchestrator) Process(ctx context.Context, id string, req SubmitRequest) {
	log := zap.L().With(zap.String("report_id", id), zap.String("email", req.Email))

	rec, err := o.enrich(ctx, req.Email)
	if err != nil {
		var ee *EnrichmentError
		msg := "Enrichment lookup failed. Please try again later."
		if errors.As(err, &ee) {
			msg = ee.UserMessage()
		}
		log.Warn("enrichment failed", zap.Error(err))
		o.fail(ctx, id, msg)
		return
	}

	// Optimistic claim: exactly one pipeline advances the report out of
	// processing. A concurrent duplicate loses here and walks away.
	if err := o.store.UpdateStatus(ctx, id, model.StatusProcessing, model.StatusFetchingApollo); err != nil {
		if errors.Is(err, store.ErrNotClaimed) {
			log.Warn("report already claimed, abandoning pipeline")
			return
		}
		log.Error("status update failed", zap.Error(err))
		o.fail(ctx, id, "Report processing failed. Please try again later.")
		return
	}

	lead := BuildLeadData(req, rec)
	if err := o.store.SetEnrichment(ctx, id, rec, leadPatch(lead)); err != nil {
		log.Error("persist enrichment failed", zap.Error(err))
		o.fail(ctx, id, "Report processing failed. Please try again later.")
		return
	}

	narrative, err := o.narrative(ctx, lead, rec)
	if err != nil {
		log.Warn("narrative generation failed", zap.Error(&GenerationError{Err: err}))
		o.fail(ctx, id, "Report generation failed. Please try again later.")
		return
	}

	if err := o.store.SetCompleted(ctx, id, narrative); err != nil {
		if errors.Is(err, store.ErrNotClaimed) {
			log.Warn("report no longer in flight, dropping narrative")
			return
		}
		log.Error("persist narrative failed", zap.Error(err))
		o.fail(ctx, id, "Report processing failed. Please try again later.")
		return
	}
	log.Info("report completed, starting section fan-out")

	o.generateSections(ctx, id, lead, rec)
}

// enrich calls the enrichment provider with retries on transient failures.
// Typed provider errors (rate limit, auth, not found) are never retried;
// they map directly to user-facing failure messages.
func (o *Orchestrator) enrich(ctx context.Context, email string) (*apollo.PersonRecord, error) {
	cfg := resilience.DefaultRetryConfig()
	cfg.ShouldRetry = func(err error) bool {
		var ae *apollo.Error
		if errors.As(err, &ae) {
			return ae.Kind == apollo.KindUnknown && resilience.IsTransientHTTPStatus(ae.StatusCode)
		}
		return resilience.IsTransient(err)
	}
	cfg.OnRetry = resilience.RetryLogger("apollo", "match")

	rec, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*apollo.PersonRecord, error) {
		return o.apollo.Match(ctx, email)
	})
	if err != nil {
		return nil, &EnrichmentError{Kind: apollo.KindOf(err), Err: err}
	}
	return rec, nil
}

// narrative generates the mandatory narrative with a bounded retry on
// transient provider failures.
func (o *Orchestrator) narrative(ctx context.Context, lead *model.LeadData, rec *apollo.PersonRecord) (string, error) {
	cfg := resilience.DefaultRetryConfig()
	if o.cfg.GenerationRetries > 0 {
		cfg.MaxAttempts = o.cfg.GenerationRetries + 1
	}
	cfg.OnRetry = resilience.RetryLogger("anthropic", "narrative")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		return o.gen.GenerateNarrative(ctx, lead, rec)
	})
}

// generateSections runs the best-effort fan-out over the eight sections.
// Each section's generate, normalize, and write are independent; one
// section failing or stalling never touches another section or the
// report's completed status. Sections are not retried.
func (o *Orchestrator) generateSections(ctx context.Context, id string, lead *model.LeadData, rec *apollo.PersonRecord) {
	concurrency := o.cfg.SectionConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	rps := o.cfg.SectionRPS
	if rps <= 0 {
		rps = 2
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, section := range model.SectionNames {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			o.generateSection(ctx, id, section, lead, rec)
			return nil
		})
	}
	g.Wait() //nolint:errcheck
}

func (o *Orchestrator) generateSection(ctx context.Context, id, section string, lead *model.LeadData, rec *apollo.PersonRecord) {
	log := zap.L().With(zap.String("report_id", id), zap.String("section", section))

	raw, err := o.gen.Generate(ctx, section, lead, rec)
	if err != nil {
		log.Warn("section degraded", zap.Error(&SectionGenerationError{Section: section, Err: err}))
		return
	}

	content := Normalize(section, raw)
	if err := o.store.SetSectionContent(ctx, id, section, content); err != nil {
		log.Warn("section write failed", zap.Error(err))
	}
}

// fail persists the terminal failure. A best-effort write: if the report
// reached a terminal state concurrently, the store leaves it alone.
func (o *Orchestrator) fail(ctx context.Context, id, msg string) {
	if err := o.store.MarkFailed(ctx, id, msg); err != nil {
		zap.L().Error("mark failed errored", zap.String("report_id", id), zap.Error(err))
	}
}

// GetStatus returns the polling view of a report. Cheap and idempotent:
// one row read, no side effects.
func (o *Orchestrator) GetStatus(ctx context.Context, id string) (*StatusResult, error) {
	r, err := o.store.GetReport(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, err
	}

	res := &StatusResult{Status: r.Status}
	switch r.Status {
	case model.StatusCompleted:
		res.Data = r
	case model.StatusFailed:
		res.Error = r.Error
	}
	return res, nil
}
