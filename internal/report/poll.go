package report

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PollOptions bounds a polling loop. Timeout is a hard wall-clock ceiling
// regardless of how long individual status reads take.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Poll reads the report status at a fixed interval until it reaches a
// terminal state or the deadline passes. It returns the final StatusResult
// for completed and failed reports alike; the caller inspects Status to
// tell them apart.
func (o *Orchestrator) Poll(ctx context.Context, id string, opts PollOptions) (*StatusResult, error) {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		res, err := o.GetStatus(ctx, id)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				return nil, err
			}
			// Transient read failures keep the loop alive until the deadline.
			zap.L().Warn("status poll errored", zap.String("report_id", id), zap.Error(err))
		} else if res.Status.IsTerminal() {
			return res, nil
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "report: poll %s timed out", id)
		case <-ticker.C:
		}
	}
}
