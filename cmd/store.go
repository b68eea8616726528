package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadreport/internal/config"
	"github.com/sells-group/leadreport/internal/report"
	"github.com/sells-group/leadreport/internal/store"
	anthropicpkg "github.com/sells-group/leadreport/pkg/anthropic"
	"github.com/sells-group/leadreport/pkg/apollo"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadreport.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initOrchestrator sets up the store and API clients and builds the report
// orchestrator. Callers own the returned store and should defer Close.
func initOrchestrator(ctx context.Context, mode string) (*report.Orchestrator, store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	apolloClient := apollo.NewClient(cfg.Apollo.Key,
		apollo.WithBaseURL(cfg.Apollo.BaseURL),
		apollo.WithRateLimit(cfg.Apollo.RPS),
	)
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	gen := report.NewGenerator(anthropicClient, cfg.Anthropic)

	return report.New(st, apolloClient, gen, cfg.Report), st, nil
}

func pollOptions(cfg config.ReportConfig) report.PollOptions {
	return report.PollOptions{
		Interval: time.Duration(cfg.PollIntervalSecs) * time.Second,
		Timeout:  time.Duration(cfg.PollTimeoutSecs) * time.Second,
	}
}
