package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadreport/internal/model"
	"github.com/sells-group/leadreport/pkg/apollo"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations (status polling and
// per-section writes).
var preparedStatements = map[string]string{
	"insert_report": `INSERT INTO reports (id, email, status, lead_data, ai_content, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"claim_report":  `UPDATE reports SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
	"get_report":    `SELECT id, email, status, enrichment_data, narrative_report, lead_data, ai_content, error, created_at, updated_at FROM reports WHERE id = $1`,
	"set_section":   `UPDATE reports SET ai_content = jsonb_set(COALESCE(ai_content, '{}'::jsonb), $1, $2, true), updated_at = $3 WHERE id = $4 AND status <> 'failed'`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	email            TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'processing',
	enrichment_data  JSONB,
	narrative_report TEXT,
	lead_data        JSONB,
	ai_content       JSONB NOT NULL DEFAULT '{}'::jsonb,
	error            TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_reports_email ON reports(email);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateReport(ctx context.Context, email string, seed *model.LeadData) (*model.Report, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	if seed == nil {
		seed = &model.LeadData{}
	}
	seed.Email = email

	leadJSON, err := json.Marshal(seed)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal lead data")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (id, email, status, lead_data, ai_content, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, email, string(model.StatusProcessing), leadJSON, []byte(`{}`), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert report")
	}

	return &model.Report{
		ID:        id,
		Email:     email,
		Status:    model.StatusProcessing,
		LeadData:  seed,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, from, to model.ReportStatus) error {
	if !model.CanTransition(from, to) {
		return eris.Errorf("postgres: illegal status transition %s to %s", from, to)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(to), time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotClaimed
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id string, msg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE reports SET status = $1, error = $2, updated_at = $3
		 WHERE id = $4 AND status NOT IN ('completed', 'failed')`,
		string(model.StatusFailed), msg, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "postgres: mark failed %s", id)
}

func (s *PostgresStore) SetEnrichment(ctx context.Context, id string, rec *apollo.PersonRecord, patch map[string]any) error {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal enrichment")
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal lead patch")
	}

	// The || merge only overwrites keys present in the patch, so
	// submitter-provided fields already in lead_data survive.
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports
		 SET enrichment_data = $1,
		     lead_data = COALESCE(lead_data, '{}'::jsonb) || $2,
		     updated_at = $3
		 WHERE id = $4`,
		recJSON, patchJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set enrichment %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetSectionContent(ctx context.Context, id string, section string, content model.SectionContent) error {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal section %s", section)
	}

	// Guarded against failed so a slow section write cannot resurrect a
	// report that was failed while sections were in flight.
	_, err = s.pool.Exec(ctx,
		`UPDATE reports
		 SET ai_content = jsonb_set(COALESCE(ai_content, '{}'::jsonb), $1, $2, true),
		     updated_at = $3
		 WHERE id = $4 AND status <> 'failed'`,
		[]string{section}, contentJSON, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "postgres: set section %s for %s", section, id)
}

func (s *PostgresStore) SetCompleted(ctx context.Context, id string, narrative string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET narrative_report = $1, status = $2, updated_at = $3
		 WHERE id = $4 AND status = $5`,
		narrative, string(model.StatusCompleted), time.Now().UTC(), id, string(model.StatusFetchingApollo),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set completed %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotClaimed
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, status, enrichment_data, narrative_report, lead_data, ai_content, error, created_at, updated_at FROM reports WHERE id = $1`,
		id,
	)
	r, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get report %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT id, email, status, enrichment_data, narrative_report, lead_data, ai_content, error, created_at, updated_at FROM reports WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Email != "" {
		query += fmt.Sprintf(` AND email = $%d`, argIdx)
		args = append(args, filter.Email)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list reports iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReport(row scannable) (*model.Report, error) {
	var r model.Report
	var enrichmentJSON, leadJSON, aiJSON []byte
	var narrative, errMsg *string

	err := row.Scan(&r.ID, &r.Email, &r.Status, &enrichmentJSON, &narrative,
		&leadJSON, &aiJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if narrative != nil {
		r.Narrative = *narrative
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	if len(enrichmentJSON) > 0 {
		r.Enrichment = &apollo.PersonRecord{}
		if err := json.Unmarshal(enrichmentJSON, r.Enrichment); err != nil {
			return nil, eris.Wrap(err, "unmarshal enrichment")
		}
	}
	if len(leadJSON) > 0 {
		r.LeadData = &model.LeadData{}
		if err := json.Unmarshal(leadJSON, r.LeadData); err != nil {
			return nil, eris.Wrap(err, "unmarshal lead data")
		}
	}
	if len(aiJSON) > 0 {
		if err := json.Unmarshal(aiJSON, &r.AIContent); err != nil {
			return nil, eris.Wrap(err, "unmarshal ai content")
		}
	}
	return &r, nil
}
