package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadreport/internal/model"
	"github.com/sells-group/leadreport/pkg/apollo"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// development and single-machine deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id               TEXT PRIMARY KEY,
	email            TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'processing',
	enrichment_data  TEXT,
	narrative_report TEXT,
	lead_data        TEXT,
	ai_content       TEXT NOT NULL DEFAULT '{}',
	error            TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_reports_email ON reports(email);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateReport(ctx context.Context, email string, seed *model.LeadData) (*model.Report, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	if seed == nil {
		seed = &model.LeadData{}
	}
	seed.Email = email

	leadJSON, err := json.Marshal(seed)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal lead data")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, email, status, lead_data, ai_content, created_at, updated_at) VALUES (?, ?, ?, ?, '{}', ?, ?)`,
		id, email, string(model.StatusProcessing), string(leadJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert report")
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

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, from, to model.ReportStatus) error {
	if !model.CanTransition(from, to) {
		return eris.Errorf("sqlite: illegal status transition %s to %s", from, to)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update status %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotClaimed
	}
	return nil
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, id string, msg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, error = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN ('completed', 'failed')`,
		string(model.StatusFailed), msg, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "sqlite: mark failed %s", id)
}

func (s *SQLiteStore) SetEnrichment(ctx context.Context, id string, rec *apollo.PersonRecord, patch map[string]any) error {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal enrichment")
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal lead patch")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE reports
		 SET enrichment_data = ?,
		     lead_data = json_patch(COALESCE(lead_data, '{}'), ?),
		     updated_at = ?
		 WHERE id = ?`,
		string(recJSON), string(patchJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set enrichment %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SetSectionContent(ctx context.Context, id string, section string, content model.SectionContent) error {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal section %s", section)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE reports
		 SET ai_content = json_set(COALESCE(ai_content, '{}'), ?, json(?)),
		     updated_at = ?
		 WHERE id = ? AND status <> 'failed'`,
		fmt.Sprintf("$.%s", section), string(contentJSON), time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "sqlite: set section %s for %s", section, id)
}

func (s *SQLiteStore) SetCompleted(ctx context.Context, id string, narrative string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET narrative_report = ?, status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		narrative, string(model.StatusCompleted), time.Now().UTC(), id, string(model.StatusFetchingApollo),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set completed %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotClaimed
	}
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, status, enrichment_data, narrative_report, lead_data, ai_content, error, created_at, updated_at FROM reports WHERE id = ?`,
		id,
	)
	r, err := scanSQLiteReport(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get report %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT id, email, status, enrichment_data, narrative_report, lead_data, ai_content, error, created_at, updated_at FROM reports WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Email != "" {
		query += ` AND email = ?`
		args = append(args, filter.Email)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanSQLiteReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

func scanSQLiteReport(row scannable) (*model.Report, error) {
	var r model.Report
	var enrichmentJSON, narrative, leadJSON, errMsg sql.NullString
	var aiJSON string

	err := row.Scan(&r.ID, &r.Email, &r.Status, &enrichmentJSON, &narrative,
		&leadJSON, &aiJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.Narrative = narrative.String
	r.Error = errMsg.String
	if enrichmentJSON.Valid && enrichmentJSON.String != "" {
		r.Enrichment = &apollo.PersonRecord{}
		if err := json.Unmarshal([]byte(enrichmentJSON.String), r.Enrichment); err != nil {
			return nil, eris.Wrap(err, "unmarshal enrichment")
		}
	}
	if leadJSON.Valid && leadJSON.String != "" {
		r.LeadData = &model.LeadData{}
		if err := json.Unmarshal([]byte(leadJSON.String), r.LeadData); err != nil {
			return nil, eris.Wrap(err, "unmarshal lead data")
		}
	}
	if aiJSON != "" {
		if err := json.Unmarshal([]byte(aiJSON), &r.AIContent); err != nil {
			return nil, eris.Wrap(err, "unmarshal ai content")
		}
	}
	return &r, nil
}
