// Package ledger keeps an audit trail of upload attempts in Postgres. It is
// not session storage: sessions live in memory only.
package ledger

import (
	"context"
	"fmt"
	"time"

	"backend-trailscope/internal/db"

	"github.com/google/uuid"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"

	defaultLimit = 20
	maxLimit     = 200
)

type Entry struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	FileName    string    `json:"file_name"`
	Format      string    `json:"format"`
	SizeBytes   int64     `json:"size_bytes"`
	Records     int       `json:"records"`
	GPSPoints   int       `json:"gps_points"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Service writes to the ingest_log table. A Service without a database is
// disabled: writes are dropped and history is empty.
type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Enabled() bool {
	return s != nil && s.db != nil
}

func (s *Service) EnsureSchema(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ingest_log (
			id           UUID PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			file_name    TEXT NOT NULL,
			format       TEXT NOT NULL DEFAULT '',
			size_bytes   BIGINT NOT NULL DEFAULT 0,
			records      INTEGER NOT NULL DEFAULT 0,
			gps_points   INTEGER NOT NULL DEFAULT 0,
			status       TEXT NOT NULL,
			error        TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create ingest_log: %w", err)
	}
	return nil
}

func (s *Service) RecordIngest(ctx context.Context, e Entry) (Entry, error) {
	if !s.Enabled() {
		return e, nil
	}
	e.ID = uuid.NewString()
	if e.Status == "" {
		e.Status = StatusOK
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO ingest_log (id, workspace_id, file_name, format, size_bytes, records, gps_points, status, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at
	`, e.ID, e.WorkspaceID, e.FileName, e.Format, e.SizeBytes, e.Records, e.GPSPoints, e.Status, e.Error)
	if err := row.Scan(&e.CreatedAt); err != nil {
		return Entry{}, fmt.Errorf("insert ingest_log: %w", err)
	}
	return e, nil
}

// Recent lists the newest entries for a workspace.
func (s *Service) Recent(ctx context.Context, workspaceID string, limit int) ([]Entry, error) {
	if !s.Enabled() {
		return []Entry{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	rows, err := s.db.Query(ctx, `
		SELECT id, workspace_id, file_name, format, size_bytes, records, gps_points, status, error, created_at
		FROM ingest_log
		WHERE workspace_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.FileName, &e.Format, &e.SizeBytes, &e.Records, &e.GPSPoints, &e.Status, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
