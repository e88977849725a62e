package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "catalog-gateway/internal/common/errors"
	"catalog-gateway/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AuditRecord is one pipeline run as stored in notification_decisions.
type AuditRecord struct {
	ID           string
	QueryID      string
	WorkspaceID  string
	Caller       string
	Decision     models.Decision
	LookupStatus string
	ResultCount  int
	CreatedAt    time.Time
}

type Auditor interface {
	Record(ctx context.Context, rec AuditRecord) error
}

const createAuditTable = `
CREATE TABLE IF NOT EXISTS notification_decisions (
	id              UUID PRIMARY KEY,
	query_id        TEXT NOT NULL,
	workspace_id    TEXT,
	caller_identity TEXT,
	decision        TEXT NOT NULL,
	lookup_status   TEXT,
	result_count    INTEGER NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
)`

const insertAudit = `
INSERT INTO notification_decisions
	(id, query_id, workspace_id, caller_identity, decision, lookup_status, result_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// PostgresAuditor appends decisions to PostgreSQL.
type PostgresAuditor struct {
	db *sql.DB
}

func NewPostgresAuditor(db *sql.DB) *PostgresAuditor {
	return &PostgresAuditor{db: db}
}

func (a *PostgresAuditor) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, createAuditTable); err != nil {
		return apperrors.NewAuditWriteFailedError(fmt.Errorf("create notification_decisions: %w", err))
	}
	return nil
}

func (a *PostgresAuditor) Record(ctx context.Context, rec AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := a.db.ExecContext(ctx, insertAudit,
		rec.ID,
		rec.QueryID,
		nullIfEmpty(rec.WorkspaceID),
		nullIfEmpty(rec.Caller),
		string(rec.Decision),
		nullIfEmpty(rec.LookupStatus),
		rec.ResultCount,
		rec.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
			err = fmt.Errorf("notification_decisions table is missing: %w", err)
		}
		return apperrors.NewAuditWriteFailedError(err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
