package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Recorder writes escalation events. The log write is mandatory; the
// database write is best effort and only active when a connection was
// supplied at construction.
type Recorder struct {
	logger *logrus.Logger
	db     *sql.DB
	insert string
}

// NewRecorder creates a log-only recorder.
func NewRecorder(logger *logrus.Logger) *Recorder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Recorder{logger: logger}
}

// NewDBRecorder creates a recorder that also persists events, and ensures
// the audit_escalations table exists. The connection must belong to the
// unrestricted principal; the table is not tenant-scoped. dialect selects
// the placeholder style and is either "postgres" or "sqlite".
func NewDBRecorder(logger *logrus.Logger, db *sql.DB, dialect string) (*Recorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	r := NewRecorder(logger)
	r.db = db
	switch dialect {
	case "postgres":
		r.insert = `INSERT INTO audit_escalations (org_id, backend, reason, occurred_at) VALUES ($1, $2, $3, $4)`
	case "sqlite":
		r.insert = `INSERT INTO audit_escalations (org_id, backend, reason, occurred_at) VALUES (?, ?, ?, ?)`
	default:
		return nil, fmt.Errorf("unknown dialect: %s", dialect)
	}

	if err := r.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_escalations table: %w", err)
	}
	return r, nil
}

// ensureTable creates the audit_escalations table if it doesn't exist.
// The DDL sticks to the dialect subset Postgres and SQLite share.
func (r *Recorder) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_escalations (
		org_id TEXT,
		backend TEXT NOT NULL,
		reason TEXT NOT NULL,
		occurred_at TIMESTAMP NOT NULL
	)`
	_, err := r.db.Exec(query)
	return err
}

// Record writes an escalation event. A failed database write is logged but
// does not fail the escalation; the log line has already been emitted.
func (r *Recorder) Record(ctx context.Context, event EscalationEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	r.logger.WithFields(logrus.Fields{
		"org_id":  event.OrgID,
		"backend": event.Backend,
		"reason":  event.Reason,
	}).Warn("tenant context escalated to root")

	if r.db == nil {
		return
	}

	if _, err := r.db.ExecContext(ctx, r.insert, event.OrgID, event.Backend, event.Reason, event.OccurredAt); err != nil {
		r.logger.WithError(err).Error("failed to persist escalation event")
	}
}
