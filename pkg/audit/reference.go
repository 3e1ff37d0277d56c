package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/orgs"
)

// ReferenceLogger stores usage reference events in Postgres
type ReferenceLogger struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// NewReferenceLogger creates a reference event sink
func NewReferenceLogger(db *sql.DB, logger logrus.FieldLogger) (*ReferenceLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := &ReferenceLogger{db: db, logger: logger}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reference_events (
			id BIGSERIAL PRIMARY KEY,
			event_type VARCHAR(64) NOT NULL,
			organization_id UUID NOT NULL,
			payload JSONB NOT NULL,
			date TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_reference_events_org ON reference_events(organization_id, date DESC);
	`); err != nil {
		return nil, fmt.Errorf("failed to ensure reference_events table: %w", err)
	}
	return r, nil
}

// RaiseEvent stores event with its full payload
func (r *ReferenceLogger) RaiseEvent(ctx context.Context, event orgs.ReferenceEvent) error {
	if event.Date.IsZero() {
		event.Date = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal reference event: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO reference_events (event_type, organization_id, payload, date) VALUES ($1, $2, $3, $4)`,
		string(event.Type), event.OrganizationID, payload, event.Date,
	); err != nil {
		return fmt.Errorf("failed to insert reference event: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"type":            event.Type,
		"organization_id": event.OrganizationID,
	}).Debug("reference event raised")
	return nil
}
