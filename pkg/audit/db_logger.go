package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/orgs"
)

// DBLogger stores organization user events in Postgres
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed event logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure organization_user_events table: %w", err)
	}
	return logger, nil
}

// ensureTable creates the event table if it doesn't exist
func (l *DBLogger) ensureTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS organization_user_events (
			id BIGSERIAL PRIMARY KEY,
			event_type VARCHAR(64) NOT NULL,
			organization_id UUID NOT NULL,
			organization_user_id UUID NOT NULL,
			user_id UUID,
			acting_user_id UUID,
			system_user VARCHAR(64),
			request_id VARCHAR(64),
			date TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_org_user_events_org_date ON organization_user_events(organization_id, date DESC);
		CREATE INDEX IF NOT EXISTS idx_org_user_events_org_user ON organization_user_events(organization_user_id);
	`

	_, err := l.db.Exec(query)
	return err
}

const insertEventQuery = `
	INSERT INTO organization_user_events (
		event_type, organization_id, organization_user_id, user_id,
		acting_user_id, system_user, request_id, date
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertEvent(ctx context.Context, ex execer, ev Event) error {
	var system *string
	if ev.SystemUser != nil {
		s := string(*ev.SystemUser)
		system = &s
	}
	_, err := ex.ExecContext(ctx, insertEventQuery,
		string(ev.Type), ev.OrganizationID, ev.OrganizationUserID, ev.UserID,
		ev.ActingUserID, system, nullString(ev.RequestID), ev.Date,
	)
	return err
}

// LogOrganizationUserEvent stores a single event
func (l *DBLogger) LogOrganizationUserEvent(ctx context.Context, event orgs.UserEvent) error {
	ev := newEvent(event, contextkeys.GetRequestID(ctx))
	if err := insertEvent(ctx, l.db, ev); err != nil {
		return fmt.Errorf("failed to insert organization user event: %w", err)
	}
	return nil
}

// LogOrganizationUserEvents stores a batch of events in one transaction
func (l *DBLogger) LogOrganizationUserEvents(ctx context.Context, events []orgs.UserEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	requestID := contextkeys.GetRequestID(ctx)
	for _, e := range events {
		if err := insertEvent(ctx, tx, newEvent(e, requestID)); err != nil {
			return fmt.Errorf("failed to insert organization user event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit organization user events: %w", err)
	}
	return nil
}

// Search returns an organization's events, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	query := `
		SELECT
			id, event_type, organization_id, organization_user_id, user_id,
			acting_user_id, system_user, request_id, date
		FROM organization_user_events
		WHERE organization_id = $1
	`

	args := []interface{}{filter.OrganizationID}
	argCount := 2

	if filter.OrganizationUserID != nil {
		query += fmt.Sprintf(" AND organization_user_id = $%d", argCount)
		args = append(args, *filter.OrganizationUserID)
		argCount++
	}

	if len(filter.Types) > 0 {
		query += fmt.Sprintf(" AND event_type = ANY($%d)", argCount)
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		argCount++
	}

	if filter.Start != nil {
		query += fmt.Sprintf(" AND date >= $%d", argCount)
		args = append(args, *filter.Start)
		argCount++
	}

	if filter.End != nil {
		query += fmt.Sprintf(" AND date <= $%d", argCount)
		args = append(args, *filter.End)
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY date DESC, id DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filter.limit(), filter.Offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search organization user events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			ev        Event
			eventType string
			system    sql.NullString
			requestID sql.NullString
		)
		if err := rows.Scan(
			&ev.ID, &eventType, &ev.OrganizationID, &ev.OrganizationUserID, &ev.UserID,
			&ev.ActingUserID, &system, &requestID, &ev.Date,
		); err != nil {
			return nil, fmt.Errorf("failed to scan organization user event: %w", err)
		}
		ev.Type = orgs.EventType(eventType)
		if system.Valid {
			kind := auth.EventSystemUser(system.String)
			ev.SystemUser = &kind
		}
		ev.RequestID = requestID.String
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read organization user events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
