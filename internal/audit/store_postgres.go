package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists audit events in PostgreSQL. Inserts only; the
// audit_events table carries no update or delete path.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (ts, actor_id, case_id, evidence_id, action, jurisdiction, decision, reason, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.Timestamp,
		event.ActorID,
		event.CaseID,
		event.EvidenceID,
		event.Action,
		event.Jurisdiction,
		event.Decision,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCase(ctx context.Context, caseID string) ([]Event, error) {
	query := `
		SELECT ts, actor_id, case_id, evidence_id, action, jurisdiction, decision, reason, request_id
		FROM audit_events
		WHERE case_id = $1
		ORDER BY ts
	`
	return s.list(ctx, query, caseID)
}

func (s *PostgresStore) ListByActor(ctx context.Context, actorID string) ([]Event, error) {
	query := `
		SELECT ts, actor_id, case_id, evidence_id, action, jurisdiction, decision, reason, request_id
		FROM audit_events
		WHERE actor_id = $1
		ORDER BY ts
	`
	return s.list(ctx, query, actorID)
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.Timestamp,
			&e.ActorID,
			&e.CaseID,
			&e.EvidenceID,
			&e.Action,
			&e.Jurisdiction,
			&e.Decision,
			&e.Reason,
			&e.RequestID,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
