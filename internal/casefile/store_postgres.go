package casefile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "custodia/pkg/domain"
)

// PostgresStore persists cases and evidence in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed case store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertCase(ctx context.Context, c *Case) error {
	query := `
		INSERT INTO cases (id, title, type, priority, classification, jurisdiction, status, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(c.ID), c.Title, c.Type, c.Priority, c.Classification,
		c.Jurisdiction, string(c.Status), uuid.UUID(c.OwnerID), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCase(ctx context.Context, caseID id.CaseID) (*Case, error) {
	query := `
		SELECT id, title, type, priority, classification, jurisdiction, status, owner_id, created_at, updated_at
		FROM cases
		WHERE id = $1
	`
	c, err := scanCase(s.db.QueryRowContext(ctx, query, uuid.UUID(caseID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateCase(ctx context.Context, c *Case) error {
	query := `
		UPDATE cases
		SET title = $2, type = $3, priority = $4, classification = $5, status = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(c.ID), c.Title, c.Type, c.Priority, c.Classification, string(c.Status), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if affected == 0 {
		return ErrCaseNotFound
	}
	return nil
}

func (s *PostgresStore) ListCases(ctx context.Context, jurisdiction string) ([]*Case, error) {
	query := `
		SELECT id, title, type, priority, classification, jurisdiction, status, owner_id, created_at, updated_at
		FROM cases
		WHERE ($1 = '' OR jurisdiction = $1)
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, jurisdiction)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var out []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) InsertEvidence(ctx context.Context, e *Evidence) error {
	query := `
		INSERT INTO evidence (id, case_id, title, kind, classification, storage_region, hash, added_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(e.ID), uuid.UUID(e.CaseID), e.Title, e.Kind, e.Classification,
		e.StorageRegion, e.Hash, uuid.UUID(e.AddedBy), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEvidence(ctx context.Context, evidenceID id.EvidenceID) (*Evidence, error) {
	query := `
		SELECT id, case_id, title, kind, classification, storage_region, hash, added_by, created_at
		FROM evidence
		WHERE id = $1
	`
	e, err := scanEvidence(s.db.QueryRowContext(ctx, query, uuid.UUID(evidenceID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEvidenceNotFound
		}
		return nil, fmt.Errorf("get evidence: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListEvidence(ctx context.Context, caseID id.CaseID) ([]*Evidence, error) {
	query := `
		SELECT id, case_id, title, kind, classification, storage_region, hash, added_by, created_at
		FROM evidence
		WHERE case_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(caseID))
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var out []*Evidence
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*Case, error) {
	var (
		c       Case
		cid     uuid.UUID
		ownerID uuid.UUID
		status  string
	)
	if err := row.Scan(&cid, &c.Title, &c.Type, &c.Priority, &c.Classification,
		&c.Jurisdiction, &status, &ownerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ID = id.CaseID(cid)
	c.OwnerID = id.UserID(ownerID)
	c.Status = CaseStatus(status)
	return &c, nil
}

func scanEvidence(row rowScanner) (*Evidence, error) {
	var (
		e       Evidence
		eid     uuid.UUID
		cid     uuid.UUID
		addedBy uuid.UUID
	)
	if err := row.Scan(&eid, &cid, &e.Title, &e.Kind, &e.Classification,
		&e.StorageRegion, &e.Hash, &addedBy, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.ID = id.EvidenceID(eid)
	e.CaseID = id.CaseID(cid)
	e.AddedBy = id.UserID(addedBy)
	return &e, nil
}
