package jurisdiction

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "custodia/pkg/domain"
)

// PostgresGrantStore persists access grants in PostgreSQL.
type PostgresGrantStore struct {
	db *sql.DB
}

// NewPostgresGrantStore constructs a PostgreSQL-backed grant store.
func NewPostgresGrantStore(db *sql.DB) *PostgresGrantStore {
	return &PostgresGrantStore{db: db}
}

func (s *PostgresGrantStore) Insert(ctx context.Context, grant *AccessGrant) error {
	conditions, err := json.Marshal(grant.Conditions)
	if err != nil {
		return fmt.Errorf("marshal grant conditions: %w", err)
	}
	query := `
		INSERT INTO access_grants (id, case_id, target_jurisdiction, granted_by, granted_at, conditions, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(grant.ID),
		uuid.UUID(grant.CaseID),
		grant.TargetJurisdiction,
		uuid.UUID(grant.GrantedBy),
		grant.GrantedAt,
		conditions,
		grant.ExpiresAt,
		grant.Active,
	)
	if err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

func (s *PostgresGrantStore) Get(ctx context.Context, grantID id.GrantID) (*AccessGrant, error) {
	query := `
		SELECT id, case_id, target_jurisdiction, granted_by, granted_at, conditions, expires_at, is_active,
		       revoked_by, revoked_at, revocation_reason
		FROM access_grants
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(grantID))

	var (
		grant      AccessGrant
		gid, cid   uuid.UUID
		grantedBy  uuid.UUID
		conditions []byte
		revokedBy  sql.NullString
		revokedAt  sql.NullTime
		reason     sql.NullString
	)
	err := row.Scan(&gid, &cid, &grant.TargetJurisdiction, &grantedBy, &grant.GrantedAt,
		&conditions, &grant.ExpiresAt, &grant.Active, &revokedBy, &revokedAt, &reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("get grant: %w", err)
	}

	grant.ID = id.GrantID(gid)
	grant.CaseID = id.CaseID(cid)
	grant.GrantedBy = id.UserID(grantedBy)
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &grant.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal grant conditions: %w", err)
		}
	}
	if revokedBy.Valid {
		grant.RevokedBy = revokedBy.String
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		grant.RevokedAt = &t
	}
	if reason.Valid {
		grant.RevocationReason = reason.String
	}
	return &grant, nil
}

// Revoke flips the grant inactive. The WHERE clause guards the write-once
// revocation metadata: an already-revoked grant is untouched.
func (s *PostgresGrantStore) Revoke(ctx context.Context, grantID id.GrantID, revokedBy string, reason string) error {
	query := `
		UPDATE access_grants
		SET is_active = FALSE, revoked_by = $2, revoked_at = NOW(), revocation_reason = $3
		WHERE id = $1 AND is_active = TRUE
	`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(grantID), revokedBy, reason)
	if err != nil {
		return fmt.Errorf("revoke grant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke grant: %w", err)
	}
	if affected == 0 {
		// Either missing or already revoked; distinguish for the caller.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM access_grants WHERE id = $1)`, uuid.UUID(grantID),
		).Scan(&exists); err != nil {
			return fmt.Errorf("revoke grant: %w", err)
		}
		if !exists {
			return ErrGrantNotFound
		}
	}
	return nil
}

// PostgresPermissionStore reads explicit cross-jurisdiction permissions.
type PostgresPermissionStore struct {
	db *sql.DB
}

func NewPostgresPermissionStore(db *sql.DB) *PostgresPermissionStore {
	return &PostgresPermissionStore{db: db}
}

func (s *PostgresPermissionStore) FindActivePermission(ctx context.Context, userID id.UserID, jurisdiction string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM jurisdiction_permissions
			WHERE user_id = $1 AND jurisdiction = $2 AND is_active = TRUE
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, uuid.UUID(userID), jurisdiction).Scan(&exists); err != nil {
		return false, fmt.Errorf("find active permission: %w", err)
	}
	return exists, nil
}

// PostgresStatsStore aggregates report statistics from the audit and grant
// tables.
type PostgresStatsStore struct {
	db *sql.DB
}

func NewPostgresStatsStore(db *sql.DB) *PostgresStatsStore {
	return &PostgresStatsStore{db: db}
}

func (s *PostgresStatsStore) RoutingStats(ctx context.Context, jurisdiction string, window TimeRange) (RoutingStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE decision = 'DIRECT_ACCESS'),
			COUNT(*) FILTER (WHERE decision = 'APPROVED'),
			COUNT(*) FILTER (WHERE decision = 'CONDITIONAL'),
			COUNT(*) FILTER (WHERE decision = 'DENIED')
		FROM audit_events
		WHERE action = 'case_routed' AND jurisdiction = $1 AND ts BETWEEN $2 AND $3
	`
	var stats RoutingStats
	err := s.db.QueryRowContext(ctx, query, jurisdiction, window.From, window.To).Scan(
		&stats.Total, &stats.DirectAccess, &stats.Approved, &stats.Conditional, &stats.Denied,
	)
	if err != nil {
		return RoutingStats{}, fmt.Errorf("routing stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStatsStore) GrantStats(ctx context.Context, jurisdiction string, window TimeRange) (GrantStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active AND expires_at > NOW()),
			COUNT(*) FILTER (WHERE NOT is_active AND revoked_at IS NOT NULL),
			COUNT(*) FILTER (WHERE is_active AND expires_at <= NOW())
		FROM access_grants
		WHERE target_jurisdiction = $1 AND granted_at BETWEEN $2 AND $3
	`
	var stats GrantStats
	err := s.db.QueryRowContext(ctx, query, jurisdiction, window.From, window.To).Scan(
		&stats.Issued, &stats.Active, &stats.Revoked, &stats.Expired,
	)
	if err != nil {
		return GrantStats{}, fmt.Errorf("grant stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStatsStore) ViolationCount(ctx context.Context, jurisdiction string, window TimeRange) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM residency_violations
		WHERE jurisdiction = $1 AND detected_at BETWEEN $2 AND $3
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, jurisdiction, window.From, window.To).Scan(&count); err != nil {
		return 0, fmt.Errorf("violation count: %w", err)
	}
	return count, nil
}
