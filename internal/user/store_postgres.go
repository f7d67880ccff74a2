package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "custodia/pkg/domain"
)

// PostgresStore persists users in PostgreSQL. Email uniqueness is enforced by
// the unique index on users.email.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, email, name, role, department, jurisdiction, clearance_level, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(u.ID), strings.ToLower(u.Email), u.Name, u.Role, u.Department,
		u.Jurisdiction, u.ClearanceLevel, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID id.UserID) (*User, error) {
	query := `
		SELECT id, email, name, role, department, jurisdiction, clearance_level, password_hash, created_at
		FROM users
		WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(userID)))
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, name, role, department, jurisdiction, clearance_level, password_hash, created_at
		FROM users
		WHERE email = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, strings.ToLower(email)))
}

func (s *PostgresStore) scanOne(row *sql.Row) (*User, error) {
	var (
		u   User
		uid uuid.UUID
	)
	err := row.Scan(&uid, &u.Email, &u.Name, &u.Role, &u.Department,
		&u.Jurisdiction, &u.ClearanceLevel, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.ID = id.UserID(uid)
	return &u, nil
}
