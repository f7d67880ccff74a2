// Package seeder populates the in-memory stores with demo data for local
// development runs.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"custodia/internal/casefile"
	"custodia/internal/user"
	id "custodia/pkg/domain"
)

// PermissionGranter seeds standing cross-jurisdiction permissions.
type PermissionGranter interface {
	Grant(userID id.UserID, jurisdiction string)
}

// Seeder populates stores with demo data.
type Seeder struct {
	users       *user.Service
	cases       casefile.Store
	permissions PermissionGranter
	logger      *slog.Logger
}

// New creates a new seeder.
func New(users *user.Service, cases casefile.Store, permissions PermissionGranter, logger *slog.Logger) *Seeder {
	return &Seeder{
		users:       users,
		cases:       cases,
		permissions: permissions,
		logger:      logger,
	}
}

// SeedAll populates all stores with demo data.
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.Info("seeding demo data...")

	users, err := s.seedUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	cases, err := s.seedCases(ctx, users)
	if err != nil {
		return fmt.Errorf("failed to seed cases: %w", err)
	}

	s.logger.Info("demo data seeded successfully",
		"users", len(users),
		"cases", len(cases),
	)
	return nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]*user.User, error) {
	demoUsers := []user.RegisterRequest{
		{Email: "alice@example.com", Name: "Alice Anderson", Password: "demo-password-1", Role: "investigator", Department: "financial-crimes", Jurisdiction: "EU", ClearanceLevel: 3},
		{Email: "bob@example.com", Name: "Bob Brown", Password: "demo-password-2", Role: "investigator", Department: "cybercrime", Jurisdiction: "US", ClearanceLevel: 2},
		{Email: "charlie@example.com", Name: "Charlie Chen", Password: "demo-password-3", Role: "legal_counsel", Department: "legal", Jurisdiction: "IN", ClearanceLevel: 4},
		{Email: "diana@example.com", Name: "Diana Davis", Password: "demo-password-4", Role: "compliance_officer", Department: "compliance", Jurisdiction: "EU", ClearanceLevel: 5},
	}

	var users []*user.User
	for _, req := range demoUsers {
		u, err := s.users.Register(ctx, req)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	// Alice may reach into US cases; the rest stay within their own borders.
	s.permissions.Grant(users[0].ID, "US")

	return users, nil
}

func (s *Seeder) seedCases(ctx context.Context, users []*user.User) ([]*casefile.Case, error) {
	now := time.Now()

	demoCases := []struct {
		ownerIdx       int
		title          string
		caseType       string
		priority       string
		classification string
		jurisdiction   string
		evidence       []string
	}{
		{0, "Invoice fraud ring", "financial", "high", "confidential", "EU", []string{"Ledger extract Q1", "Wire transfer logs"}},
		{1, "Ransomware intrusion", "criminal", "critical", "restricted", "US", []string{"Disk image hash manifest"}},
		{2, "Procurement kickbacks", "financial", "normal", "internal", "IN", nil},
	}

	var cases []*casefile.Case
	for _, d := range demoCases {
		c := &casefile.Case{
			ID:             id.NewCaseID(),
			Title:          d.title,
			Type:           d.caseType,
			Priority:       d.priority,
			Classification: d.classification,
			Jurisdiction:   d.jurisdiction,
			Status:         casefile.StatusActive,
			OwnerID:        users[d.ownerIdx].ID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.cases.InsertCase(ctx, c); err != nil {
			return nil, err
		}
		cases = append(cases, c)

		for i, title := range d.evidence {
			e := &casefile.Evidence{
				ID:        id.NewEvidenceID(),
				CaseID:    c.ID,
				Title:     title,
				Kind:      "digital",
				Hash:      fmt.Sprintf("sha256:demo-%s-%d", c.ID, i),
				AddedBy:   users[d.ownerIdx].ID,
				CreatedAt: now,
			}
			if err := s.cases.InsertEvidence(ctx, e); err != nil {
				return nil, err
			}
		}
	}

	return cases, nil
}
