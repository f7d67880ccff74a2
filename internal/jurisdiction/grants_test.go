package jurisdiction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/internal/audit"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

type GrantLifecycleSuite struct {
	suite.Suite
	router  *Router
	grants  *MemoryGrantStore
	auditor *mockAuditor
	now     time.Time
	caseID  id.CaseID
	adminID id.UserID
}

func TestGrantLifecycleSuite(t *testing.T) {
	suite.Run(t, new(GrantLifecycleSuite))
}

func (s *GrantLifecycleSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.grants = NewMemoryGrantStore()
	s.grants.clock = func() time.Time { return s.now }
	s.auditor = &mockAuditor{}

	s.router = NewRouter(
		NewRegistry(),
		NewMemoryPermissionStore(),
		s.grants,
		&stubEvidenceStore{},
		NewMemoryStatsStore(),
		s.auditor,
		WithRouterClock(func() time.Time { return s.now }),
	)

	s.caseID = id.NewCaseID()
	s.adminID = id.NewUserID()
}

func (s *GrantLifecycleSuite) TestGrantDefaultsToThirtyDayExpiry() {
	grant, err := s.router.GrantAccess(context.Background(), s.caseID, "US", s.adminID, nil)
	s.Require().NoError(err)

	s.True(grant.Active)
	s.Equal(s.now, grant.GrantedAt)
	s.Equal(s.now.Add(30*24*time.Hour), grant.ExpiresAt)
	s.False(grant.Expired(s.now))
	s.True(grant.Expired(s.now.Add(31 * 24 * time.Hour)))

	events := s.auditor.byAction(string(audit.EventGrantIssued))
	s.Require().Len(events, 1)
	s.Equal("US", events[0].Jurisdiction)
}

func (s *GrantLifecycleSuite) TestExpiryDateConditionOverridesDefault() {
	expiry := s.now.Add(48 * time.Hour)
	grant, err := s.router.GrantAccess(context.Background(), s.caseID, "EU", s.adminID, map[string]any{
		"expiryDate": expiry.Format(time.RFC3339),
		"purpose":    "joint investigation",
	})
	s.Require().NoError(err)
	s.True(grant.ExpiresAt.Equal(expiry))
	s.Equal("joint investigation", grant.Conditions["purpose"])
}

func (s *GrantLifecycleSuite) TestMalformedExpiryDateFallsBackToDefault() {
	grant, err := s.router.GrantAccess(context.Background(), s.caseID, "EU", s.adminID, map[string]any{
		"expiryDate": "next tuesday",
	})
	s.Require().NoError(err)
	s.Equal(s.now.Add(30*24*time.Hour), grant.ExpiresAt)
}

func (s *GrantLifecycleSuite) TestUnknownJurisdictionRejected() {
	_, err := s.router.GrantAccess(context.Background(), s.caseID, "ATLANTIS", s.adminID, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *GrantLifecycleSuite) TestRevokeStampsMetadataOnce() {
	grant, err := s.router.GrantAccess(context.Background(), s.caseID, "US", s.adminID, nil)
	s.Require().NoError(err)

	revoker := id.NewUserID()
	s.Require().NoError(s.router.RevokeAccess(context.Background(), grant.ID, revoker, "case closed"))

	stored, err := s.grants.Get(context.Background(), grant.ID)
	s.Require().NoError(err)
	s.False(stored.Active)
	s.Equal(revoker.String(), stored.RevokedBy)
	s.Equal("case closed", stored.RevocationReason)
	s.Require().NotNil(stored.RevokedAt)
	s.Equal(s.now, *stored.RevokedAt)

	// A second revocation is a no-op; the original metadata survives.
	other := id.NewUserID()
	s.Require().NoError(s.router.RevokeAccess(context.Background(), grant.ID, other, "duplicate"))

	again, err := s.grants.Get(context.Background(), grant.ID)
	s.Require().NoError(err)
	s.False(again.Active, "a revoked grant is never re-activated")
	s.Equal(revoker.String(), again.RevokedBy)
	s.Equal("case closed", again.RevocationReason)

	s.Len(s.auditor.byAction(string(audit.EventGrantRevoked)), 2)
}

func (s *GrantLifecycleSuite) TestRevokeUnknownGrantFails() {
	err := s.router.RevokeAccess(context.Background(), id.NewGrantID(), s.adminID, "typo")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
