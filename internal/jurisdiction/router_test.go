package jurisdiction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/internal/audit"
	id "custodia/pkg/domain"
)

type mockAuditor struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (m *mockAuditor) Emit(_ context.Context, event audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockAuditor) byAction(action string) []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Event
	for _, e := range m.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type stubEvidenceStore struct {
	records map[id.EvidenceID]*EvidenceRecord
	err     error
}

func (s *stubEvidenceStore) FetchEvidenceWithCase(_ context.Context, evidenceID id.EvidenceID) (*EvidenceRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records[evidenceID], nil
}

type failingPermissionStore struct{}

func (failingPermissionStore) FindActivePermission(context.Context, id.UserID, string) (bool, error) {
	return false, errors.New("permission store down")
}

type RouterSuite struct {
	suite.Suite
	router      *Router
	permissions *MemoryPermissionStore
	grants      *MemoryGrantStore
	evidence    *stubEvidenceStore
	stats       *MemoryStatsStore
	auditor     *mockAuditor
	now         time.Time
	userID      id.UserID
	caseID      id.CaseID
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.permissions = NewMemoryPermissionStore()
	s.grants = NewMemoryGrantStore()
	s.evidence = &stubEvidenceStore{records: make(map[id.EvidenceID]*EvidenceRecord)}
	s.stats = NewMemoryStatsStore()
	s.auditor = &mockAuditor{}

	s.router = NewRouter(
		NewRegistry(),
		s.permissions,
		s.grants,
		s.evidence,
		s.stats,
		s.auditor,
		WithRouterClock(func() time.Time { return s.now }),
	)

	s.userID = id.NewUserID()
	s.caseID = id.NewCaseID()
}

func (s *RouterSuite) caseRef(jurisdiction string) CaseRef {
	return CaseRef{ID: s.caseID, Jurisdiction: jurisdiction, Type: "civil", Priority: "normal"}
}

func (s *RouterSuite) requester(jurisdiction string) Requester {
	return Requester{ID: s.userID, Role: "investigator", Jurisdiction: jurisdiction}
}

func (s *RouterSuite) TestSameJurisdictionIsDirectAccess() {
	d := s.router.RouteCase(context.Background(), s.caseRef("EU"), s.requester("EU"))

	s.Equal(OutcomeDirectAccess, d.Decision)
	s.Equal(Compliant, d.Compliance)
	s.NotNil(d.RequiredApprovals)
	s.Empty(d.RequiredApprovals)
	s.NotNil(d.Restrictions)
	s.Empty(d.Restrictions)
	s.Empty(s.auditor.byAction(string(audit.EventCaseRouted)), "same-jurisdiction access is not a routing audit event")
}

func (s *RouterSuite) TestUnknownJurisdictionDenies() {
	d := s.router.RouteCase(context.Background(), s.caseRef("XX"), s.requester("EU"))

	s.Equal(OutcomeDenied, d.Decision)
	s.Equal(NonCompliant, d.Compliance)
	s.Equal("Unknown jurisdiction rules", d.Reason)
}

func (s *RouterSuite) TestTargetProhibitingTransferDenies() {
	// IN forbids inbound cross-border transfer outright.
	d := s.router.RouteCase(context.Background(), s.caseRef("US"), s.requester("IN"))

	s.Equal(OutcomeDenied, d.Decision)
	s.Equal(NonCompliant, d.Compliance)
	s.Equal([]string{ApprovalCourtOrder, ApprovalDataProtectionAuthority}, d.RequiredApprovals)

	events := s.auditor.byAction(string(audit.EventCaseRouted))
	s.Require().Len(events, 1)
	s.Equal("DENIED", events[0].Decision)
}

func (s *RouterSuite) TestMissingPermissionDenies() {
	d := s.router.RouteCase(context.Background(), s.caseRef("IN"), s.requester("US"))

	s.Equal(OutcomeDenied, d.Decision)
	s.Equal([]string{ApprovalAdmin}, d.RequiredApprovals)
	s.Equal("No active cross-jurisdiction permission", d.Reason)
}

func (s *RouterSuite) TestPermissionLookupFailureFailsClosed() {
	router := NewRouter(NewRegistry(), failingPermissionStore{}, s.grants, s.evidence, s.stats, s.auditor,
		WithRouterClock(func() time.Time { return s.now }))

	d := router.RouteCase(context.Background(), s.caseRef("IN"), s.requester("US"))

	s.Equal(OutcomeDenied, d.Decision)
	s.Equal([]string{ApprovalAdmin}, d.RequiredApprovals)
}

func (s *RouterSuite) TestCriticalCriminalCrossBorderApproved() {
	s.permissions.Grant(s.userID, "US")
	c := CaseRef{
		ID:           s.caseID,
		Jurisdiction: "IN",
		Type:         "criminal",
		Priority:     "critical",
	}

	d := s.router.RouteCase(context.Background(), c, s.requester("US"))

	s.Equal(OutcomeApproved, d.Decision)
	s.Equal(Compliant, d.Compliance)
	s.Equal([]string{
		ApprovalSeniorLegalOfficer,
		ApprovalLawEnforcementLiaison,
		ApprovalInternationalCounsel,
	}, d.RequiredApprovals)
	s.Equal([]string{RestrictionViewOnly, RestrictionAuditAllAccess}, d.Restrictions)
}

func (s *RouterSuite) TestUnsatisfiedConditionsYieldConditional() {
	registry := NewRegistry(WithConditionChecker(StaticConditionChecker{}))
	router := NewRouter(registry, s.permissions, s.grants, s.evidence, s.stats, s.auditor,
		WithRouterClock(func() time.Time { return s.now }))
	s.permissions.Grant(s.userID, "US")

	d := router.RouteCase(context.Background(), s.caseRef("IN"), s.requester("US"))

	s.Equal(OutcomeConditional, d.Decision)
	s.Equal(RequiresReview, d.Compliance)
	s.Equal([]string{ApprovalComplianceOfficer}, d.RequiredApprovals,
		"compliance officer is appended on the conditional branch")
}

func (s *RouterSuite) TestConfidentialClassificationRequiresSeniorApproval() {
	s.permissions.Grant(s.userID, "EU")
	c := CaseRef{
		ID:             s.caseID,
		Jurisdiction:   "US",
		Type:           "civil",
		Priority:       "normal",
		Classification: "confidential",
	}

	d := s.router.RouteCase(context.Background(), c, s.requester("EU"))

	s.Contains(d.RequiredApprovals, ApprovalSeniorLegalOfficer)
	s.Contains(d.Restrictions, RestrictionViewOnly)
}

func (s *RouterSuite) TestAuditFailureDoesNotAffectDecision() {
	s.auditor.err = errors.New("audit sink down")
	s.permissions.Grant(s.userID, "US")

	d := s.router.RouteCase(context.Background(), s.caseRef("IN"), s.requester("US"))
	s.Equal(OutcomeApproved, d.Decision)
}

func (s *RouterSuite) TestResidencyComplianceIsIdempotent() {
	src, _ := s.router.registry.Rule("IN")
	tgt, _ := s.router.registry.Rule("US")

	first := s.router.CheckDataResidencyCompliance(src, tgt)
	for i := 0; i < 10; i++ {
		s.Equal(first, s.router.CheckDataResidencyCompliance(src, tgt))
	}
	s.True(first)
}

func (s *RouterSuite) TestResidencyComplianceNeedsRegionOverlap() {
	src := ResidencyRule{AllowedRegions: []string{"eu-central-1"}}
	tgt := ResidencyRule{AllowedRegions: []string{"ap-south-1"}}
	s.False(s.router.CheckDataResidencyCompliance(src, tgt))

	tgt.AllowedRegions = []string{"*"}
	s.True(s.router.CheckDataResidencyCompliance(src, tgt))
}

func (s *RouterSuite) TestResidencyComplianceNeedsAllTargetConditions() {
	src := ResidencyRule{AllowedRegions: []string{"*"}}
	tgt := ResidencyRule{
		AllowedRegions:     []string{"*"},
		TransferConditions: []string{"DATA_PROCESSING_AGREEMENT", "UNCERTIFIED_CONDITION"},
	}
	s.False(s.router.CheckDataResidencyCompliance(src, tgt))
}

func (s *RouterSuite) TestNewRouterPanicsOnNilDependencies() {
	s.Panics(func() {
		NewRouter(nil, s.permissions, s.grants, s.evidence, s.stats, s.auditor)
	})
	s.Panics(func() {
		NewRouter(NewRegistry(), s.permissions, s.grants, s.evidence, s.stats, nil)
	})
}
