package casefile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/internal/audit"
	"custodia/internal/jurisdiction"
	"custodia/internal/policy"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

type stubAuthorizer struct {
	result *policy.Result
	calls  int
}

func (s *stubAuthorizer) Evaluate(_ context.Context, _ policy.User, _ policy.Resource, _ string, _ policy.Environment) *policy.Result {
	s.calls++
	return s.result
}

type stubRouter struct {
	decision *jurisdiction.RoutingDecision
	calls    int
}

func (s *stubRouter) RouteCase(_ context.Context, _ jurisdiction.CaseRef, _ jurisdiction.Requester) *jurisdiction.RoutingDecision {
	s.calls++
	return s.decision
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAuditor) Emit(_ context.Context, event audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type CaseServiceSuite struct {
	suite.Suite
	service    *Service
	store      *InMemoryStore
	authorizer *stubAuthorizer
	router     *stubRouter
	auditor    *recordingAuditor
	now        time.Time
	actor      Actor
}

func TestCaseServiceSuite(t *testing.T) {
	suite.Run(t, new(CaseServiceSuite))
}

func (s *CaseServiceSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.store = NewInMemoryStore()
	s.authorizer = &stubAuthorizer{result: &policy.Result{Allowed: true}}
	s.router = &stubRouter{decision: &jurisdiction.RoutingDecision{Decision: jurisdiction.OutcomeApproved}}
	s.auditor = &recordingAuditor{}

	s.service = NewService(s.store, s.authorizer, s.router, s.auditor,
		WithServiceClock(func() time.Time { return s.now }),
	)

	s.actor = Actor{
		ID:           id.NewUserID(),
		Role:         "investigator",
		Jurisdiction: "EU",
	}
}

func (s *CaseServiceSuite) createCase(jurisdiction string) *Case {
	c, err := s.service.CreateCase(context.Background(), s.actor, CreateCaseRequest{
		Title:        "Fraud inquiry",
		Type:         "financial",
		Priority:     "normal",
		Jurisdiction: jurisdiction,
	}, policy.Environment{})
	s.Require().NoError(err)
	return c
}

func (s *CaseServiceSuite) TestCreateCasePersistsAndAudits() {
	c := s.createCase("EU")

	s.Equal(StatusOpen, c.Status)
	s.Equal(s.actor.ID, c.OwnerID)
	s.Equal(s.now, c.CreatedAt)

	stored, err := s.store.GetCase(context.Background(), c.ID)
	s.Require().NoError(err)
	s.Equal("Fraud inquiry", stored.Title)

	s.Require().Len(s.auditor.events, 1)
	s.Equal(string(audit.EventCaseCreated), s.auditor.events[0].Action)
}

func (s *CaseServiceSuite) TestCreateCaseValidates() {
	_, err := s.service.CreateCase(context.Background(), s.actor, CreateCaseRequest{Jurisdiction: "EU"}, policy.Environment{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.CreateCase(context.Background(), s.actor, CreateCaseRequest{Title: "t"}, policy.Environment{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *CaseServiceSuite) TestPolicyDenyBlocksWithReason() {
	s.authorizer.result = &policy.Result{Allowed: false, Reason: "Access outside allowed hours 8-18"}

	_, err := s.service.CreateCase(context.Background(), s.actor, CreateCaseRequest{
		Title:        "t",
		Jurisdiction: "EU",
	}, policy.Environment{})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePolicyViolation))
	s.Contains(err.Error(), "8-18")
}

func (s *CaseServiceSuite) TestGetCaseSameJurisdictionSkipsRouting() {
	c := s.createCase("EU")

	view, err := s.service.GetCase(context.Background(), s.actor, c.ID, policy.Environment{})
	s.Require().NoError(err)

	s.Nil(view.Routing)
	s.Equal(0, s.router.calls)
}

func (s *CaseServiceSuite) TestGetCaseCrossJurisdictionAttachesRouting() {
	c := s.createCase("US")

	view, err := s.service.GetCase(context.Background(), s.actor, c.ID, policy.Environment{})
	s.Require().NoError(err)

	s.Require().NotNil(view.Routing)
	s.Equal(jurisdiction.OutcomeApproved, view.Routing.Decision)
	s.Equal(1, s.router.calls)
}

func (s *CaseServiceSuite) TestGetCaseDeniedRoutingBlocks() {
	s.router.decision = &jurisdiction.RoutingDecision{
		Decision: jurisdiction.OutcomeDenied,
		Reason:   "No active cross-jurisdiction permission",
	}
	c := s.createCase("US")

	_, err := s.service.GetCase(context.Background(), s.actor, c.ID, policy.Environment{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeComplianceBlocked))
	s.Contains(err.Error(), "permission")
}

func (s *CaseServiceSuite) TestGetCaseUnknownIsNotFound() {
	_, err := s.service.GetCase(context.Background(), s.actor, id.NewCaseID(), policy.Environment{})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CaseServiceSuite) TestUpdateCaseAppliesNonEmptyFields() {
	c := s.createCase("EU")
	s.now = s.now.Add(time.Hour)

	updated, err := s.service.UpdateCase(context.Background(), s.actor, c.ID, UpdateCaseRequest{
		Priority: "critical",
		Status:   StatusActive,
	}, policy.Environment{})
	s.Require().NoError(err)

	s.Equal("Fraud inquiry", updated.Title, "empty fields are left unchanged")
	s.Equal("critical", updated.Priority)
	s.Equal(StatusActive, updated.Status)
	s.Equal(s.now, updated.UpdatedAt)
}

func (s *CaseServiceSuite) TestUpdateCaseCrossJurisdictionForbidden() {
	c := s.createCase("US")

	_, err := s.service.UpdateCase(context.Background(), s.actor, c.ID, UpdateCaseRequest{Priority: "low"}, policy.Environment{})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *CaseServiceSuite) TestAddEvidencePersistsAndAudits() {
	c := s.createCase("EU")

	e, err := s.service.AddEvidence(context.Background(), s.actor, c.ID, AddEvidenceRequest{
		Title: "Server logs",
		Kind:  "digital",
		Hash:  "sha256:abc",
	}, policy.Environment{})
	s.Require().NoError(err)

	s.Equal(c.ID, e.CaseID)
	s.Equal(s.actor.ID, e.AddedBy)

	items, err := s.service.ListEvidence(context.Background(), s.actor, c.ID, policy.Environment{})
	s.Require().NoError(err)
	s.Len(items, 1)

	var actions []string
	for _, ev := range s.auditor.events {
		actions = append(actions, ev.Action)
	}
	s.Contains(actions, string(audit.EventEvidenceAdded))
}

func (s *CaseServiceSuite) TestAddEvidenceViewOnlyRestrictionBlocks() {
	s.router.decision = &jurisdiction.RoutingDecision{
		Decision:     jurisdiction.OutcomeApproved,
		Restrictions: []string{jurisdiction.RestrictionViewOnly},
	}
	c := s.createCase("US")

	_, err := s.service.AddEvidence(context.Background(), s.actor, c.ID, AddEvidenceRequest{
		Title: "Server logs",
		Hash:  "sha256:abc",
	}, policy.Environment{})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeComplianceBlocked))
}

func (s *CaseServiceSuite) TestListCasesDefaultsToActorJurisdiction() {
	s.createCase("EU")
	s.createCase("US")

	cases, err := s.service.ListCases(context.Background(), s.actor, "", policy.Environment{})
	s.Require().NoError(err)
	s.Require().Len(cases, 1)
	s.Equal("EU", cases[0].Jurisdiction)
}

func (s *CaseServiceSuite) TestEvidenceBridgeJoinsCase() {
	c := s.createCase("EU")
	e, err := s.service.AddEvidence(context.Background(), s.actor, c.ID, AddEvidenceRequest{
		Title:          "Ledger",
		Classification: "restricted",
		Hash:           "sha256:def",
	}, policy.Environment{})
	s.Require().NoError(err)

	bridge := NewEvidenceBridge(s.store)
	record, err := bridge.FetchEvidenceWithCase(context.Background(), e.ID)
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Equal("restricted", record.Classification)
	s.Equal("EU", record.Case.Jurisdiction)

	missing, err := bridge.FetchEvidenceWithCase(context.Background(), id.NewEvidenceID())
	s.Require().NoError(err)
	s.Nil(missing, "a missing record maps to nil, not an error")
}
