package casefile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"custodia/internal/audit"
	"custodia/internal/jurisdiction"
	"custodia/internal/platform/metrics"
	"custodia/internal/policy"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Authorizer produces an allow/deny decision for one request. Satisfied by
// *policy.Engine.
type Authorizer interface {
	Evaluate(ctx context.Context, user policy.User, resource policy.Resource, action string, env policy.Environment) *policy.Result
}

// CaseRouter decides cross-jurisdiction access. Satisfied by
// *jurisdiction.Router.
type CaseRouter interface {
	RouteCase(ctx context.Context, c jurisdiction.CaseRef, user jurisdiction.Requester) *jurisdiction.RoutingDecision
}

// AuditPublisher receives case lifecycle audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service coordinates case and evidence operations. Every operation is
// authorized through the policy engine first; reads that cross a jurisdiction
// boundary additionally go through the router.
type Service struct {
	store      Store
	authorizer Authorizer
	router     CaseRouter
	auditor    AuditPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	clock      func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for the service.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithServiceMetrics sets the metrics collector for the service.
func WithServiceMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithServiceClock overrides the time source for deterministic testing.
func WithServiceClock(clock func() time.Time) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

// NewService creates a case service with required dependencies.
// Panics if any required dependency is nil - fail fast at startup.
func NewService(store Store, authorizer Authorizer, router CaseRouter, auditor AuditPublisher, opts ...ServiceOption) *Service {
	if store == nil {
		panic("casefile.NewService: store is required")
	}
	if authorizer == nil {
		panic("casefile.NewService: authorizer is required")
	}
	if router == nil {
		panic("casefile.NewService: router is required")
	}
	if auditor == nil {
		panic("casefile.NewService: auditor is required for compliance audit trail")
	}
	s := &Service{
		store:      store,
		authorizer: authorizer,
		router:     router,
		auditor:    auditor,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCase validates, authorizes, and persists a new case.
func (s *Service) CreateCase(ctx context.Context, actor Actor, req CreateCaseRequest, env policy.Environment) (*Case, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resource := policy.Resource{
		Type:         "case",
		Sensitivity:  req.Classification,
		Jurisdiction: req.Jurisdiction,
		CaseType:     req.Type,
	}
	if err := s.authorize(ctx, actor, resource, "create", env); err != nil {
		return nil, err
	}

	now := s.clock()
	c := &Case{
		ID:             id.NewCaseID(),
		Title:          req.Title,
		Type:           req.Type,
		Priority:       req.Priority,
		Classification: req.Classification,
		Jurisdiction:   req.Jurisdiction,
		Status:         StatusOpen,
		OwnerID:        actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.InsertCase(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create case")
	}

	if s.metrics != nil {
		s.metrics.CasesCreated.Inc()
	}
	s.emit(ctx, audit.Event{
		Timestamp:    now,
		ActorID:      actor.ID.String(),
		CaseID:       c.ID.String(),
		Action:       string(audit.EventCaseCreated),
		Jurisdiction: c.Jurisdiction,
	})
	return c, nil
}

// GetCase returns a case together with its routing decision. Access is
// authorized by the policy engine; a requester outside the case's
// jurisdiction must additionally pass cross-jurisdiction routing, and the
// routing decision is attached to the view.
func (s *Service) GetCase(ctx context.Context, actor Actor, caseID id.CaseID, env policy.Environment) (*CaseView, error) {
	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, actor, caseResource(c), "read", env); err != nil {
		return nil, err
	}

	routing, err := s.routeIfCrossBorder(ctx, c, actor)
	if err != nil {
		return nil, err
	}
	return &CaseView{Case: c, Routing: routing}, nil
}

// UpdateCaseRequest carries the mutable case fields. Empty fields are left
// unchanged.
type UpdateCaseRequest struct {
	Title          string
	Type           string
	Priority       string
	Classification string
	Status         CaseStatus
}

// UpdateCase applies the non-empty fields of req to the case. Updates are
// restricted to the case's own jurisdiction; cross-border access is read
// only, mediated by routing restrictions.
func (s *Service) UpdateCase(ctx context.Context, actor Actor, caseID id.CaseID, req UpdateCaseRequest, env policy.Environment) (*Case, error) {
	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, actor, caseResource(c), "update", env); err != nil {
		return nil, err
	}
	if actor.Jurisdiction != c.Jurisdiction {
		return nil, dErrors.New(dErrors.CodeForbidden, "cross-jurisdiction case updates are not permitted")
	}

	if req.Title != "" {
		c.Title = req.Title
	}
	if req.Type != "" {
		c.Type = req.Type
	}
	if req.Priority != "" {
		c.Priority = req.Priority
	}
	if req.Classification != "" {
		c.Classification = req.Classification
	}
	if req.Status != "" {
		c.Status = req.Status
	}
	c.UpdatedAt = s.clock()

	if err := s.store.UpdateCase(ctx, c); err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Timestamp:    c.UpdatedAt,
		ActorID:      actor.ID.String(),
		CaseID:       c.ID.String(),
		Action:       string(audit.EventCaseUpdated),
		Jurisdiction: c.Jurisdiction,
	})
	return c, nil
}

// ListCases returns cases visible to the actor. With no explicit filter the
// listing is scoped to the actor's own jurisdiction; listing another
// jurisdiction's cases requires the policy engine to allow it.
func (s *Service) ListCases(ctx context.Context, actor Actor, jurisdictionFilter string, env policy.Environment) ([]*Case, error) {
	if jurisdictionFilter == "" {
		jurisdictionFilter = actor.Jurisdiction
	}

	resource := policy.Resource{Type: "case", Jurisdiction: jurisdictionFilter}
	if err := s.authorize(ctx, actor, resource, "list", env); err != nil {
		return nil, err
	}

	cases, err := s.store.ListCases(ctx, jurisdictionFilter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list cases")
	}
	return cases, nil
}

// AddEvidence attaches a new evidence item to a case. Cross-jurisdiction
// requesters must pass routing, and a VIEW_ONLY_ACCESS restriction blocks the
// write.
func (s *Service) AddEvidence(ctx context.Context, actor Actor, caseID id.CaseID, req AddEvidenceRequest, env policy.Environment) (*Evidence, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	resource := policy.Resource{
		Type:         "evidence",
		Sensitivity:  req.Classification,
		Jurisdiction: c.Jurisdiction,
		CaseType:     c.Type,
	}
	if err := s.authorize(ctx, actor, resource, "create", env); err != nil {
		return nil, err
	}

	routing, err := s.routeIfCrossBorder(ctx, c, actor)
	if err != nil {
		return nil, err
	}
	if routing != nil && hasRestriction(routing.Restrictions, jurisdiction.RestrictionViewOnly) {
		return nil, dErrors.New(dErrors.CodeComplianceBlocked, "cross-jurisdiction access is view-only for this case")
	}

	e := &Evidence{
		ID:             id.NewEvidenceID(),
		CaseID:         c.ID,
		Title:          req.Title,
		Kind:           req.Kind,
		Classification: req.Classification,
		StorageRegion:  req.StorageRegion,
		Hash:           req.Hash,
		AddedBy:        actor.ID,
		CreatedAt:      s.clock(),
	}
	if err := s.store.InsertEvidence(ctx, e); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.EvidenceAdded.Inc()
	}
	s.emit(ctx, audit.Event{
		Timestamp:    e.CreatedAt,
		ActorID:      actor.ID.String(),
		CaseID:       c.ID.String(),
		EvidenceID:   e.ID.String(),
		Action:       string(audit.EventEvidenceAdded),
		Jurisdiction: c.Jurisdiction,
	})
	return e, nil
}

// ListEvidence returns a case's evidence, subject to the same authorization
// and routing checks as reading the case itself.
func (s *Service) ListEvidence(ctx context.Context, actor Actor, caseID id.CaseID, env policy.Environment) ([]*Evidence, error) {
	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	resource := policy.Resource{
		Type:         "evidence",
		Jurisdiction: c.Jurisdiction,
		CaseType:     c.Type,
	}
	if err := s.authorize(ctx, actor, resource, "read", env); err != nil {
		return nil, err
	}
	if _, err := s.routeIfCrossBorder(ctx, c, actor); err != nil {
		return nil, err
	}

	items, err := s.store.ListEvidence(ctx, caseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list evidence")
	}
	return items, nil
}

// authorize runs the policy engine and converts a deny into a forbidden
// domain error carrying the engine's reason.
func (s *Service) authorize(ctx context.Context, actor Actor, resource policy.Resource, action string, env policy.Environment) error {
	result := s.authorizer.Evaluate(ctx, policy.User{
		ID:             actor.ID.String(),
		Role:           actor.Role,
		Department:     actor.Department,
		Jurisdiction:   actor.Jurisdiction,
		ClearanceLevel: actor.ClearanceLevel,
	}, resource, action, env)
	if !result.Allowed {
		return dErrors.New(dErrors.CodePolicyViolation, result.Reason)
	}
	return nil
}

// routeIfCrossBorder runs the router when the actor's jurisdiction differs
// from the case's. A DENIED routing decision is returned as a
// compliance-blocked error; any other outcome is attached to the response.
func (s *Service) routeIfCrossBorder(ctx context.Context, c *Case, actor Actor) (*jurisdiction.RoutingDecision, error) {
	if actor.Jurisdiction == c.Jurisdiction {
		return nil, nil
	}
	decision := s.router.RouteCase(ctx, c.Ref(), jurisdiction.Requester{
		ID:           actor.ID,
		Role:         actor.Role,
		Jurisdiction: actor.Jurisdiction,
	})
	if decision.Decision == jurisdiction.OutcomeDenied {
		reason := decision.Reason
		if reason == "" {
			reason = "cross-jurisdiction access denied"
		}
		return nil, dErrors.New(dErrors.CodeComplianceBlocked, reason)
	}
	return decision, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if err := s.auditor.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit case audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

func caseResource(c *Case) policy.Resource {
	return policy.Resource{
		ID:           c.ID.String(),
		Type:         "case",
		Sensitivity:  c.Classification,
		Jurisdiction: c.Jurisdiction,
		CaseType:     c.Type,
	}
}

func hasRestriction(restrictions []string, want string) bool {
	for _, r := range restrictions {
		if r == want {
			return true
		}
	}
	return false
}

// EvidenceBridge adapts the case store to the router's evidence lookup.
type EvidenceBridge struct {
	store Store
}

// NewEvidenceBridge wraps store for use as the router's evidence source.
func NewEvidenceBridge(store Store) *EvidenceBridge {
	return &EvidenceBridge{store: store}
}

// FetchEvidenceWithCase loads an evidence record joined with its parent case.
// A missing record maps to (nil, nil) so the router can produce its own
// not-found error.
func (b *EvidenceBridge) FetchEvidenceWithCase(ctx context.Context, evidenceID id.EvidenceID) (*jurisdiction.EvidenceRecord, error) {
	e, err := b.store.GetEvidence(ctx, evidenceID)
	if err != nil {
		if errors.Is(err, ErrEvidenceNotFound) {
			return nil, nil
		}
		return nil, err
	}
	c, err := b.store.GetCase(ctx, e.CaseID)
	if err != nil {
		return nil, err
	}
	return &jurisdiction.EvidenceRecord{
		ID:             e.ID,
		CaseID:         e.CaseID,
		Classification: e.Classification,
		StorageRegion:  e.StorageRegion,
		Case:           c.Ref(),
	}, nil
}
