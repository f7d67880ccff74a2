package jurisdiction

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"custodia/internal/audit"
	"custodia/internal/platform/metrics"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// AuditPublisher receives routing and grant audit events. Emission is
// best-effort: a failure is logged and never affects the returned decision.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Router decides whether a cross-jurisdiction request may proceed and under
// which approvals and restrictions. Each call is independent; the router
// holds no cross-request mutable state beyond the injected reference
// registry and stores.
type Router struct {
	registry    *Registry
	permissions PermissionStore
	grants      GrantStore
	evidence    EvidenceStore
	stats       StatsStore
	auditor     AuditPublisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
	grantTTL    time.Duration
	clock       func() time.Time
}

// RouterOption configures the Router.
type RouterOption func(*Router)

// WithRouterLogger sets the logger for the router.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// WithRouterMetrics sets the metrics collector for the router.
func WithRouterMetrics(m *metrics.Metrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// WithGrantTTL overrides the default 30-day grant lifetime.
func WithGrantTTL(ttl time.Duration) RouterOption {
	return func(r *Router) { r.grantTTL = ttl }
}

// WithRouterClock overrides the time source for deterministic testing.
func WithRouterClock(clock func() time.Time) RouterOption {
	return func(r *Router) { r.clock = clock }
}

// NewRouter creates a router with required dependencies.
// Panics if any required dependency is nil - fail fast at startup. The
// auditor is required for the regulatory audit trail even though emission
// itself is best-effort.
func NewRouter(
	registry *Registry,
	permissions PermissionStore,
	grants GrantStore,
	evidence EvidenceStore,
	stats StatsStore,
	auditor AuditPublisher,
	opts ...RouterOption,
) *Router {
	if registry == nil {
		panic("jurisdiction.NewRouter: registry is required")
	}
	if permissions == nil {
		panic("jurisdiction.NewRouter: permission store is required")
	}
	if grants == nil {
		panic("jurisdiction.NewRouter: grant store is required")
	}
	if evidence == nil {
		panic("jurisdiction.NewRouter: evidence store is required")
	}
	if stats == nil {
		panic("jurisdiction.NewRouter: stats store is required")
	}
	if auditor == nil {
		panic("jurisdiction.NewRouter: auditor is required for compliance audit trail")
	}

	r := &Router{
		registry:    registry,
		permissions: permissions,
		grants:      grants,
		evidence:    evidence,
		stats:       stats,
		auditor:     auditor,
		tracer:      otel.Tracer("custodia/jurisdiction"),
		grantTTL:    30 * 24 * time.Hour,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RouteCase produces the routing decision for a user requesting a case.
//
// Same-jurisdiction access is always DIRECT_ACCESS and COMPLIANT with no
// further checks; finer-grained authorization is the policy engine's job.
// Cross-jurisdiction requests go through the full evaluation and the
// decision is persisted as an audit record (best-effort).
func (r *Router) RouteCase(ctx context.Context, c CaseRef, user Requester) *RoutingDecision {
	ctx, span := r.tracer.Start(ctx, "jurisdiction.RouteCase",
		trace.WithAttributes(
			attribute.String("case.jurisdiction", c.Jurisdiction),
			attribute.String("user.jurisdiction", user.Jurisdiction),
		))
	defer span.End()

	start := r.clock()
	var decision *RoutingDecision
	defer func() {
		r.metrics.ObserveRouting(string(decision.Decision), time.Since(start))
	}()

	if user.Jurisdiction == c.Jurisdiction {
		decision = &RoutingDecision{
			CaseID:             c.ID,
			RequestingUser:     user.ID,
			SourceJurisdiction: c.Jurisdiction,
			TargetJurisdiction: user.Jurisdiction,
			Decision:           OutcomeDirectAccess,
			Compliance:         Compliant,
			RequiredApprovals:  []string{},
			Restrictions:       []string{},
			Timestamp:          start,
		}
		return decision
	}

	decision = r.evaluateCrossBorder(ctx, c, user, start)
	span.SetAttributes(attribute.String("routing.decision", string(decision.Decision)))
	r.emitRoutingAudit(ctx, decision)
	return decision
}

// evaluateCrossBorder walks the terminal-state machine for a request whose
// source (case) and target (user) jurisdictions differ.
func (r *Router) evaluateCrossBorder(ctx context.Context, c CaseRef, user Requester, now time.Time) *RoutingDecision {
	source, target := c.Jurisdiction, user.Jurisdiction
	d := &RoutingDecision{
		CaseID:             c.ID,
		RequestingUser:     user.ID,
		SourceJurisdiction: source,
		TargetJurisdiction: target,
		RequiredApprovals:  []string{},
		Restrictions:       []string{},
		Timestamp:          now,
	}

	srcRule, srcKnown := r.registry.Rule(source)
	tgtRule, tgtKnown := r.registry.Rule(target)
	if !srcKnown || !tgtKnown {
		d.Decision = OutcomeDenied
		d.Compliance = NonCompliant
		d.Reason = "Unknown jurisdiction rules"
		return d
	}

	// The target jurisdiction must accept inbound cross-border data at all.
	if !tgtRule.CrossBorderTransfer {
		d.Decision = OutcomeDenied
		d.Compliance = NonCompliant
		d.Reason = "Target jurisdiction prohibits cross-border transfer"
		d.RequiredApprovals = []string{ApprovalCourtOrder, ApprovalDataProtectionAuthority}
		return d
	}

	// An explicit, active permission grant is a hard precondition. A store
	// failure is treated as "permission not found": the decision cannot be
	// soundly made without the lookup, and absence fails closed.
	hasPermission, err := r.permissions.FindActivePermission(ctx, user.ID, target)
	if err != nil {
		if r.logger != nil {
			r.logger.WarnContext(ctx, "permission lookup failed, treating as not found",
				"user_id", user.ID,
				"jurisdiction", target,
				"error", err,
			)
		}
		hasPermission = false
	}
	if !hasPermission {
		d.Decision = OutcomeDenied
		d.Compliance = NonCompliant
		d.Reason = "No active cross-jurisdiction permission"
		d.RequiredApprovals = []string{ApprovalAdmin}
		return d
	}

	// Sensitivity findings are additive regardless of the compliance branch.
	approvals, restrictions := r.evaluateSensitivity(c, source, target)

	if r.CheckDataResidencyCompliance(srcRule, tgtRule) {
		d.Decision = OutcomeApproved
		d.Compliance = Compliant
	} else {
		d.Decision = OutcomeConditional
		d.Compliance = RequiresReview
		approvals = append(approvals, ApprovalComplianceOfficer)
	}

	d.RequiredApprovals = approvals
	d.Restrictions = restrictions
	return d
}

// evaluateSensitivity is a pure function of the case and jurisdiction pair.
func (r *Router) evaluateSensitivity(c CaseRef, source, target string) (approvals, restrictions []string) {
	approvals = []string{}
	restrictions = []string{}

	if c.Priority == "critical" || c.Classification == "confidential" {
		approvals = append(approvals, ApprovalSeniorLegalOfficer)
		restrictions = append(restrictions, RestrictionViewOnly)
	}
	if c.Type == "criminal" {
		approvals = append(approvals, ApprovalLawEnforcementLiaison)
	}
	if r.registry.Restricted(source, target) {
		approvals = append(approvals, ApprovalInternationalCounsel)
		restrictions = append(restrictions, RestrictionAuditAllAccess)
	}
	return approvals, restrictions
}

// CheckDataResidencyCompliance reports whether a transfer between the two
// rules is residency-compliant: the storage region sets must intersect (a
// "*" on either side matches anything) and every one of the target's
// transfer conditions must be independently satisfied. Pure function of its
// inputs plus the immutable condition table - identical inputs always yield
// identical output.
func (r *Router) CheckDataResidencyCompliance(src, tgt ResidencyRule) bool {
	if !regionsIntersect(src.AllowedRegions, tgt.AllowedRegions) {
		return false
	}
	for _, condition := range tgt.TransferConditions {
		if !r.registry.ConditionSatisfied(condition) {
			return false
		}
	}
	return true
}

func regionsIntersect(a, b []string) bool {
	for _, region := range a {
		if region == "*" {
			return true
		}
	}
	for _, region := range b {
		if region == "*" {
			return true
		}
	}
	for _, ra := range a {
		for _, rb := range b {
			if ra == rb {
				return true
			}
		}
	}
	return false
}

// GrantAccess constructs and persists a new active cross-jurisdiction grant.
// Expiry defaults to the configured grant TTL (30 days) unless the
// conditions map carries an RFC 3339 "expiryDate" override.
func (r *Router) GrantAccess(ctx context.Context, caseID id.CaseID, targetJurisdiction string, grantedBy id.UserID, conditions map[string]any) (*AccessGrant, error) {
	if _, ok := r.registry.Get(targetJurisdiction); !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown target jurisdiction")
	}

	now := r.clock()
	expires := now.Add(r.grantTTL)
	if raw, ok := conditions["expiryDate"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			expires = t
		}
	}

	grant := &AccessGrant{
		ID:                 id.NewGrantID(),
		CaseID:             caseID,
		TargetJurisdiction: targetJurisdiction,
		GrantedBy:          grantedBy,
		GrantedAt:          now,
		Conditions:         conditions,
		ExpiresAt:          expires,
		Active:             true,
	}

	if err := r.grants.Insert(ctx, grant); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "grant cross-jurisdiction access")
	}

	if r.metrics != nil {
		r.metrics.GrantsIssued.Inc()
	}
	r.emitGrantAudit(ctx, grant, string(audit.EventGrantIssued), grantedBy.String(), "")
	return grant, nil
}

// RevokeAccess marks the grant inactive and stamps revocation metadata. The
// grant record is never deleted; a revoked grant is never re-activated.
func (r *Router) RevokeAccess(ctx context.Context, grantID id.GrantID, revokedBy id.UserID, reason string) error {
	if err := r.grants.Revoke(ctx, grantID, revokedBy.String(), reason); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke cross-jurisdiction access")
	}

	if r.metrics != nil {
		r.metrics.GrantsRevoked.Inc()
	}
	grant, err := r.grants.Get(ctx, grantID)
	if err == nil {
		r.emitGrantAudit(ctx, grant, string(audit.EventGrantRevoked), revokedBy.String(), reason)
	}
	return nil
}

// CheckEvidenceExportCompliance evaluates whether an evidence item may be
// exported to the target jurisdiction. Unlike the permission lookup, a
// failed evidence fetch propagates as an error: the check cannot be soundly
// made without the record.
func (r *Router) CheckEvidenceExportCompliance(ctx context.Context, evidenceID id.EvidenceID, targetJurisdiction, exportType string) (*ExportCompliance, error) {
	record, err := r.evidence.FetchEvidenceWithCase(ctx, evidenceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check evidence export compliance")
	}
	if record == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "evidence not found")
	}

	result := &ExportCompliance{
		EvidenceID:         evidenceID,
		TargetJurisdiction: targetJurisdiction,
		ExportType:         exportType,
		Requirements:       []string{},
		Restrictions:       []string{},
		CheckedAt:          r.clock(),
	}

	sourceJurisdiction := record.Case.Jurisdiction
	if rule, ok := r.registry.Rule(sourceJurisdiction); ok && !rule.CrossBorderTransfer {
		result.Allowed = false
		result.Reason = "Source jurisdiction prohibits cross-border transfer"
		result.Requirements = []string{ApprovalCourtOrder}
		r.recordExportCheck(ctx, result)
		return result, nil
	}

	result.Allowed = true
	classification := record.Classification
	if classification == "" {
		classification = record.Case.Classification
	}
	if classification == "restricted" || classification == "confidential" {
		result.Restrictions = append(result.Restrictions, RequirementRedaction, RequirementSeniorApproval)
	}
	if exportType == "FULL_EXPORT" && sourceJurisdiction == "IN" {
		result.Restrictions = append(result.Restrictions, RequirementMetadataOnly, RequirementDataLocalization)
	}

	r.recordExportCheck(ctx, result)
	return result, nil
}

func (r *Router) recordExportCheck(ctx context.Context, result *ExportCompliance) {
	if r.metrics != nil {
		allowed := "false"
		if result.Allowed {
			allowed = "true"
		}
		r.metrics.ExportChecks.WithLabelValues(allowed).Inc()
	}
	event := audit.Event{
		Timestamp:    result.CheckedAt,
		Action:       string(audit.EventExportChecked),
		EvidenceID:   result.EvidenceID.String(),
		Jurisdiction: result.TargetJurisdiction,
		Decision:     exportDecisionLabel(result.Allowed),
		Reason:       result.Reason,
	}
	if err := r.auditor.Emit(ctx, event); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "failed to emit export audit event", "error", err)
	}
}

func exportDecisionLabel(allowed bool) string {
	if allowed {
		return "ALLOWED"
	}
	return "DENIED"
}

// emitRoutingAudit persists the routing decision as a write-once audit
// record. Best-effort: the decision has already been computed and a logging
// failure must not affect it.
func (r *Router) emitRoutingAudit(ctx context.Context, d *RoutingDecision) {
	event := audit.Event{
		Timestamp:    d.Timestamp,
		ActorID:      d.RequestingUser.String(),
		CaseID:       d.CaseID.String(),
		Action:       string(audit.EventCaseRouted),
		Jurisdiction: d.TargetJurisdiction,
		Decision:     string(d.Decision),
		Reason:       d.Reason,
	}
	if err := r.auditor.Emit(ctx, event); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "failed to emit routing audit event",
			"case_id", d.CaseID,
			"error", err,
		)
	}
}

func (r *Router) emitGrantAudit(ctx context.Context, grant *AccessGrant, action, actor, reason string) {
	event := audit.Event{
		Timestamp:    r.clock(),
		ActorID:      actor,
		CaseID:       grant.CaseID.String(),
		Action:       action,
		Jurisdiction: grant.TargetJurisdiction,
		Reason:       reason,
	}
	if err := r.auditor.Emit(ctx, event); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "failed to emit grant audit event",
			"grant_id", grant.ID,
			"error", err,
		)
	}
}
