// Package jurisdiction implements cross-border access routing: static
// jurisdiction and data-residency reference data, the routing decision
// engine, time-bounded access grants, evidence export compliance checks, and
// per-jurisdiction compliance reporting.
package jurisdiction

import (
	"time"

	id "custodia/pkg/domain"
)

// ResidencyTier classifies how strictly a jurisdiction pins data to its own
// storage regions.
type ResidencyTier string

const (
	ResidencyStrict   ResidencyTier = "STRICT"
	ResidencyModerate ResidencyTier = "MODERATE"
	ResidencyFlexible ResidencyTier = "FLEXIBLE"
)

// Jurisdiction is immutable reference data loaded once at startup.
type Jurisdiction struct {
	Code           string
	Name           string
	LegalRegions   []string
	DataResidency  ResidencyTier
	StorageRegions []string
	Locale         string
}

// ResidencyRule describes a jurisdiction's data-residency constraints.
// AllowedRegions may contain "*" meaning any region. TransferConditions are
// required when CrossBorderTransfer is true; every condition must be
// independently satisfied before a transfer is residency-compliant.
type ResidencyRule struct {
	AllowedRegions        []string
	CrossBorderTransfer   bool
	TransferConditions    []string
	ComplianceRequirement string
}

// Outcome enumerates the terminal states of a routing evaluation.
type Outcome string

const (
	OutcomeDirectAccess Outcome = "DIRECT_ACCESS"
	OutcomeApproved     Outcome = "APPROVED"
	OutcomeConditional  Outcome = "CONDITIONAL"
	OutcomeDenied       Outcome = "DENIED"
)

// Compliance enumerates data-residency compliance states.
type Compliance string

const (
	Compliant      Compliance = "COMPLIANT"
	NonCompliant   Compliance = "NON_COMPLIANT"
	RequiresReview Compliance = "REQUIRES_REVIEW"
)

// Approval-role and restriction tokens accumulated during evaluation.
const (
	ApprovalCourtOrder              = "COURT_ORDER"
	ApprovalDataProtectionAuthority = "DATA_PROTECTION_AUTHORITY"
	ApprovalAdmin                   = "ADMIN_APPROVAL"
	ApprovalSeniorLegalOfficer      = "SENIOR_LEGAL_OFFICER"
	ApprovalLawEnforcementLiaison   = "LAW_ENFORCEMENT_LIAISON"
	ApprovalInternationalCounsel    = "INTERNATIONAL_LEGAL_COUNSEL"
	ApprovalComplianceOfficer       = "COMPLIANCE_OFFICER"

	RestrictionViewOnly       = "VIEW_ONLY_ACCESS"
	RestrictionAuditAllAccess = "AUDIT_ALL_ACCESS"

	RequirementRedaction        = "REDACTION_REQUIRED"
	RequirementSeniorApproval   = "SENIOR_APPROVAL"
	RequirementMetadataOnly     = "METADATA_ONLY"
	RequirementDataLocalization = "DATA_LOCALIZATION_COMPLIANCE"
)

// CaseRef carries the case fields the router needs.
type CaseRef struct {
	ID             id.CaseID
	Jurisdiction   string
	Type           string
	Priority       string
	Classification string
}

// Requester carries the requesting user's fields the router needs.
type Requester struct {
	ID           id.UserID
	Role         string
	Jurisdiction string
}

// RoutingDecision is the result of one cross-jurisdiction evaluation. It is
// created per request and persisted write-once as an audit record.
type RoutingDecision struct {
	CaseID             id.CaseID  `json:"caseId"`
	RequestingUser     id.UserID  `json:"requestingUser"`
	SourceJurisdiction string     `json:"sourceJurisdiction"`
	TargetJurisdiction string     `json:"targetJurisdiction"`
	Decision           Outcome    `json:"routingDecision"`
	Compliance         Compliance `json:"dataResidencyCompliance"`
	RequiredApprovals  []string   `json:"requiredApprovals"`
	Restrictions       []string   `json:"restrictions"`
	Reason             string     `json:"reason,omitempty"`
	Timestamp          time.Time  `json:"timestamp"`
}

// AccessGrant is a time-bounded authorization for cross-jurisdiction access.
// Grants form an immutable audit trail: revocation marks them inactive and
// stamps metadata, nothing ever deletes or re-activates them.
type AccessGrant struct {
	ID                 id.GrantID     `json:"id"`
	CaseID             id.CaseID      `json:"case_id"`
	TargetJurisdiction string         `json:"target_jurisdiction"`
	GrantedBy          id.UserID      `json:"granted_by"`
	GrantedAt          time.Time      `json:"granted_at"`
	Conditions         map[string]any `json:"conditions,omitempty"`
	ExpiresAt          time.Time      `json:"expires_at"`
	Active             bool           `json:"is_active"`
	RevokedBy          string         `json:"revoked_by,omitempty"`
	RevokedAt          *time.Time     `json:"revoked_at,omitempty"`
	RevocationReason   string         `json:"revocation_reason,omitempty"`
}

// Expired reports whether the grant's expiry has passed at the given time.
func (g *AccessGrant) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}

// ExportCompliance is the result of an evidence export compliance check.
type ExportCompliance struct {
	EvidenceID         id.EvidenceID `json:"evidenceId"`
	TargetJurisdiction string        `json:"targetJurisdiction"`
	ExportType         string        `json:"exportType"`
	Allowed            bool          `json:"allowed"`
	Requirements       []string      `json:"requirements"`
	Restrictions       []string      `json:"restrictions"`
	Reason             string        `json:"reason,omitempty"`
	CheckedAt          time.Time     `json:"checkedAt"`
}

// EvidenceRecord is the evidence-with-parent-case projection the export
// check reads from the persistence collaborator.
type EvidenceRecord struct {
	ID             id.EvidenceID
	CaseID         id.CaseID
	Classification string
	StorageRegion  string
	Case           CaseRef
}

// TimeRange bounds statistics aggregation for compliance reports.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// RoutingStats aggregates routing decisions over a time range.
type RoutingStats struct {
	Total        int
	DirectAccess int
	Approved     int
	Conditional  int
	Denied       int
}

// GrantStats aggregates grant lifecycle counts over a time range.
type GrantStats struct {
	Issued  int
	Active  int
	Revoked int
	Expired int
}

// RecommendationPriority ranks compliance report recommendations.
type RecommendationPriority string

const (
	PriorityHigh   RecommendationPriority = "HIGH"
	PriorityMedium RecommendationPriority = "MEDIUM"
)

// Recommendation is a ranked compliance follow-up.
type Recommendation struct {
	Priority RecommendationPriority `json:"priority"`
	Message  string                 `json:"message"`
}

// Report summarizes a jurisdiction's recent cross-border activity with a
// derived 0-100 compliance score.
type Report struct {
	Jurisdiction    string           `json:"jurisdiction"`
	Window          TimeRange        `json:"window"`
	Routing         RoutingStats     `json:"routing"`
	Grants          GrantStats       `json:"grants"`
	Violations      int              `json:"violations"`
	ComplianceScore float64          `json:"complianceScore"`
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generatedAt"`
}
