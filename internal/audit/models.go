package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp    time.Time
	ActorID      string
	CaseID       string
	EvidenceID   string
	Action       string
	Jurisdiction string
	Decision     string
	Reason       string
	RequestID    string
}

type AuditEvent string

const (
	EventUserRegistered AuditEvent = "user_registered"
	EventCaseCreated    AuditEvent = "case_created"
	EventCaseUpdated    AuditEvent = "case_updated"
	EventEvidenceAdded  AuditEvent = "evidence_added"
	EventPolicyDecision AuditEvent = "policy_decision"
	EventCaseRouted     AuditEvent = "case_routed"
	EventGrantIssued    AuditEvent = "grant_issued"
	EventGrantRevoked   AuditEvent = "grant_revoked"
	EventExportChecked  AuditEvent = "export_checked"
	EventBundleExported AuditEvent = "bundle_exported"
)
