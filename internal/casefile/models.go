// Package casefile manages case and evidence records. Mutating and reading
// operations consult the policy engine, and reads crossing a jurisdiction
// boundary are mediated by the cross-jurisdiction router.
package casefile

import (
	"time"

	id "custodia/pkg/domain"
	str "custodia/pkg/string"
	"custodia/pkg/validation"

	"custodia/internal/jurisdiction"
)

// CaseStatus tracks a case through its lifecycle.
type CaseStatus string

const (
	StatusOpen     CaseStatus = "open"
	StatusActive   CaseStatus = "active"
	StatusClosed   CaseStatus = "closed"
	StatusArchived CaseStatus = "archived"
)

// Case is an evidence-bearing legal matter anchored to one jurisdiction.
type Case struct {
	ID             id.CaseID  `json:"id"`
	Title          string     `json:"title"`
	Type           string     `json:"type"`
	Priority       string     `json:"priority"`
	Classification string     `json:"classification"`
	Jurisdiction   string     `json:"jurisdiction"`
	Status         CaseStatus `json:"status"`
	OwnerID        id.UserID  `json:"ownerId"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Ref projects the case fields the router needs.
func (c *Case) Ref() jurisdiction.CaseRef {
	return jurisdiction.CaseRef{
		ID:             c.ID,
		Jurisdiction:   c.Jurisdiction,
		Type:           c.Type,
		Priority:       c.Priority,
		Classification: c.Classification,
	}
}

// Evidence is a single item attached to a case. The binary payload lives in
// object storage; the record carries its hash and region only.
type Evidence struct {
	ID             id.EvidenceID `json:"id"`
	CaseID         id.CaseID     `json:"caseId"`
	Title          string        `json:"title"`
	Kind           string        `json:"kind"`
	Classification string        `json:"classification"`
	StorageRegion  string        `json:"storageRegion"`
	Hash           string        `json:"hash"`
	AddedBy        id.UserID     `json:"addedBy"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Actor is the authenticated caller acting on a case.
type Actor struct {
	ID             id.UserID
	Role           string
	Department     string
	Jurisdiction   string
	ClearanceLevel int
}

// CreateCaseRequest carries the fields for a new case.
type CreateCaseRequest struct {
	Title          string `validate:"required,notblank"`
	Type           string
	Priority       string
	Classification string
	Jurisdiction   string `validate:"required,notblank"`
}

// Validate normalizes and enforces request invariants at the service boundary.
func (r *CreateCaseRequest) Validate() error {
	str.TrimStrings(&r.Title, &r.Type, &r.Priority, &r.Classification, &r.Jurisdiction)
	return validation.Validate(r)
}

// AddEvidenceRequest carries the fields for a new evidence item.
type AddEvidenceRequest struct {
	Title          string `validate:"required,notblank"`
	Kind           string
	Classification string
	StorageRegion  string
	Hash           string `validate:"required,notblank"`
}

// Validate normalizes and enforces request invariants at the service boundary.
func (r *AddEvidenceRequest) Validate() error {
	str.TrimStrings(&r.Title, &r.Kind, &r.Classification, &r.StorageRegion, &r.Hash)
	return validation.Validate(r)
}

// CaseView is a case together with the routing decision that admitted the
// caller. Routing is nil for same-jurisdiction access.
type CaseView struct {
	Case    *Case                         `json:"case"`
	Routing *jurisdiction.RoutingDecision `json:"routing,omitempty"`
}
