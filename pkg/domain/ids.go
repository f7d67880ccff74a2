// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "custodia/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing UserID where CaseID is expected.
type (
	UserID     uuid.UUID
	CaseID     uuid.UUID
	EvidenceID uuid.UUID
	GrantID    uuid.UUID
	PolicyID   string
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseCaseID(s string) (CaseID, error) {
	id, err := parseUUID(s, "case ID")
	return CaseID(id), err
}

func ParseEvidenceID(s string) (EvidenceID, error) {
	id, err := parseUUID(s, "evidence ID")
	return EvidenceID(id), err
}

func ParseGrantID(s string) (GrantID, error) {
	id, err := parseUUID(s, "grant ID")
	return GrantID(id), err
}

// New functions - generate fresh identifiers at creation sites.

func NewCaseID() CaseID         { return CaseID(uuid.New()) }
func NewEvidenceID() EvidenceID { return EvidenceID(uuid.New()) }
func NewGrantID() GrantID       { return GrantID(uuid.New()) }
func NewUserID() UserID         { return UserID(uuid.New()) }

// String methods - for logging and debugging.

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id CaseID) String() string     { return uuid.UUID(id).String() }
func (id EvidenceID) String() string { return uuid.UUID(id).String() }
func (id GrantID) String() string    { return uuid.UUID(id).String() }
func (id PolicyID) String() string   { return string(id) }

// Text marshalling - IDs render as canonical UUID strings in JSON bodies
// and parse back from them.

func (id UserID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id CaseID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id EvidenceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id GrantID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *CaseID) UnmarshalText(b []byte) error {
	parsed, err := ParseCaseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EvidenceID) UnmarshalText(b []byte) error {
	parsed, err := ParseEvidenceID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *GrantID) UnmarshalText(b []byte) error {
	parsed, err := ParseGrantID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// IsNil checks - used for service-layer validation.

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CaseID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EvidenceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id GrantID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) IsNil() bool   { return id == "" }

// parseUUID is the shared validation logic.
// Note: Nil UUIDs are allowed here. Use IsNil() at the service layer for
// business validation, which allows store lookups to return proper
// "not found" errors for consistency.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
