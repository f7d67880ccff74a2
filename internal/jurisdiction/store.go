package jurisdiction

import (
	"context"

	id "custodia/pkg/domain"
	pkgerrors "custodia/pkg/domain-errors"
)

// ErrGrantNotFound keeps storage-specific 404s consistent across implementations.
var ErrGrantNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "grant not found")

// PermissionStore answers whether a user holds an explicit, active
// cross-jurisdiction permission for a target jurisdiction.
type PermissionStore interface {
	FindActivePermission(ctx context.Context, userID id.UserID, jurisdiction string) (bool, error)
}

// GrantStore persists access grants. Grants are write-once plus revocation:
// implementations must never delete a grant or re-activate a revoked one.
type GrantStore interface {
	Insert(ctx context.Context, grant *AccessGrant) error
	Get(ctx context.Context, grantID id.GrantID) (*AccessGrant, error)
	// Revoke marks the grant inactive and stamps revocation metadata.
	// Revoking an already-revoked grant is a no-op.
	Revoke(ctx context.Context, grantID id.GrantID, revokedBy string, reason string) error
}

// EvidenceStore fetches an evidence item joined with its parent case for
// export compliance checks.
type EvidenceStore interface {
	FetchEvidenceWithCase(ctx context.Context, evidenceID id.EvidenceID) (*EvidenceRecord, error)
}

// StatsStore reads routing, grant, and violation aggregates for compliance
// reports.
type StatsStore interface {
	RoutingStats(ctx context.Context, jurisdiction string, window TimeRange) (RoutingStats, error)
	GrantStats(ctx context.Context, jurisdiction string, window TimeRange) (GrantStats, error)
	ViolationCount(ctx context.Context, jurisdiction string, window TimeRange) (int, error)
}
