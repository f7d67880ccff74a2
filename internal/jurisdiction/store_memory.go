package jurisdiction

import (
	"context"
	"sync"
	"time"

	id "custodia/pkg/domain"
)

// MemoryGrantStore keeps access grants in process memory. Grants are never
// deleted; revocation only flips state, so the trail stays intact.
type MemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[id.GrantID]*AccessGrant
	clock  func() time.Time
}

func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{
		grants: make(map[id.GrantID]*AccessGrant),
		clock:  time.Now,
	}
}

func (s *MemoryGrantStore) Insert(_ context.Context, grant *AccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *grant
	s.grants[grant.ID] = &copied
	return nil
}

func (s *MemoryGrantStore) Get(_ context.Context, grantID id.GrantID) (*AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[grantID]
	if !ok {
		return nil, ErrGrantNotFound
	}
	copied := *grant
	return &copied, nil
}

func (s *MemoryGrantStore) Revoke(_ context.Context, grantID id.GrantID, revokedBy string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[grantID]
	if !ok {
		return ErrGrantNotFound
	}
	if !grant.Active {
		// Already revoked; revocation metadata is write-once.
		return nil
	}
	now := s.clock()
	grant.Active = false
	grant.RevokedBy = revokedBy
	grant.RevokedAt = &now
	grant.RevocationReason = reason
	return nil
}

// MemoryPermissionStore holds explicit cross-jurisdiction permissions keyed
// by (user, jurisdiction).
type MemoryPermissionStore struct {
	mu          sync.RWMutex
	permissions map[string]bool
}

func NewMemoryPermissionStore() *MemoryPermissionStore {
	return &MemoryPermissionStore{permissions: make(map[string]bool)}
}

func (s *MemoryPermissionStore) Grant(userID id.UserID, jurisdiction string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[permissionKey(userID, jurisdiction)] = true
}

func (s *MemoryPermissionStore) Withdraw(userID id.UserID, jurisdiction string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.permissions, permissionKey(userID, jurisdiction))
}

func (s *MemoryPermissionStore) FindActivePermission(_ context.Context, userID id.UserID, jurisdiction string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissions[permissionKey(userID, jurisdiction)], nil
}

func permissionKey(userID id.UserID, jurisdiction string) string {
	return userID.String() + "|" + jurisdiction
}

// MemoryStatsStore accumulates routing and grant aggregates per
// jurisdiction. The hosting application records observations; the router
// only reads.
type MemoryStatsStore struct {
	mu         sync.RWMutex
	routing    map[string]RoutingStats
	grants     map[string]GrantStats
	violations map[string]int
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{
		routing:    make(map[string]RoutingStats),
		grants:     make(map[string]GrantStats),
		violations: make(map[string]int),
	}
}

// RecordRouting folds a routing outcome into the jurisdiction's aggregates.
func (s *MemoryStatsStore) RecordRouting(jurisdiction string, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.routing[jurisdiction]
	stats.Total++
	switch outcome {
	case OutcomeDirectAccess:
		stats.DirectAccess++
	case OutcomeApproved:
		stats.Approved++
	case OutcomeConditional:
		stats.Conditional++
	case OutcomeDenied:
		stats.Denied++
	}
	s.routing[jurisdiction] = stats
}

// RecordGrant folds grant lifecycle counts into the jurisdiction's aggregates.
func (s *MemoryStatsStore) RecordGrant(jurisdiction string, issued, revoked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.grants[jurisdiction]
	if issued {
		stats.Issued++
		stats.Active++
	}
	if revoked {
		stats.Revoked++
		if stats.Active > 0 {
			stats.Active--
		}
	}
	s.grants[jurisdiction] = stats
}

// RecordViolation increments the jurisdiction's violation count.
func (s *MemoryStatsStore) RecordViolation(jurisdiction string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations[jurisdiction]++
}

func (s *MemoryStatsStore) RoutingStats(_ context.Context, jurisdiction string, _ TimeRange) (RoutingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routing[jurisdiction], nil
}

func (s *MemoryStatsStore) GrantStats(_ context.Context, jurisdiction string, _ TimeRange) (GrantStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[jurisdiction], nil
}

func (s *MemoryStatsStore) ViolationCount(_ context.Context, jurisdiction string, _ TimeRange) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.violations[jurisdiction], nil
}
