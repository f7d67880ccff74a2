package casefile

import (
	"context"
	"sync"

	id "custodia/pkg/domain"
	pkgerrors "custodia/pkg/domain-errors"
)

var (
	// ErrCaseNotFound keeps storage-specific 404s consistent across implementations.
	ErrCaseNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "case not found")
	// ErrEvidenceNotFound mirrors ErrCaseNotFound for evidence records.
	ErrEvidenceNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "evidence not found")
)

// Store persists cases and their evidence.
type Store interface {
	InsertCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, caseID id.CaseID) (*Case, error)
	UpdateCase(ctx context.Context, c *Case) error
	ListCases(ctx context.Context, jurisdiction string) ([]*Case, error)

	InsertEvidence(ctx context.Context, e *Evidence) error
	GetEvidence(ctx context.Context, evidenceID id.EvidenceID) (*Evidence, error)
	ListEvidence(ctx context.Context, caseID id.CaseID) ([]*Evidence, error)
}

// InMemoryStore keeps cases and evidence in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	cases    map[id.CaseID]*Case
	evidence map[id.EvidenceID]*Evidence
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		cases:    make(map[id.CaseID]*Case),
		evidence: make(map[id.EvidenceID]*Evidence),
	}
}

func (s *InMemoryStore) InsertCase(_ context.Context, c *Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *c
	s.cases[c.ID] = &copied
	return nil
}

func (s *InMemoryStore) GetCase(_ context.Context, caseID id.CaseID) (*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok {
		return nil, ErrCaseNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *InMemoryStore) UpdateCase(_ context.Context, c *Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; !ok {
		return ErrCaseNotFound
	}
	copied := *c
	s.cases[c.ID] = &copied
	return nil
}

func (s *InMemoryStore) ListCases(_ context.Context, jurisdiction string) ([]*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Case
	for _, c := range s.cases {
		if jurisdiction == "" || c.Jurisdiction == jurisdiction {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemoryStore) InsertEvidence(_ context.Context, e *Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[e.CaseID]; !ok {
		return ErrCaseNotFound
	}
	copied := *e
	s.evidence[e.ID] = &copied
	return nil
}

func (s *InMemoryStore) GetEvidence(_ context.Context, evidenceID id.EvidenceID) (*Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.evidence[evidenceID]
	if !ok {
		return nil, ErrEvidenceNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *InMemoryStore) ListEvidence(_ context.Context, caseID id.CaseID) ([]*Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Evidence
	for _, e := range s.evidence {
		if e.CaseID == caseID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}
