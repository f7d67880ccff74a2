package user

import (
	"context"
	"strings"
	"sync"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "user not found")
	// ErrEmailTaken signals a registration against an existing email.
	ErrEmailTaken = dErrors.New(dErrors.CodeConflict, "email already registered")
)

// Store persists user accounts. Email uniqueness is the store's invariant.
type Store interface {
	Insert(ctx context.Context, u *User) error
	Get(ctx context.Context, userID id.UserID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// InMemoryStore keeps users in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*User
	byEmail map[string]id.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.UserID]*User),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, taken := s.byEmail[key]; taken {
		return ErrEmailTaken
	}
	copied := *u
	s.byID[u.ID] = &copied
	s.byEmail[key] = u.ID
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *InMemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uid, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s.byID[uid]
	return &copied, nil
}
