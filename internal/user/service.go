package user

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"custodia/internal/audit"
	"custodia/internal/platform/metrics"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// AuditPublisher receives user lifecycle audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service registers and authenticates users.
type Service struct {
	store   Store
	auditor AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	clock   func() time.Time

	// bcryptCost is tunable for tests; production uses the bcrypt default.
	bcryptCost int
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

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) { s.bcryptCost = cost }
}

// WithServiceClock overrides the time source for deterministic testing.
func WithServiceClock(clock func() time.Time) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

// NewService creates a user service with required dependencies.
// Panics if any required dependency is nil - fail fast at startup.
func NewService(store Store, auditor AuditPublisher, opts ...ServiceOption) *Service {
	if store == nil {
		panic("user.NewService: store is required")
	}
	if auditor == nil {
		panic("user.NewService: auditor is required for compliance audit trail")
	}
	s := &Service{
		store:      store,
		auditor:    auditor,
		clock:      time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates the request, hashes the password, and persists the
// account. A duplicate email surfaces as a conflict error.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}

	u := &User{
		ID:             id.NewUserID(),
		Email:          req.Email,
		Name:           req.Name,
		Role:           req.Role,
		Department:     req.Department,
		Jurisdiction:   req.Jurisdiction,
		ClearanceLevel: req.ClearanceLevel,
		PasswordHash:   hash,
		CreatedAt:      s.clock(),
	}
	if err := s.store.Insert(ctx, u); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.UsersRegistered.Inc()
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		Timestamp:    u.CreatedAt,
		ActorID:      u.ID.String(),
		Action:       string(audit.EventUserRegistered),
		Jurisdiction: u.Jurisdiction,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit registration audit event", "error", err)
	}
	return u, nil
}

// Authenticate verifies credentials and returns the account. Both an unknown
// email and a wrong password yield the same unauthorized error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "authenticate user")
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return u, nil
}

// Get returns the account by ID.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*User, error) {
	return s.store.Get(ctx, userID)
}
