package user

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"custodia/internal/audit"
	dErrors "custodia/pkg/domain-errors"
)

type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAuditor) Emit(_ context.Context, event audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type UserServiceSuite struct {
	suite.Suite
	service *Service
	auditor *recordingAuditor
	now     time.Time
}

func TestUserServiceSuite(t *testing.T) {
	suite.Run(t, new(UserServiceSuite))
}

func (s *UserServiceSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.auditor = &recordingAuditor{}
	s.service = NewService(NewInMemoryStore(), s.auditor,
		WithBcryptCost(bcrypt.MinCost),
		WithServiceClock(func() time.Time { return s.now }),
	)
}

func (s *UserServiceSuite) register(email string) *User {
	u, err := s.service.Register(context.Background(), RegisterRequest{
		Email:        email,
		Name:         "Dana",
		Password:     "correct horse battery",
		Role:         "investigator",
		Jurisdiction: "EU",
	})
	s.Require().NoError(err)
	return u
}

func (s *UserServiceSuite) TestRegisterHashesPassword() {
	u := s.register("dana@example.org")

	s.False(u.ID.IsNil())
	s.Equal(s.now, u.CreatedAt)
	s.NotEmpty(u.PasswordHash)
	s.NotContains(string(u.PasswordHash), "correct horse battery")

	s.Require().Len(s.auditor.events, 1)
	s.Equal(string(audit.EventUserRegistered), s.auditor.events[0].Action)
}

func (s *UserServiceSuite) TestRegisterValidates() {
	cases := []RegisterRequest{
		{Email: "not-an-email", Password: "long enough pw", Role: "r", Jurisdiction: "EU"},
		{Email: "a@b.c", Password: "short", Role: "r", Jurisdiction: "EU"},
		{Email: "a@b.c", Password: "long enough pw", Jurisdiction: "EU"},
		{Email: "a@b.c", Password: "long enough pw", Role: "r"},
	}
	for _, req := range cases {
		_, err := s.service.Register(context.Background(), req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation), "%+v", req)
	}
}

func (s *UserServiceSuite) TestDuplicateEmailConflicts() {
	s.register("dana@example.org")

	_, err := s.service.Register(context.Background(), RegisterRequest{
		Email:        "Dana@Example.org",
		Password:     "another password",
		Role:         "auditor",
		Jurisdiction: "US",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "email uniqueness is case-insensitive")
}

func (s *UserServiceSuite) TestAuthenticate() {
	s.register("dana@example.org")

	u, err := s.service.Authenticate(context.Background(), "dana@example.org", "correct horse battery")
	s.Require().NoError(err)
	s.Equal("Dana", u.Name)

	_, err = s.service.Authenticate(context.Background(), "dana@example.org", "wrong password")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.Authenticate(context.Background(), "nobody@example.org", "whatever pw")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "unknown email and wrong password are indistinguishable")
}
