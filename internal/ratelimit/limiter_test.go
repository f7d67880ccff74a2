package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type LimiterSuite struct {
	suite.Suite
	limiter *InMemoryLimiter
	now     time.Time
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.limiter = NewInMemoryLimiter(3, time.Minute)
	s.limiter.clock = func() time.Time { return s.now }
}

func (s *LimiterSuite) TestAllowsUpToLimit() {
	for i := 0; i < 3; i++ {
		result, err := s.limiter.Allow(context.Background(), "1.2.3.4")
		s.Require().NoError(err)
		s.True(result.Allowed, "attempt %d", i+1)
	}

	result, err := s.limiter.Allow(context.Background(), "1.2.3.4")
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Equal(0, result.Remaining)
}

func (s *LimiterSuite) TestKeysAreIndependent() {
	for i := 0; i < 3; i++ {
		_, err := s.limiter.Allow(context.Background(), "1.2.3.4")
		s.Require().NoError(err)
	}

	result, err := s.limiter.Allow(context.Background(), "5.6.7.8")
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *LimiterSuite) TestWindowSlides() {
	for i := 0; i < 3; i++ {
		_, err := s.limiter.Allow(context.Background(), "1.2.3.4")
		s.Require().NoError(err)
	}

	s.now = s.now.Add(61 * time.Second)
	result, err := s.limiter.Allow(context.Background(), "1.2.3.4")
	s.Require().NoError(err)
	s.True(result.Allowed, "expired attempts free up capacity")
}

func (s *LimiterSuite) TestMiddlewareRejectsOverLimit() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Middleware(s.limiter, logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/login", nil))
		s.Equal(http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/login", nil))
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.NotEmpty(rec.Header().Get("Retry-After"))
}

func (s *LimiterSuite) TestMiddlewareNilLimiterPassesThrough() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Middleware(nil, logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/login", nil))
	s.Equal(http.StatusOK, rec.Code)
}
