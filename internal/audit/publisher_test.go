package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
)

type failingStore struct {
	InMemoryStore
	err error
}

func (s *failingStore) Append(ctx context.Context, event Event) error {
	if s.err != nil {
		return s.err
	}
	return s.InMemoryStore.Append(ctx, event)
}

type PublisherSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *PublisherSuite) TestSyncEmitPersistsImmediately() {
	p := NewPublisher(s.store)

	err := p.Emit(context.Background(), Event{
		Action:  string(EventCaseCreated),
		ActorID: "u1",
		CaseID:  "c1",
	})
	s.Require().NoError(err)

	events := s.store.All()
	s.Require().Len(events, 1)
	s.Equal("c1", events[0].CaseID)
	s.False(events[0].Timestamp.IsZero(), "a zero timestamp is stamped on emit")
}

func (s *PublisherSuite) TestSyncEmitSurfacesStoreError() {
	p := NewPublisher(&failingStore{err: errors.New("disk full")})

	err := p.Emit(context.Background(), Event{Action: string(EventGrantIssued)})
	s.ErrorContains(err, "disk full")
}

func (s *PublisherSuite) TestAsyncCloseDrainsBuffer() {
	p := NewPublisher(s.store, WithAsyncBuffer(16))

	for i := 0; i < 10; i++ {
		s.Require().NoError(p.Emit(context.Background(), Event{
			Action: string(EventEvidenceAdded),
			CaseID: "c1",
		}))
	}
	p.Close()

	events, err := s.store.ListByCase(context.Background(), "c1")
	s.Require().NoError(err)
	s.Len(events, 10)
}

func (s *PublisherSuite) TestAsyncEmitNeverFailsCaller() {
	p := NewPublisher(&failingStore{err: errors.New("down")},
		WithAsyncBuffer(4),
		WithPublisherLogger(slog.Default()),
	)
	defer p.Close()

	s.NoError(p.Emit(context.Background(), Event{Action: string(EventCaseRouted)}),
		"audit is best-effort on the hot path")
}

type recordingSink struct {
	events []Event
	err    error
}

func (r *recordingSink) Publish(_ context.Context, event Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (s *PublisherSuite) TestSinkReceivesPersistedEvents() {
	sink := &recordingSink{}
	p := NewPublisher(s.store, WithSink(sink))

	s.Require().NoError(p.Emit(context.Background(), Event{Action: string(EventCaseCreated)}))
	s.Len(sink.events, 1)
}

func (s *PublisherSuite) TestSinkFailureDoesNotFailEmit() {
	sink := &recordingSink{err: errors.New("broker unreachable")}
	p := NewPublisher(s.store, WithSink(sink), WithPublisherLogger(slog.Default()))

	s.NoError(p.Emit(context.Background(), Event{Action: string(EventCaseCreated)}))
	s.Len(s.store.All(), 1, "the store write still lands")
}

func (s *PublisherSuite) TestListByActor() {
	p := NewPublisher(s.store)
	s.Require().NoError(p.Emit(context.Background(), Event{ActorID: "u1", Action: string(EventCaseCreated)}))
	s.Require().NoError(p.Emit(context.Background(), Event{ActorID: "u2", Action: string(EventCaseCreated)}))

	events, err := s.store.ListByActor(context.Background(), "u1")
	s.Require().NoError(err)
	s.Len(events, 1)
}
