package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cinecritic/internal/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*Event
	order     []uuid.UUID
	claimErr  error
	completed []uuid.UUID
}

func newFakeStore(evs ...Event) *fakeStore {
	s := &fakeStore{rows: make(map[uuid.UUID]*Event)}
	for i := range evs {
		e := evs[i]
		s.rows[e.ID] = &e
		s.order = append(s.order, e.ID)
	}
	return s
}

func (s *fakeStore) Claim(_ context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	var out []Event
	for _, id := range s.order {
		e := s.rows[id]
		if e.Status != StatusPending || len(out) == limit {
			continue
		}
		e.Status = StatusProcessing
		out = append(out, *e)
	}
	return out, nil
}

func (s *fakeStore) MarkCompleted(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id].Status = StatusCompleted
	s.completed = append(s.completed, id)
	return nil
}

func (s *fakeStore) MarkRetry(_ context.Context, id uuid.UUID, errMsg string, giveUp bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.rows[id]
	e.RetryCount++
	e.Error = errMsg
	e.Status = StatusPending
	if giveUp {
		e.Status = StatusFailed
	}
	return nil
}

func (s *fakeStore) status(id uuid.UUID) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id].Status
}

type fakeSink struct {
	mu       sync.Mutex
	got      []events.Envelope
	failures int
}

func (f *fakeSink) PublishEnvelope(_ context.Context, env events.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("broker unavailable")
	}
	f.got = append(f.got, env)
	return nil
}

type countingMetrics struct {
	results map[string]int
}

func (c *countingMetrics) OutboxRelayed(result string) {
	c.results[result]++
}

func pendingEvent(t *testing.T, ev events.DomainEvent) Event {
	t.Helper()
	env, err := events.NewEnvelope(ev)
	require.NoError(t, err)
	return FromEnvelope(env, time.Now())
}

func TestFromEnvelope_RoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	movieID := uuid.New()
	env, err := events.NewEnvelope(events.MovieCreated{MovieID: movieID, Title: "Heat", At: at})
	require.NoError(t, err)

	row := FromEnvelope(env, at.Add(time.Second))
	assert.Equal(t, StatusPending, row.Status)
	assert.NotEqual(t, uuid.Nil, row.ID)
	assert.Equal(t, movieID.String(), row.AggregateID)

	back := row.Envelope()
	assert.Equal(t, env.EventType, back.EventType)
	assert.Equal(t, at, back.OccurredAt)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(back.Payload, &payload))
	assert.Equal(t, "Heat", payload["title"])
}

func TestProcessBatch_DeliversInOrder(t *testing.T) {
	movieID := uuid.New()
	first := pendingEvent(t, events.MovieCreated{MovieID: movieID, Title: "Heat", At: time.Now()})
	second := pendingEvent(t, events.MovieDeleted{MovieID: movieID, Title: "Heat", At: time.Now()})
	store := newFakeStore(first, second)
	sink := &fakeSink{}
	metrics := &countingMetrics{results: map[string]int{}}
	p := DefaultProcessor(store, sink, nil).WithMetrics(metrics)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sink.got, 2)
	assert.Equal(t, string(events.EventMovieCreated), sink.got[0].EventType)
	assert.Equal(t, string(events.EventMovieDeleted), sink.got[1].EventType)
	assert.Equal(t, StatusCompleted, store.status(first.ID))
	assert.Equal(t, 2, metrics.results["delivered"])

	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatch_RetriesThenGivesUp(t *testing.T) {
	row := pendingEvent(t, events.MovieCreated{MovieID: uuid.New(), Title: "Alien", At: time.Now()})
	store := newFakeStore(row)
	sink := &fakeSink{failures: 10}
	metrics := &countingMetrics{results: map[string]int{}}
	p := NewProcessor(store, sink, 10, time.Millisecond, 3, nil).WithMetrics(metrics)

	for i := 0; i < 3; i++ {
		n, err := p.ProcessBatch(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	assert.Equal(t, StatusFailed, store.status(row.ID))
	assert.Equal(t, 2, metrics.results["retry"])
	assert.Equal(t, 1, metrics.results["failed"])

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sink.got)
}

func TestProcessBatch_RecoversAfterTransientFailure(t *testing.T) {
	row := pendingEvent(t, events.MovieCreated{MovieID: uuid.New(), Title: "Alien", At: time.Now()})
	store := newFakeStore(row)
	sink := &fakeSink{failures: 1}
	p := DefaultProcessor(store, sink, nil)

	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, store.status(row.ID))

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusCompleted, store.status(row.ID))
}

func TestProcessBatch_ClaimError(t *testing.T) {
	store := newFakeStore()
	store.claimErr = errors.New("connection reset")
	_, err := DefaultProcessor(store, &fakeSink{}, nil).ProcessBatch(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}

func TestRun_StopsOnCancel(t *testing.T) {
	row := pendingEvent(t, events.MovieCreated{MovieID: uuid.New(), Title: "Alien", At: time.Now()})
	store := newFakeStore(row)
	p := NewProcessor(store, &fakeSink{}, 10, 5*time.Millisecond, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return store.status(row.ID) == StatusCompleted }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
