package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "passaro/internal/errors"
	"passaro/internal/models"
)

// fakeStatusStore answers point reads with whatever was last Set.
type fakeStatusStore struct {
	mu     sync.Mutex
	status map[string]models.PaymentStatus
	err    error
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{status: make(map[string]models.PaymentStatus)}
}

func (s *fakeStatusStore) Set(intentID string, status models.PaymentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[intentID] = status
}

func (s *fakeStatusStore) GetStatus(_ context.Context, intentID string) (models.PaymentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.status[intentID], nil
}

// fakeSubscriber hands the registered push callback back to the test.
type fakeSubscriber struct {
	mu           sync.Mutex
	fn           func(models.PaymentStatus)
	subscribeErr error
	unsubscribed bool
}

func (f *fakeSubscriber) SubscribeIntent(_ string, fn func(models.PaymentStatus)) (func(), error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.unsubscribed = true
		f.mu.Unlock()
	}, nil
}

func (f *fakeSubscriber) Push(status models.PaymentStatus) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(status)
	}
}

func waitForStatus(t *testing.T, terminal <-chan models.PaymentStatus) models.PaymentStatus {
	t.Helper()
	select {
	case status := <-terminal:
		return status
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for terminal status")
		return ""
	}
}

func TestOpenUnknownIntent(t *testing.T) {
	r := New(newFakeStatusStore(), &fakeSubscriber{}, time.Second)

	_, err := r.Open(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, apperrors.ErrIntentNotFound)
}

func TestOpenAlreadyTerminalFiresOnce(t *testing.T) {
	store := newFakeStatusStore()
	store.Set("intent-1", models.StatusApproved)
	r := New(store, &fakeSubscriber{}, time.Second)

	terminal := make(chan models.PaymentStatus, 4)
	session, err := r.Open(context.Background(), "intent-1", func(st models.PaymentStatus) {
		terminal <- st
	})
	require.NoError(t, err)
	defer session.Close()

	// The initial read already settled the session; onTerminal fired from
	// Open itself.
	assert.Equal(t, models.StatusApproved, waitForStatus(t, terminal))
	assert.Equal(t, models.StatusApproved, session.Status())
	assert.Empty(t, terminal)
}

func TestPushDeliversTerminalExactlyOnce(t *testing.T) {
	store := newFakeStatusStore()
	store.Set("intent-1", models.StatusPending)
	sub := &fakeSubscriber{}
	r := New(store, sub, time.Hour) // poll effectively disabled

	terminal := make(chan models.PaymentStatus, 4)
	session, err := r.Open(context.Background(), "intent-1", func(st models.PaymentStatus) {
		terminal <- st
	})
	require.NoError(t, err)
	defer session.Close()

	// Duplicates and a redundant terminal replay around the real transition.
	sub.Push(models.StatusPending)
	sub.Push(models.StatusPending)
	sub.Push(models.StatusApproved)
	sub.Push(models.StatusApproved)

	assert.Equal(t, models.StatusApproved, waitForStatus(t, terminal))
	assert.Equal(t, models.StatusApproved, session.Status())

	select {
	case st := <-terminal:
		t.Fatalf("onTerminal fired twice, second status %s", st)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPollOnlyConvergesWhenSubscribeFails(t *testing.T) {
	store := newFakeStatusStore()
	store.Set("intent-1", models.StatusPending)
	sub := &fakeSubscriber{subscribeErr: errors.New("nats down")}
	r := New(store, sub, 10*time.Millisecond)

	terminal := make(chan models.PaymentStatus, 1)
	session, err := r.Open(context.Background(), "intent-1", func(st models.PaymentStatus) {
		terminal <- st
	})
	require.NoError(t, err)
	defer session.Close()

	store.Set("intent-1", models.StatusRejected)

	assert.Equal(t, models.StatusRejected, waitForStatus(t, terminal))
	assert.Equal(t, models.StatusRejected, session.Status())
}

func TestTerminalRegressionIgnored(t *testing.T) {
	store := newFakeStatusStore()
	store.Set("intent-1", models.StatusPending)
	sub := &fakeSubscriber{}

	r := New(store, sub, time.Hour)
	violations := make(chan string, 4)
	r.OnViolation = func(intentID, source string, current, observed models.PaymentStatus) {
		violations <- source
	}

	terminal := make(chan models.PaymentStatus, 1)
	session, err := r.Open(context.Background(), "intent-1", func(st models.PaymentStatus) {
		terminal <- st
	})
	require.NoError(t, err)
	defer session.Close()

	sub.Push(models.StatusApproved)
	require.Equal(t, models.StatusApproved, waitForStatus(t, terminal))

	// A late observation contradicting the settled status must not stick.
	sub.Push(models.StatusRejected)

	select {
	case source := <-violations:
		assert.Equal(t, SourcePush, source)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for violation callback")
	}
	assert.Equal(t, models.StatusApproved, session.Status())
}

func TestUpdatesStreamsAppliedChanges(t *testing.T) {
	store := newFakeStatusStore()
	store.Set("intent-1", models.StatusPending)
	sub := &fakeSubscriber{}
	r := New(store, sub, time.Hour)

	session, err := r.Open(context.Background(), "intent-1", nil)
	require.NoError(t, err)
	defer session.Close()

	// The status observed at open is the first update.
	assert.Equal(t, models.StatusPending, waitForStatus(t, session.Updates()))

	sub.Push(models.StatusPending) // duplicate, not streamed
	sub.Push(models.StatusApproved)

	assert.Equal(t, models.StatusApproved, waitForStatus(t, session.Updates()))
}

func TestObservationsAfterCloseDiscarded(t *testing.T) {
	var fired int32
	sessions := make([]*Session, 0, 200)

	for i := 0; i < 200; i++ {
		store := newFakeStatusStore()
		store.Set("intent-1", models.StatusPending)
		sub := &fakeSubscriber{}
		r := New(store, sub, time.Hour)

		session, err := r.Open(context.Background(), "intent-1", func(models.PaymentStatus) {
			atomic.AddInt32(&fired, 1)
		})
		require.NoError(t, err)

		// The caller tore the session down; a push arriving afterwards must
		// not settle it.
		session.Close()
		sub.Push(models.StatusApproved)
		sessions = append(sessions, session)
	}

	// Give any straggling consumer goroutines time to drain.
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	for _, session := range sessions {
		assert.Equal(t, models.StatusPending, session.Status())
	}
}

func TestCloseIsIdempotentAndUnsubscribes(t *testing.T) {
	store := newFakeStatusStore()
	store.Set("intent-1", models.StatusPending)
	sub := &fakeSubscriber{}
	r := New(store, sub, time.Hour)

	session, err := r.Open(context.Background(), "intent-1", nil)
	require.NoError(t, err)

	session.Close()
	session.Close()

	select {
	case <-session.Done():
	default:
		t.Fatal("Done not closed after Close")
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.True(t, sub.unsubscribed)
}
