// Package reconcile merges the two asynchronous sources that report a
// payment intent's status - the NATS push channel and a fixed-interval
// store poll - into one deduplicated, monotonic timeline per session.
//
// Push is a latency optimization and may never fire, duplicate, or arrive
// out of order relative to the poll. The poll is the correctness backstop:
// as long as the session stays open it eventually observes the true status.
// Both producers feed a single consumer goroutine over a channel, so the
// deduplication comparison is never raced.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "passaro/internal/errors"
	"passaro/internal/logger"
	"passaro/internal/models"
	"passaro/internal/monitoring"
)

// Store is the point-read side of the status store.
type Store interface {
	GetStatus(ctx context.Context, intentID string) (models.PaymentStatus, error)
}

// Subscriber establishes the push channel for one intent. The returned
// function unsubscribes.
type Subscriber interface {
	SubscribeIntent(intentID string, fn func(models.PaymentStatus)) (func(), error)
}

// Observation sources.
const (
	SourceInitial = "initial"
	SourcePush    = "push"
	SourcePoll    = "poll"
)

// Observation result classes, as counted by metrics.
const (
	resultApplied   = "applied"
	resultDuplicate = "duplicate"
	resultViolation = "violation"
	resultDiscarded = "discarded"
)

type observation struct {
	source string
	status models.PaymentStatus
}

// Reconciler opens sessions. One Reconciler is shared by all handlers.
type Reconciler struct {
	store    Store
	sub      Subscriber
	interval time.Duration

	// OnViolation, when set, is invoked for every observation that would
	// regress a terminal status. The observation itself is always ignored.
	OnViolation func(intentID, source string, current, observed models.PaymentStatus)
}

func New(store Store, sub Subscriber, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Reconciler{
		store:    store,
		sub:      sub,
		interval: interval,
	}
}

// Session is a single-intent, single-owner reconciliation handle. The
// caller must Close it; Close is idempotent.
type Session struct {
	intentID   string
	onTerminal func(models.PaymentStatus)
	reconciler *Reconciler

	obs     chan observation
	updates chan models.PaymentStatus
	done    chan struct{}

	cancelPoll  context.CancelFunc
	unsubscribe func()
	closeOnce   sync.Once

	mu     sync.Mutex
	last   models.PaymentStatus
	fired  bool
	closed bool
}

// Open fetches the current status synchronously (so a session opened after
// the intent already settled still fires onTerminal exactly once), then
// starts the push subscription and the poll ticker. onTerminal is invoked
// at most once per session, from the session's consumer goroutine or, for
// an already-terminal intent, from Open itself.
//
// A push subscription failure is degraded mode, not an error: the poll
// alone guarantees eventual termination.
func (r *Reconciler) Open(ctx context.Context, intentID string, onTerminal func(models.PaymentStatus)) (*Session, error) {
	s := &Session{
		intentID:   intentID,
		onTerminal: onTerminal,
		reconciler: r,
		obs:        make(chan observation, 16),
		updates:    make(chan models.PaymentStatus, 8),
		done:       make(chan struct{}),
	}

	status, err := r.store.GetStatus(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("initial status read: %w", err)
	}
	if status == "" {
		return nil, apperrors.ErrIntentNotFound
	}
	s.apply(observation{source: SourceInitial, status: status})

	go s.consume()

	unsubscribe, err := r.sub.SubscribeIntent(intentID, func(st models.PaymentStatus) {
		s.offer(observation{source: SourcePush, status: st})
	})
	if err != nil {
		logger.WithIntent(intentID).Warn("Push subscription failed, continuing with poll only",
			"error", err)
	} else {
		s.unsubscribe = unsubscribe
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	s.cancelPoll = cancel
	go s.poll(pollCtx)

	monitoring.SessionOpened()
	return s, nil
}

func (s *Session) poll(ctx context.Context) {
	ticker := time.NewTicker(s.reconciler.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			status, err := s.reconciler.store.GetStatus(ctx, s.intentID)
			monitoring.TrackPoll(time.Since(start))
			if err != nil {
				// Transient poll failures are retried on the next tick.
				logger.WithIntent(s.intentID).Warn("Poll read failed", "error", err)
				continue
			}
			if status == "" {
				continue
			}
			s.offer(observation{source: SourcePoll, status: status})
		}
	}
}

// offer hands an observation to the consumer. When done is already closed
// the select may still pick the channel send, so this is best-effort early
// rejection only; apply holds the authoritative closed check.
func (s *Session) offer(o observation) {
	select {
	case <-s.done:
		monitoring.TrackObservation(o.source, resultDiscarded)
	case s.obs <- o:
	}
}

func (s *Session) consume() {
	for {
		select {
		case <-s.done:
			return
		case o := <-s.obs:
			s.apply(o)
		}
	}
}

func (s *Session) apply(o observation) {
	s.mu.Lock()

	// Observations from requests that were in flight when the session
	// closed must never mutate state or fire onTerminal.
	if s.closed {
		s.mu.Unlock()
		monitoring.TrackObservation(o.source, resultDiscarded)
		return
	}

	if o.status == s.last {
		s.mu.Unlock()
		monitoring.TrackObservation(o.source, resultDuplicate)
		return
	}

	if s.last.IsTerminal() {
		current := s.last
		s.mu.Unlock()
		// Monotonicity invariant: a terminal status never regresses. An
		// observation that says otherwise is a data or transport bug.
		monitoring.TrackObservation(o.source, resultViolation)
		logger.WithIntent(s.intentID).Error("Ignoring status regression after terminal state",
			"current", current, "observed", o.status, "source", o.source)
		if s.reconciler.OnViolation != nil {
			s.reconciler.OnViolation(s.intentID, o.source, current, o.status)
		}
		return
	}

	s.last = o.status
	fire := o.status.IsTerminal() && !s.fired
	if fire {
		s.fired = true
	}
	s.mu.Unlock()

	monitoring.TrackObservation(o.source, resultApplied)

	select {
	case s.updates <- o.status:
	default:
		// Slow consumer of Updates; Status() still converges.
	}

	if fire {
		monitoring.TrackTerminal(string(o.status))
		if s.onTerminal != nil {
			s.onTerminal(o.status)
		}
	}
}

// Status returns the latest observed status.
func (s *Session) Status() models.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Updates streams every applied status change, including the one observed
// at open. The channel is never closed; select against Done.
func (s *Session) Updates() <-chan models.PaymentStatus {
	return s.updates
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close cancels the poll timer and the push subscription. In-flight poll
// reads started before Close may complete but their observations are
// discarded. Safe to call multiple times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		if s.cancelPoll != nil {
			s.cancelPoll()
		}
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		monitoring.SessionClosed()
	})
}
