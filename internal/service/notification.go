package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/notifier"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/resilience"
)

const (
	// notifyTimeout bounds one background fan-out.
	notifyTimeout = 10 * time.Second
	// notifyAttempts counts the first try.
	notifyAttempts = 2
)

// NotificationService dispatches execution events to all registered notifiers.
type NotificationService struct {
	notifiers     []notifier.Notifier
	enabledEvents map[string]bool
	inflight      *semaphore.Weighted
	wg            sync.WaitGroup
	retryDelay    time.Duration
}

// NewNotificationService creates a NotificationService with the given notifiers
// and list of enabled event types (e.g. "booking_created").
// If enabledEvents is empty, all events are enabled. maxInFlight bounds the
// number of concurrent background deliveries.
func NewNotificationService(notifiers []notifier.Notifier, enabledEvents []string, maxInFlight int) *NotificationService {
	enabled := make(map[string]bool, len(enabledEvents))
	for _, e := range enabledEvents {
		enabled[e] = true
	}
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &NotificationService{
		notifiers:     notifiers,
		enabledEvents: enabled,
		inflight:      semaphore.NewWeighted(int64(maxInFlight)),
		retryDelay:    500 * time.Millisecond,
	}
}

// Notify sends an event to all registered notifiers.
// Errors are logged but do not interrupt delivery to other notifiers.
func (s *NotificationService) Notify(ctx context.Context, ev notifier.Event) {
	if !s.enabled(ev.Type) {
		return
	}
	for _, provider := range s.notifiers {
		if err := s.send(ctx, provider, ev); err != nil {
			slog.WarnContext(ctx, "notification send failed",
				"provider", provider.Name(),
				"event", ev.Type,
				"record_id", ev.RecordID,
				"error", err,
			)
			continue
		}
		slog.DebugContext(ctx, "notification sent", "provider", provider.Name(), "event", ev.Type)
	}
}

// send retries transient failures once. Unconfigured sinks and 4xx answers
// are not retried.
func (s *NotificationService) send(ctx context.Context, provider notifier.Notifier, ev notifier.Event) error {
	var err error
	for attempt := 1; attempt <= notifyAttempts; attempt++ {
		if err = provider.Send(ctx, ev); err == nil || !transient(err) {
			return err
		}
		if attempt < notifyAttempts {
			if serr := resilience.Sleep(ctx, resilience.Backoff(s.retryDelay, attempt)); serr != nil {
				return err
			}
		}
	}
	return err
}

func transient(err error) bool {
	if errors.Is(err, notifier.ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *notifier.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// NotifyAsync delivers the event in the background and returns immediately.
// The delivery outlives the caller's context. When too many deliveries are
// in flight the event is dropped with a warning.
func (s *NotificationService) NotifyAsync(ctx context.Context, ev notifier.Event) {
	if len(s.notifiers) == 0 || !s.enabled(ev.Type) {
		return
	}
	if !s.inflight.TryAcquire(1) {
		slog.WarnContext(ctx, "notification dropped, too many in flight", "event", ev.Type, "record_id", ev.RecordID)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inflight.Release(1)
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		s.Notify(bg, ev)
	}()
}

// Wait blocks until background deliveries have finished.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	return len(s.notifiers)
}

func (s *NotificationService) enabled(eventType string) bool {
	return len(s.enabledEvents) == 0 || s.enabledEvents[eventType]
}
