package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// Event dispatch defaults.
const (
	DefaultEventBuffer   = 256
	DefaultEventAttempts = 3
	DefaultEventBackoff  = 500 * time.Millisecond
	deliveryTimeout      = 10 * time.Second
)

// EventDispatcher decouples job notifications from the analysis pipeline.
// Emit never blocks; a single goroutine delivers queued events to the
// notifier with bounded retries.
type EventDispatcher struct {
	notifier    driven.Notifier
	queue       chan domain.Event
	maxAttempts int
	backoff     time.Duration
	log         *logger.Logger
	now         func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// EventOption configures an EventDispatcher.
type EventOption func(*EventDispatcher)

// WithEventBuffer sets the queue capacity.
func WithEventBuffer(n int) EventOption {
	return func(d *EventDispatcher) {
		if n > 0 {
			d.queue = make(chan domain.Event, n)
		}
	}
}

// WithMaxAttempts sets how often delivery of one event is tried.
func WithMaxAttempts(n int) EventOption {
	return func(d *EventDispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the base delay between attempts. The delay grows
// linearly with the attempt number.
func WithRetryBackoff(backoff time.Duration) EventOption {
	return func(d *EventDispatcher) {
		if backoff >= 0 {
			d.backoff = backoff
		}
	}
}

// WithEventLogger sets the logger.
func WithEventLogger(l *logger.Logger) EventOption {
	return func(d *EventDispatcher) {
		d.log = l
	}
}

// NewEventDispatcher creates a dispatcher and starts its delivery goroutine.
// A nil notifier drops every event.
func NewEventDispatcher(notifier driven.Notifier, opts ...EventOption) *EventDispatcher {
	d := &EventDispatcher{
		notifier:    notifier,
		queue:       make(chan domain.Event, DefaultEventBuffer),
		maxAttempts: DefaultEventAttempts,
		backoff:     DefaultEventBackoff,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(1)
	go d.loop()
	return d
}

// Emit enqueues an event. If the queue is full or the dispatcher is closed
// the event is dropped and logged.
func (d *EventDispatcher) Emit(event domain.Event) {
	if d == nil {
		return
	}
	if event.At.IsZero() {
		event.At = d.now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Debug("dispatcher closed, dropping %s event for %s", event.Type, event.AnalysisID)
		return
	}
	select {
	case d.queue <- event:
	default:
		d.log.Warn("event queue full, dropping %s event for %s", event.Type, event.AnalysisID)
	}
}

// OnProgress emits a progress event.
func (d *EventDispatcher) OnProgress(analysisID string, p domain.Progress) {
	d.Emit(domain.Event{Type: domain.EventProgress, AnalysisID: analysisID, Progress: &p})
}

// OnCompleted emits a completion event carrying the overall verdict.
func (d *EventDispatcher) OnCompleted(analysisID string, overall domain.OverallCompliance) {
	d.Emit(domain.Event{Type: domain.EventCompleted, AnalysisID: analysisID, Overall: &overall})
}

// OnFailed emits a failure event.
func (d *EventDispatcher) OnFailed(analysisID string, err error) {
	event := domain.Event{Type: domain.EventFailed, AnalysisID: analysisID}
	if err != nil {
		event.Error = err.Error()
	}
	d.Emit(event)
}

// OnCancelled emits a cancellation event.
func (d *EventDispatcher) OnCancelled(analysisID string) {
	d.Emit(domain.Event{Type: domain.EventCancelled, AnalysisID: analysisID})
}

// Close stops accepting events and waits until queued events are delivered.
func (d *EventDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *EventDispatcher) loop() {
	defer d.wg.Done()
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *EventDispatcher) deliver(event domain.Event) {
	if d.notifier == nil {
		return
	}
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err := d.notifier.Notify(ctx, event)
		cancel()
		if err == nil {
			return
		}
		if attempt == d.maxAttempts {
			d.log.Warn("delivering %s event for %s failed after %d attempts: %v",
				event.Type, event.AnalysisID, attempt, err)
			return
		}
		d.log.Debug("delivering %s event for %s failed (attempt %d): %v", event.Type, event.AnalysisID, attempt, err)
		time.Sleep(d.backoff * time.Duration(attempt))
	}
}
