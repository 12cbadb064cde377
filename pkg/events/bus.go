package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vigild/vigil/pkg/logging"
)

// Event constants for the engine's fan-in channel
const (
	EventReportSubmitted     = "report.submitted"
	EventReportFinalized     = "report.finalized"
	EventReportAppealed      = "report.appealed"
	EventAssignmentDelivered = "assignment.delivered"
	EventAssignmentAccepted  = "assignment.accepted"
	EventAssignmentDispensed = "assignment.dispensed"
	EventAssignmentExpired   = "assignment.expired"
	EventVoteCast            = "vote.cast"
	EventShiftStarted        = "shift.started"
	EventShiftStopped        = "shift.stopped"
	EventCaptchaIssued       = "captcha.issued"
)

// Event is one engine occurrence published to subscribers.
type Event struct {
	ID         string    // Unique event id
	Type       string    // Event type constant (e.g., EventVoteCast)
	ReportID   int64     // Optional: the report involved
	ReviewerID int64     // Optional: the reviewer involved
	Timestamp  time.Time // When the event occurred
}

// Bus fans events out to in-process subscribers. Publish never blocks; a
// subscriber whose buffer is full loses the event and a warning is logged —
// every loop also polls on an interval, so a lost wakeup only delays work.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	closed bool
	logger *logging.Logger
}

// NewBus creates a new event bus
func NewBus(logger *logging.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers a new subscriber and returns its receive channel.
func (b *Bus) Subscribe(buffer int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warnf("event bus: dropping %s for slow subscriber", event.Type)
		}
	}
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
