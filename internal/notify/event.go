// internal/notify/event.go
package notify

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type names a kind of notification.
type Type string

// Event is a single notification. Data holds the producer's payload struct.
type Event struct {
	ID         ulid.ULID   `json:"id"`
	Type       Type        `json:"type"`
	Data       interface{} `json:"data"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Notifier receives notifications after a state change has been committed.
// Implementations must not block the caller on delivery and cannot report
// failure back to it.
type Notifier interface {
	Notify(ctx context.Context, eventType Type, data interface{})
}

// Discard drops every notification.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(context.Context, Type, interface{}) {}
