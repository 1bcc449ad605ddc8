// internal/marketplace/journal.go
package marketplace

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nftmarket/internal/account"
	"nftmarket/internal/notify"
	"nftmarket/pkg/eventstore"
)

const aggregateType = "marketplace_item"

// itemNamespace scopes item aggregate ids.
var itemNamespace = uuid.MustParse("6f1c7f5e-2a8d-4d0b-9b43-0c5a1e7d9f21")

// EventLog is the persistence used by the Journal.
type EventLog interface {
	AppendEvents(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []eventstore.Event) error
	LoadEvents(ctx context.Context, aggregateID uuid.UUID, fromVersion, toVersion int) ([]eventstore.Event, error)
}

// Journal records the lifecycle of every item in an event log. An item's
// offered event is version 1 of its aggregate and its bought event is
// version 2.
type Journal struct {
	log    EventLog
	market account.Address
}

func NewJournal(log EventLog, market account.Address) *Journal {
	return &Journal{log: log, market: market}
}

// AggregateID is the event log id of an item of this marketplace.
func (j *Journal) AggregateID(itemID uint64) uuid.UUID {
	name := make([]byte, account.AddressLength+8)
	copy(name, j.market[:])
	binary.BigEndian.PutUint64(name[account.AddressLength:], itemID)
	return uuid.NewSHA1(itemNamespace, name)
}

// Subscribe attaches the journal to a notification manager.
func (j *Journal) Subscribe(m *notify.Manager) {
	m.AddListener("", j.Record)
}

// Record appends a marketplace notification to the log. Other notifications
// are ignored. Failures are logged and never reach the marketplace.
func (j *Journal) Record(ctx context.Context, event notify.Event) {
	var (
		itemID          uint64
		expectedVersion int
	)
	switch data := event.Data.(type) {
	case OfferedEvent:
		itemID, expectedVersion = data.ItemID, 0
	case BoughtEvent:
		itemID, expectedVersion = data.ItemID, 1
	default:
		return
	}

	logger := zap.L().With(
		zap.String("event", string(event.Type)),
		zap.String("id", event.ID.String()),
		zap.Uint64("itemId", itemID),
	)

	data, err := json.Marshal(event.Data)
	if err != nil {
		logger.With(zap.Error(err)).Error("Failed to marshal journal event")
		return
	}

	id := j.AggregateID(itemID)
	err = j.log.AppendEvents(ctx, id, aggregateType, expectedVersion, []eventstore.Event{{
		EventType: string(event.Type),
		EventData: data,
		Metadata: map[string]interface{}{
			"notification_id": event.ID.String(),
			"occurred_at":     event.OccurredAt,
		},
	}})
	if err != nil {
		logger.With(zap.Error(err)).Error("Failed to append journal event")
		return
	}
	logger.Debug("Journal event appended")
}

// History returns the recorded events of itemID, oldest first.
func (j *Journal) History(ctx context.Context, itemID uint64) ([]eventstore.Event, error) {
	events, err := j.log.LoadEvents(ctx, j.AggregateID(itemID), 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load item history: %w", err)
	}
	return events, nil
}
