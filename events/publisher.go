// Package events fans out inventory change notifications to connected
// clients through the cache pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pantrysnap/server/cache"
	"go.uber.org/zap"
)

// Channel returns the pub/sub channel carrying one owner's inventory
// change events.
func Channel(ownerID int64) string {
	return fmt.Sprintf("inventory:%d", ownerID)
}

// ItemEvent describes one inventory mutation.
type ItemEvent struct {
	Action   string    `json:"action"` // increment | decrement | batch_confirm
	Name     string    `json:"name"`
	Quantity int       `json:"quantity"` // quantity after the mutation, 0 when removed
	At       time.Time `json:"at"`
}

// Publisher publishes ItemEvents on per-owner channels.
type Publisher struct {
	ps     cache.PubSub
	logger *zap.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(ps cache.PubSub, logger *zap.Logger) *Publisher {
	return &Publisher{ps: ps, logger: logger}
}

// ItemChanged publishes an event for the owner. Delivery is
// best-effort: a publish failure is logged, never surfaced to the
// mutation that triggered it.
func (p *Publisher) ItemChanged(ctx context.Context, ownerID int64, ev ItemEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := p.ps.Publish(ctx, Channel(ownerID), string(payload)); err != nil {
		p.logger.Warn("event publish failed",
			zap.Int64("owner_id", ownerID),
			zap.String("action", ev.Action),
			zap.Error(err))
	}
}
