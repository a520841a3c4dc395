package market

import (
	"time"

	"github.com/google/uuid"
)

// Event is emitted by a committed operation. Attribute keys follow the
// marketplace vocabulary: collection, token_id, seller, bidder, price,
// units, expires_at, is_sale.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Type       string            `json:"type"`
	EmittedAt  time.Time         `json:"emitted_at"`
	Attributes map[string]string `json:"attributes"`
}

func newEvent(eventType string, at time.Time, attrs map[string]string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		EmittedAt:  at,
		Attributes: attrs,
	}
}
