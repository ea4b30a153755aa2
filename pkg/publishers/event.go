package publishers

import (
	"fmt"
	"time"

	"github.com/bounce-hq/bounce/internal/domain"
)

// Event is published downstream after a bounce was accepted by the backend.
type Event struct {
	BounceID  string    `json:"bounce_id"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	Friend    *string   `json:"friend,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent builds the event for an accepted bounce. The date uses the same
// wire form the backend received.
func NewEvent(b domain.Bounce) (Event, error) {
	date, err := domain.FormatWireDate(b.Date())
	if err != nil {
		return Event{}, fmt.Errorf("bounce %s: %w", b.ID(), err)
	}
	evt := Event{
		BounceID:  b.ID().String(),
		Title:     b.Title(),
		Date:      date,
		CreatedAt: time.Now().UTC(),
	}
	if friend, ok := b.Friend(); ok {
		evt.Friend = &friend
	}
	return evt, nil
}
