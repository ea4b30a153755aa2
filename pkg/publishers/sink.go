package publishers

import (
	"encoding/json"
	"fmt"
	"strings"
)

// sink holds what every publisher shares: identity, the friend policy, and
// which event fields become message attributes.
type sink struct {
	id            string
	typ           string
	includeFriend bool
	attributes    []string
	log           Logger
}

func newSink(cfg PublisherConfig, log Logger) sink {
	return sink{
		id:            cfg.ID,
		typ:           cfg.Type,
		includeFriend: cfg.FriendAllowed(),
		attributes:    cfg.Attributes,
		log:           ensureLogger(log),
	}
}

func (s sink) ID() string   { return s.id }
func (s sink) Type() string { return s.typ }

// message applies the friend policy and returns the JSON body and attributes
// for evt. Attributes for absent values (no friend) are left out.
func (s sink) message(evt Event) ([]byte, map[string]string, error) {
	if !s.includeFriend {
		evt.Friend = nil
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal event: %w", err)
	}

	attrs := make(map[string]string, len(s.attributes))
	for _, name := range s.attributes {
		switch name {
		case AttrBounceID:
			attrs[name] = evt.BounceID
		case AttrTitle:
			if evt.Title != "" {
				attrs[name] = evt.Title
			}
		case AttrFriend:
			if evt.Friend != nil && *evt.Friend != "" {
				attrs[name] = *evt.Friend
			}
		}
	}
	return body, attrs, nil
}

func (s sink) delivered(evt Event, extra map[string]any) {
	fields := map[string]any{"publisher_id": s.id, "type": s.typ, "bounce_id": evt.BounceID}
	for k, v := range extra {
		fields[k] = v
	}
	s.log.DebugObj("bounce event delivered", "publisher_delivery", fields)
}

func (s sink) failed(evt Event, err error) error {
	s.log.ErrorObj("bounce event delivery failed", "publisher_error", map[string]any{
		"publisher_id": s.id,
		"type":         s.typ,
		"bounce_id":    evt.BounceID,
		"error":        err.Error(),
	})
	return err
}

func isFIFO(name string) bool { return strings.HasSuffix(name, ".fifo") }
