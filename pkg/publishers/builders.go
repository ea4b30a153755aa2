package publishers

import (
	"context"
	"errors"
	"fmt"
)

// Builder constructs the sink for one validated config.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Builders maps sink types to their constructors.
type Builders map[string]Builder

// DefaultBuilders knows every sink type the publishers file accepts.
func DefaultBuilders() Builders {
	return Builders{
		TypeHTTP:      newHTTPPublisher,
		TypeSQS:       newSQSPublisher,
		TypeSNS:       newSNSPublisher,
		TypeGCPPubSub: newGCPPubSubPublisher,
	}
}

// Build turns cfgs into a Fanout. Any failing sink aborts the build and the
// sinks built so far are closed.
func (b Builders) Build(ctx context.Context, cfgs []PublisherConfig, log Logger) (*Fanout, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	pubs := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		build, ok := b[cfg.Type]
		if !ok {
			return nil, errors.Join(
				fmt.Errorf("sink %q: no builder for type %q", cfg.ID, cfg.Type),
				NewFanout(pubs).Close(),
			)
		}
		pub, err := build(ctx, cfg, log)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("build sink %q: %w", cfg.ID, err), NewFanout(pubs).Close())
		}
		pubs = append(pubs, pub)
	}
	return NewFanout(pubs), nil
}
