package publishers

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// gcpPubSubPublisher publishes to a Pub/Sub topic and waits for the ack.
// PUBSUB_EMULATOR_HOST is honoured by the underlying client.
type gcpPubSubPublisher struct {
	sink
	client *pubsub.Client
	topic  *pubsub.Topic
}

func newGCPPubSubPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.GCPPubSub == nil {
		return nil, fmt.Errorf("sink %q missing gcp_pubsub configuration", cfg.ID)
	}
	client, err := pubsub.NewClient(ctx, cfg.GCPPubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &gcpPubSubPublisher{
		sink:   newSink(cfg, log),
		client: client,
		topic:  client.Topic(cfg.GCPPubSub.Topic),
	}, nil
}

func (g *gcpPubSubPublisher) Publish(ctx context.Context, evt Event) error {
	body, attrs, err := g.message(evt)
	if err != nil {
		return err
	}
	msgID, err := g.topic.Publish(ctx, &pubsub.Message{Data: body, Attributes: attrs}).Get(ctx)
	if err != nil {
		return g.failed(evt, fmt.Errorf("publish to pubsub: %w", err))
	}
	g.delivered(evt, map[string]any{"message_id": msgID})
	return nil
}

// Close stops the topic's background publisher and releases the client.
func (g *gcpPubSubPublisher) Close() error {
	g.topic.Stop()
	return g.client.Close()
}
