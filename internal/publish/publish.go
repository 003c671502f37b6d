// Package publish emits run lifecycle events to Google Cloud Pub/Sub so
// downstream catalog consumers can react to fresh assets.
package publish

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// PubSub publishes run events to a single topic.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// New connects to Pub/Sub and verifies the topic exists before the run
// starts.
func New(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSub, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("check pubsub topic %s: %w", topicID, err)
	}
	if !exists {
		client.Close()
		return nil, fmt.Errorf("pubsub topic %s does not exist in project %s", topicID, projectID)
	}
	return &PubSub{client: client, topic: topic, logger: logger}, nil
}

// Publish sends payload and blocks until the server acknowledges it,
// returning the assigned message ID. Run events are rare enough that
// waiting is cheaper than losing one.
func (p *PubSub) Publish(ctx context.Context, payload []byte) (string, error) {
	result := p.topic.Publish(ctx, &pubsub.Message{Data: payload})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish run event: %w", err)
	}
	p.logger.Debug("run event published", zap.String("message_id", id))
	return id, nil
}

// Close flushes pending messages and releases the client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

// Noop satisfies the publisher contract when no topic is configured.
type Noop struct{}

func (Noop) Publish(context.Context, []byte) (string, error) { return "", nil }
func (Noop) Close() error                                    { return nil }
