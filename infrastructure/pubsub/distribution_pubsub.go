package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
)

// DistributionPublisher publishes distribution status events to one topic.
// The topic is created on first use when it does not exist.
type DistributionPublisher struct {
	client    *pubsub.Client
	topicName string

	mu    sync.Mutex
	topic *pubsub.Topic
}

// NewDistributionPublisher falls back to a no-op publisher when client is nil.
func NewDistributionPublisher(client *pubsub.Client, topicName string) repository.IDistributionPublisher {
	if client == nil {
		logger.GetLogger().Info("Pub/Sub not configured - distribution events stay in process")
		return NoopPublisher{}
	}
	return &DistributionPublisher{client: client, topicName: topicName}
}

func (p *DistributionPublisher) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}
	topic := p.client.Topic(p.topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.GetLogger().WithField("topic", p.topicName).Info("Topic doesn't exist - creating it")
		if topic, err = p.client.CreateTopic(ctx, p.topicName); err != nil {
			return nil, err
		}
	}
	p.topic = topic
	return topic, nil
}

func (p *DistributionPublisher) Publish(ctx context.Context, evt model.DistributionEvent) error {
	topic, err := p.ensureTopic(ctx)
	if err != nil {
		return fmt.Errorf("distribution topic: %w", err)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	serverID, err := topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":       evt.Type,
			"creator_id": evt.CreatorID,
			"platform":   evt.Platform,
			"status":     evt.Status,
		},
	}).Get(ctx)
	if err != nil {
		return fmt.Errorf("publish distribution event: %w", err)
	}
	logger.GetLogger().WithField("server ID", serverID).WithField("platform", evt.Platform).Debug("Distribution event published")
	return nil
}

func (p *DistributionPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
	}
	return p.client.Close()
}

// NoopPublisher drops events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, model.DistributionEvent) error { return nil }
func (NoopPublisher) Close() error                                           { return nil }
