package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/machikado-app/api/internal/platform/textutil"
	"github.com/machikado-app/api/internal/services"
)

// PubSubPublicationPublisher announces approved content on a Pub/Sub topic so
// the mobile app and companion site pipelines can pick it up.
type PubSubPublicationPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPublicationPublisher constructs a Pub/Sub backed publication publisher.
func NewPubSubPublicationPublisher(topic *pubsub.Topic) (*PubSubPublicationPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publication publisher: topic is required")
	}
	return &PubSubPublicationPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishContent enqueues a content-published message on the configured topic.
func (p *PubSubPublicationPublisher) PublishContent(ctx context.Context, message services.ContentPublishedMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub publication publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal content published message: %w", err)
	}

	raw := map[string]string{
		"contentId": message.ContentID,
		"kind":      string(message.Kind),
		"name":      message.Name,
	}
	if !message.OccurredAt.IsZero() {
		raw["occurredAt"] = message.OccurredAt.Format(time.RFC3339)
	}
	attrs := textutil.NormalizeStringMap(raw)
	for key, value := range attrs {
		if value == "" {
			delete(attrs, key)
		}
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish content published message: %w", err)
	}
	return id, nil
}
