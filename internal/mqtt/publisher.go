package mqtt

import (
	"context"
	"encoding/json"
	"path"

	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/tracking"
)

// Publisher is a tracking.EventSink that publishes every camera transition
// to <topic>/cameras/<ip>/state.
type Publisher struct {
	client *Client
	topic  string
}

var _ tracking.EventSink = (*Publisher)(nil)

// NewPublisher returns a publisher on a connected client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client, topic: client.config.Topic}
}

// StateTopic returns the topic of a camera.
func (p *Publisher) StateTopic(cameraIP string) string {
	return path.Join(p.topic, "cameras", cameraIP, "state")
}

// Publish implements tracking.EventSink.
func (p *Publisher) Publish(ctx context.Context, event tracking.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.New(err).
			Component(component).
			Category(errors.CategoryValidation).
			Build()
	}
	return p.client.Publish(ctx, p.StateTopic(event.CameraIP), payload)
}
