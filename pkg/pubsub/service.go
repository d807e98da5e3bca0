package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/karthivk/Callcenter/pkg/logger"
	"go.uber.org/zap"
)

// PubSubConfig holds configuration for the Pub/Sub publisher
type PubSubConfig struct {
	ProjectID string
	TopicName string
}

// CallEvent is the lifecycle event published for each call transition
type CallEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	CallID    string    `json:"call_id"`
	RoomName  string    `json:"room_name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Status    string    `json:"status,omitempty"`
	CallSid   string    `json:"call_sid,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Service publishes call lifecycle events to Google Cloud Pub/Sub
type Service struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	config *PubSubConfig
}

// NewService creates a new Pub/Sub service with the given configuration
func NewService(ctx context.Context, config *PubSubConfig) (*Service, error) {
	if config.ProjectID == "" || config.TopicName == "" {
		return nil, fmt.Errorf("pubsub requires project id and topic name")
	}

	client, err := pubsub.NewClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topic := client.Topic(config.TopicName)

	return &Service{
		client: client,
		topic:  topic,
		config: config,
	}, nil
}

// PublishCallEvent publishes a call lifecycle event as JSON
func (s *Service) PublishCallEvent(ctx context.Context, event *CallEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal call event: %w", err)
	}

	result := s.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": event.EventType,
			"call_id":    event.CallID,
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish call event: %w", err)
	}

	logger.Base().Debug("call event published",
		zap.String("message_id", id),
		zap.String("event_type", event.EventType),
		zap.String("call_id", event.CallID),
	)
	return nil
}

// Close stops the topic publisher and closes the client
func (s *Service) Close() error {
	if s.topic != nil {
		s.topic.Stop()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
