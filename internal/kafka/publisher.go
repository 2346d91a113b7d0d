package kafka

import (
	"context"

	"ms-registration/internal/config"
	"ms-registration/internal/models"
)

// Publisher sends registration lifecycle events to their configured topics.
// Seat status messages are keyed by event title so one event's changes stay
// ordered within a partition.
type Publisher struct {
	Producer *Producer
	Topics   config.TopicConfig
}

func NewPublisher(producer *Producer, topics config.TopicConfig) *Publisher {
	return &Publisher{Producer: producer, Topics: topics}
}

func (p *Publisher) PublishRegistrationCreated(ctx context.Context, event models.RegistrationCreatedEvent) error {
	return p.Producer.Publish(ctx, p.Topics.RegistrationCreated, event.RegistrationID, event)
}

func (p *Publisher) PublishSeatStatus(ctx context.Context, event models.SeatStatusChangeEvent) error {
	return p.Producer.Publish(ctx, p.Topics.SeatStatus, event.EventTitle, event)
}
