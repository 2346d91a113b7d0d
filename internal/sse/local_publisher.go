package sse

import (
	"context"

	"ms-registration/internal/models"
)

// LocalPublisher delivers seat changes straight to this instance's emitter.
// It is used when Kafka is disabled.
type LocalPublisher struct {
	Emitter *SeatEventEmitter
}

func (p LocalPublisher) PublishRegistrationCreated(context.Context, models.RegistrationCreatedEvent) error {
	return nil
}

func (p LocalPublisher) PublishSeatStatus(_ context.Context, event models.SeatStatusChangeEvent) error {
	p.Emitter.Emit(event)
	return nil
}
