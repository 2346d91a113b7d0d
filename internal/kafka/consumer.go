package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-registration/internal/logger"
	"ms-registration/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	Reader MessageReader
	Logger *logger.Logger
	// RetryDelay is the pause after a failed read.
	RetryDelay time.Duration
}

// NewConsumer creates a consumer for the given topic and group. Every
// instance that must see all messages needs its own groupID.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{Reader: reader, Logger: log, RetryDelay: time.Second}
}

// Start reads seat status events until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, handler func(models.SeatStatusChangeEvent)) {
	c.Logger.Info("KAFKA", "Seat status consumer started")

	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.Logger.Info("KAFKA", "Seat status consumer stopped")
				return
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.RetryDelay):
			}
			continue
		}

		var event models.SeatStatusChangeEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.Logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message at offset %d: %v", msg.Offset, err))
			continue
		}

		c.Logger.LogKafka("RECEIVED", msg.Topic, fmt.Sprintf("%s %s (%d seats)", event.EventTitle, event.Status, len(event.Seats)))
		handler(event)
	}
}

func (c *Consumer) Close() error {
	return c.Reader.Close()
}
