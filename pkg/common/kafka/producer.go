package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/veritas-health/medoutcomes/pkg/common/config"
	"github.com/veritas-health/medoutcomes/pkg/common/logger"
	"github.com/veritas-health/medoutcomes/pkg/common/models"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(topic string) *Producer {
	cfg := config.Load()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{writer: writer}
}

// PublishRunEvent announces a completed pipeline run on the bus.
func (p *Producer) PublishRunEvent(ctx context.Context, event models.RunEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.RunID),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("pipeline.completed")},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithField("run_id", event.RunID).Error("Failed to publish run event")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"run_id":   event.RunID,
		"outcomes": event.Outcomes,
	}).Debug("Run event published")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
