package notification

import (
	"context"
	"encoding/json"
	"errors"

	"payvost/pkg/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// NewFeedReader joins a consumer group of its own so every API instance sees
// every event, starting from the newest offset.
func NewFeedReader(brokers []string, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     "payvost-admin-feed-" + uuid.NewString(),
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    1 << 20,
	})
}

// Relay replays published payment events into a local sink, so status changes
// applied by the webhook service reach dashboards connected to the API.
type Relay struct {
	reader MessageReader
	sink   Sink
	logger logger.Logger
}

func NewRelay(reader MessageReader, sink Sink, log logger.Logger) *Relay {
	return &Relay{reader: reader, sink: sink, logger: log}
}

// Run blocks until ctx is cancelled or the reader fails.
func (r *Relay) Run(ctx context.Context) error {
	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		var ev Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			r.logger.Warn("Skipping undecodable payment event", map[string]interface{}{
				"offset": msg.Offset,
				"error":  err.Error(),
			})
			continue
		}
		if err := r.sink.Deliver(ctx, &ev); err != nil {
			r.logger.Warn("Relay delivery failed", map[string]interface{}{
				"sink":  r.sink.Name(),
				"event": ev.ID,
				"error": err.Error(),
			})
		}
	}
}

func (r *Relay) Close() error {
	return r.reader.Close()
}
