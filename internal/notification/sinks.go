package notification

import (
	"context"

	"payvost/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Mailer is satisfied by *mailer.Mailer.
type Mailer interface {
	Send(to, subject, body string) error
}

// EmailSink mails the customer recorded on the intent.
type EmailSink struct {
	mailer Mailer
	logger logger.Logger
}

func NewEmailSink(m Mailer, log logger.Logger) *EmailSink {
	return &EmailSink{mailer: m, logger: log}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(_ context.Context, ev *Event) error {
	if ev.Email == "" {
		s.logger.Debug("No customer email on intent, skipping", map[string]interface{}{
			"intent_reference": ev.IntentReference,
		})
		return nil
	}
	subject, body := render(ev)
	return s.mailer.Send(ev.Email, subject, body)
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events keyed by intent reference so one intent stays on one partition.
type KafkaSink struct {
	writer MessageWriter
}

// NewKafkaWriter builds the writer used in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaSink(w MessageWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, ev *Event) error {
	payload, err := ev.marshal()
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.IntentReference),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
