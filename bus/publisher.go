package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/openpour/openpour/pkg/logger"
)

var (
	publishMetricsOnce sync.Once
	publishFailures    *prometheus.CounterVec
)

func publishFailureCounter() *prometheus.CounterVec {
	publishMetricsOnce.Do(func() {
		publishFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bus_publish_failures_total",
				Help: "Total number of failed bus publishes by topic",
			},
			[]string{"topic"},
		)
		prometheus.MustRegister(publishFailures)
	})
	return publishFailures
}

// Publisher wraps the Kafka producer for hardware commands and
// smart-home state mirroring.
type Publisher struct {
	producer sarama.SyncProducer
	brokers  []string
	failures *prometheus.CounterVec
}

// NewPublisher creates a new bus publisher
func NewPublisher(brokers []string) (*Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create bus producer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Msg("Bus publisher initialized")

	return &Publisher{
		producer: producer,
		brokers:  brokers,
		failures: publishFailureCounter(),
	}, nil
}

// PublishDispenseCommand publishes a dispense command keyed by log id
func (p *Publisher) PublishDispenseCommand(ctx context.Context, event DispenseCommandEvent) error {
	tracer := otel.Tracer("bus-publisher")
	ctx, span := tracer.Start(ctx, "bus.publish.dispense_command",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", TopicDispenseCommand),
			attribute.Int64("dispense.log_id", int64(event.LogID)),
			attribute.Int("dispense.pump_count", len(event.Commands)),
		),
	)
	defer span.End()

	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	event.EventType = EventTypeDispenseCommand
	event.Timestamp = time.Now()

	span.SetAttributes(attribute.String("event.id", event.EventID))

	key := fmt.Sprintf("log_%d", event.LogID)
	if err := p.publish(ctx, span, TopicDispenseCommand, key, event.EventType, event.EventID, event); err != nil {
		return err
	}

	logger.Info(ctx).
		Str("event_id", event.EventID).
		Uint("log_id", event.LogID).
		Int("pump_count", len(event.Commands)).
		Msg("Dispense command published")
	return nil
}

// PublishSmartHomeState mirrors dispenser state outward, best effort
func (p *Publisher) PublishSmartHomeState(ctx context.Context, event SmartHomeStateEvent) error {
	tracer := otel.Tracer("bus-publisher")
	ctx, span := tracer.Start(ctx, "bus.publish.smarthome_state",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", TopicSmartHomeState),
		),
	)
	defer span.End()

	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	event.EventType = EventTypeSmartHomeState
	event.Timestamp = time.Now()

	return p.publish(ctx, span, TopicSmartHomeState, "state", event.EventType, event.EventID, event)
}

func (p *Publisher) publish(ctx context.Context, span trace.Span, topic, key, eventType, eventID string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []sarama.RecordHeader{
		{Key: []byte("event_type"), Value: []byte(eventType)},
		{Key: []byte("event_id"), Value: []byte(eventID)},
	}
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(value),
		Headers: headers,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.failures.WithLabelValues(topic).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to send message")
		logger.Error(ctx).
			Err(err).
			Str("topic", topic).
			Msg("Failed to publish event")
		return fmt.Errorf("failed to send message to bus: %w", err)
	}

	span.SetAttributes(
		attribute.Int("messaging.kafka.partition", int(partition)),
		attribute.Int64("messaging.kafka.offset", offset),
	)
	span.SetStatus(codes.Ok, "Event published")
	return nil
}

// Close closes the underlying producer
func (p *Publisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
