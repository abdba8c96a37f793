package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/openpour/openpour/pkg/logger"
)

const (
	consumeBackoffMin = time.Second
	consumeBackoffMax = 30 * time.Second
)

// StatusHandler handles hardware status updates for a dispense
type StatusHandler func(ctx context.Context, event StatusUpdateEvent) error

// HeartbeatHandler handles controller heartbeats
type HeartbeatHandler func(ctx context.Context, event HeartbeatEvent) error

// Consumer wraps the Kafka consumer group receiving hardware messages
type Consumer struct {
	consumer sarama.ConsumerGroup
	brokers  []string
	groupID  string
	topics   []string

	mu        sync.RWMutex
	status    StatusHandler
	heartbeat HeartbeatHandler
}

// NewConsumer creates a new bus consumer subscribed to the hardware topics
func NewConsumer(brokers []string, groupID string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create bus consumer: %w", err)
	}

	topics := []string{TopicDispenseStatus, TopicHardwareHeartbeat}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Str("group_id", groupID).
		Strs("topics", topics).
		Msg("Bus consumer initialized")

	return &Consumer{
		consumer: consumer,
		brokers:  brokers,
		groupID:  groupID,
		topics:   topics,
	}, nil
}

// OnStatusUpdate registers the handler for dispense status messages
func (c *Consumer) OnStatusUpdate(handler StatusHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = handler
}

// OnHeartbeat registers the handler for heartbeat messages
func (c *Consumer) OnHeartbeat(handler HeartbeatHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heartbeat = handler
}

// Start begins consuming in the background. The consume loop rejoins the
// group after rebalances and retries broker failures with bounded backoff.
func (c *Consumer) Start(ctx context.Context) error {
	handler := &consumerGroupHandler{consumer: c}

	go func() {
		backoff := consumeBackoffMin
		for {
			select {
			case <-ctx.Done():
				logger.Logger.Info().Msg("Consumer context cancelled, stopping...")
				return
			default:
				if err := c.consumer.Consume(ctx, c.topics, handler); err != nil {
					logger.Logger.Error().
						Err(err).
						Dur("backoff", backoff).
						Msg("Error from consumer, backing off")
					select {
					case <-ctx.Done():
						return
					case <-time.After(backoff):
					}
					backoff *= 2
					if backoff > consumeBackoffMax {
						backoff = consumeBackoffMax
					}
				} else {
					backoff = consumeBackoffMin
				}
			}
		}
	}()

	go func() {
		for err := range c.consumer.Errors() {
			logger.Logger.Error().
				Err(err).
				Msg("Consumer error")
		}
	}()

	logger.Logger.Info().
		Strs("topics", c.topics).
		Str("group_id", c.groupID).
		Msg("Bus consumer started")

	return nil
}

// Close closes the consumer group
func (c *Consumer) Close() error {
	if c.consumer != nil {
		return c.consumer.Close()
	}
	return nil
}

type consumerGroupHandler struct {
	consumer *Consumer
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.handleMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

func (h *consumerGroupHandler) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	// Extract trace context from message headers
	carrier := propagation.MapCarrier{}
	for _, header := range message.Headers {
		key := string(header.Key)
		if key == "traceparent" || key == "tracestate" {
			carrier[key] = string(header.Value)
		}
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	tracer := otel.Tracer("bus-consumer")
	ctx, span := tracer.Start(ctx, "bus.consume."+message.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.source", message.Topic),
			attribute.Int("messaging.kafka.partition", int(message.Partition)),
			attribute.Int64("messaging.kafka.offset", message.Offset),
		),
	)
	defer span.End()

	switch message.Topic {
	case TopicDispenseStatus:
		var event StatusUpdateEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to unmarshal status update")
			logger.Error(ctx).Err(err).Msg("Failed to unmarshal status update")
			return
		}

		span.SetAttributes(
			attribute.Int64("dispense.log_id", int64(event.LogID)),
			attribute.String("dispense.status", event.Status),
		)

		h.consumer.mu.RLock()
		handler := h.consumer.status
		h.consumer.mu.RUnlock()
		if handler == nil {
			span.SetStatus(codes.Error, "No status handler registered")
			logger.Warn(ctx).Msg("No status handler registered")
			return
		}
		if err := handler(ctx, event); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to handle status update")
			logger.Error(ctx).
				Err(err).
				Uint("log_id", event.LogID).
				Str("status", event.Status).
				Msg("Failed to handle status update")
			return
		}
		span.SetStatus(codes.Ok, "Status update handled")

	case TopicHardwareHeartbeat:
		var event HeartbeatEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to unmarshal heartbeat")
			logger.Error(ctx).Err(err).Msg("Failed to unmarshal heartbeat")
			return
		}

		h.consumer.mu.RLock()
		handler := h.consumer.heartbeat
		h.consumer.mu.RUnlock()
		if handler == nil {
			return
		}
		if err := handler(ctx, event); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to handle heartbeat")
			logger.Error(ctx).Err(err).Msg("Failed to handle heartbeat")
			return
		}
		span.SetStatus(codes.Ok, "Heartbeat handled")

	default:
		span.SetStatus(codes.Error, "Unknown topic")
		logger.Warn(ctx).
			Str("topic", message.Topic).
			Msg("Message on unknown topic")
	}
}
