package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medtrack/go-remind/pkg/circuitbreaker"
)

// Kafka is the broker-backed delivery backend: register and cancel become
// commands on the reminder command topic, keyed by handle so commands for
// one handle stay ordered. The notify relay consumes them and does the
// actual firing.
type Kafka struct {
	producer *Producer
	breaker  *circuitbreaker.CircuitBreaker
	logger   *zap.Logger
	tracer   trace.Tracer
	clock    func() time.Time
}

// NewKafka creates a Kafka-backed delivery backend. The breaker is optional.
func NewKafka(producer *Producer, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Kafka {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Kafka{
		producer: producer,
		breaker:  breaker,
		logger:   logger,
		tracer:   otel.Tracer("delivery-kafka"),
		clock:    time.Now,
	}
}

func (k *Kafka) Register(ctx context.Context, handle string, at time.Time, payload Payload) error {
	return k.publish(ctx, Command{
		Op:      OpRegister,
		Handle:  handle,
		FireAt:  at,
		Payload: &payload,
	})
}

func (k *Kafka) Cancel(ctx context.Context, handle string) error {
	return k.publish(ctx, Command{
		Op:     OpCancel,
		Handle: handle,
	})
}

func (k *Kafka) publish(ctx context.Context, cmd Command) error {
	ctx, span := k.tracer.Start(ctx, "delivery_publish",
		trace.WithAttributes(
			attribute.String("op", string(cmd.Op)),
			attribute.String("handle", cmd.Handle),
		))
	defer span.End()

	cmd.CorrelationID = uuid.New().String()
	cmd.IssuedAt = k.clock().UTC()

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode delivery command: %w", err)
	}

	produce := func() error {
		return k.producer.ProduceMessage(ctx, TopicReminderCommands, cmd.Handle, data)
	}
	if k.breaker != nil {
		err = k.breaker.Execute(ctx, produce)
	} else {
		err = produce()
	}
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
