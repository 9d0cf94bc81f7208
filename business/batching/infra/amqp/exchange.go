// Package amqp publishes batch notifications to a RabbitMQ fanout exchange.
package amqp

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/multicall-batcher/business/batching/app"
	"github.com/fd1az/multicall-batcher/internal/apperror"
)

const (
	tracerName = "github.com/fd1az/multicall-batcher/business/batching/infra/amqp"

	defaultDialTimeout = 10 * time.Second
)

var _ app.MessageExchange = (*Exchange)(nil)

// Exchange publishes to a durable fanout exchange. Every Publish dials its own
// connection and channel and closes both before returning.
type Exchange struct {
	url         string
	name        string
	dialTimeout time.Duration
	tracer      trace.Tracer
}

// NewExchange creates an Exchange for url and exchange name.
func NewExchange(url, name string) *Exchange {
	return &Exchange{
		url:         url,
		name:        name,
		dialTimeout: defaultDialTimeout,
		tracer:      otel.Tracer(tracerName),
	}
}

// Name implements app.MessageExchange.
func (e *Exchange) Name() string {
	return e.name
}

// Publish implements app.MessageExchange.
func (e *Exchange) Publish(ctx context.Context, routingKey string, payload []byte) (err error) {
	ctx, span := e.tracer.Start(ctx, "amqp.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination", e.name),
			attribute.Int("messaging.message.body.size", len(payload)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "publish failed")
		}
		span.End()
	}()

	dialTimeout := e.dialTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < dialTimeout {
		dialTimeout = time.Until(deadline)
	}

	conn, err := amqp.DialConfig(e.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return apperror.New(apperror.CodeExchangeConnectionFailed, apperror.WithCause(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return apperror.New(apperror.CodeExchangeConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("open channel"))
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(e.name, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return apperror.New(apperror.CodeExchangePublishFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("declare exchange %s", e.name)))
	}

	err = ch.PublishWithContext(ctx, e.name, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        payload,
	})
	if err != nil {
		return apperror.New(apperror.CodeExchangePublishFailed,
			apperror.WithCause(err),
			apperror.WithContext(e.name))
	}
	return nil
}
