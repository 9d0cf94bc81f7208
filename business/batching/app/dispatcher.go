package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/multicall-batcher/business/batching/domain"
	"github.com/fd1az/multicall-batcher/internal/logger"
)

// Log sink messages.
const (
	MessageTx        = "MultiCall TX"
	MessageAMQP      = "MultiCall AMQP Message"
	MessageAMQPError = "MultiCall AMQP Error"
)

// Dispatcher reports a successful submission. Nothing it does can fail the cycle.
type Dispatcher struct {
	sink     LogSink
	exchange MessageExchange // nil disables publishing
	logger   logger.LoggerInterface
	failures metric.Int64Counter
}

// NewDispatcher creates a Dispatcher. exchange may be nil.
func NewDispatcher(sink LogSink, exchange MessageExchange, log logger.LoggerInterface) (*Dispatcher, error) {
	failures, err := otel.Meter(meterName).Int64Counter(
		"notification_failures_total",
		metric.WithDescription("Notification steps that failed"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		sink:     sink,
		exchange: exchange,
		logger:   log,
		failures: failures,
	}, nil
}

// Dispatch records the result, publishes it when an exchange is configured,
// and flushes the sink.
func (d *Dispatcher) Dispatch(ctx context.Context, result *domain.SubmissionResult) {
	d.sink.Record(ctx, LevelInfo, MessageTx, map[string]any{
		"chainId":     result.ChainID.String(),
		"hash":        result.Hash.Hex(),
		"blockNumber": result.BlockNumber,
		"nonce":       result.Nonce,
	})

	if d.exchange != nil {
		d.publish(ctx, result)
	}

	if err := d.sink.Flush(ctx); err != nil {
		d.fail(ctx, "flush")
		d.logger.Warn(ctx, "log sink flush failed", "error", err, "hash", result.Hash.Hex())
	}
}

func (d *Dispatcher) publish(ctx context.Context, result *domain.SubmissionResult) {
	event := domain.NewNotificationEvent(result)

	payload, err := event.Payload()
	if err == nil {
		err = d.exchange.Publish(ctx, "", payload)
	}

	if err != nil {
		d.fail(ctx, "publish")
		d.sink.Record(ctx, LevelError, MessageAMQPError, map[string]any{
			"exchange": d.exchange.Name(),
			"chainId":  event.ChainID,
			"hash":     event.Hash,
			"err":      err.Error(),
		})
		return
	}

	d.sink.Record(ctx, LevelInfo, MessageAMQP, map[string]any{
		"exchange": d.exchange.Name(),
		"chainId":  event.ChainID,
		"hash":     event.Hash,
	})
}

func (d *Dispatcher) fail(ctx context.Context, step string) {
	d.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
}
