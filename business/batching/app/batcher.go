package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/multicall-batcher/business/batching/domain"
	"github.com/fd1az/multicall-batcher/internal/apperror"
	"github.com/fd1az/multicall-batcher/internal/logger"
)

const meterName = "github.com/fd1az/multicall-batcher/business/batching/app"

// cycle outcomes
const (
	outcomeEmpty     = "empty"
	outcomeSubmitted = "submitted"
	outcomeFailed    = "failed"
)

// BatcherConfig holds cycle settings.
type BatcherConfig struct {
	Interval      time.Duration
	CycleTimeout  time.Duration // 0 disables the per-cycle deadline
	FailurePolicy domain.FailurePolicy
}

type batcherMetrics struct {
	cycles             metric.Int64Counter
	callsSubmitted     metric.Int64Counter
	estimationFailures metric.Int64Counter
	submissionFailures metric.Int64Counter
}

// Batcher runs batch cycles over a CallQueue.
type Batcher struct {
	queue      *CallQueue
	estimator  *GasEstimator
	fees       *FeeSelector
	submitter  *Submitter
	dispatcher *Dispatcher
	config     BatcherConfig
	logger     logger.LoggerInterface

	// one cycle at a time
	cycleMu sync.Mutex

	tracer  trace.Tracer
	metrics *batcherMetrics
}

// NewBatcher creates a Batcher.
func NewBatcher(
	queue *CallQueue,
	estimator *GasEstimator,
	fees *FeeSelector,
	submitter *Submitter,
	dispatcher *Dispatcher,
	config BatcherConfig,
	log logger.LoggerInterface,
) (*Batcher, error) {
	if config.FailurePolicy == "" {
		config.FailurePolicy = domain.DropFailed
	}

	b := &Batcher{
		queue:      queue,
		estimator:  estimator,
		fees:       fees,
		submitter:  submitter,
		dispatcher: dispatcher,
		config:     config,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
	}

	if err := b.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return b, nil
}

func (b *Batcher) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	b.metrics = &batcherMetrics{}

	b.metrics.cycles, err = meter.Int64Counter(
		"batch_cycles_total",
		metric.WithDescription("Batch cycles by outcome"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return err
	}

	b.metrics.callsSubmitted, err = meter.Int64Counter(
		"batch_calls_submitted_total",
		metric.WithDescription("Calls included in mined aggregate transactions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	b.metrics.estimationFailures, err = meter.Int64Counter(
		"gas_estimation_failures_total",
		metric.WithDescription("Calls whose gas estimation failed"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	b.metrics.submissionFailures, err = meter.Int64Counter(
		"batch_submission_failures_total",
		metric.WithDescription("Aggregate submissions that failed"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return err
	}

	_, err = meter.Int64ObservableGauge(
		"call_queue_depth",
		metric.WithDescription("Calls waiting in the queue"),
		metric.WithUnit("{call}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(b.queue.Len()))
			return nil
		}),
	)
	return err
}

// Add validates and enqueues calls. Nothing is enqueued if any call is invalid.
func (b *Batcher) Add(calls ...domain.Call) ([]uint64, error) {
	for i, c := range calls {
		if err := c.Validate(); err != nil {
			return nil, apperror.New(apperror.CodeInvalidCall,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("call %d", i)))
		}
	}
	return b.queue.Enqueue(calls...), nil
}

// QueueLen returns the number of queued calls.
func (b *Batcher) QueueLen() int {
	return b.queue.Len()
}

// RunCycle runs one estimate, build, price, submit and notify pass over the
// current queue. It returns (nil, nil) when nothing was submitted.
func (b *Batcher) RunCycle(ctx context.Context) (*domain.SubmissionResult, error) {
	b.cycleMu.Lock()
	defer b.cycleMu.Unlock()

	ctx, span := b.tracer.Start(ctx, "batching.cycle")
	defer span.End()

	snapshot := b.queue.Snapshot()
	span.SetAttributes(attribute.Int("queued", len(snapshot)))
	if len(snapshot) == 0 {
		b.countCycle(ctx, outcomeEmpty)
		return nil, nil
	}

	results, err := b.estimator.Estimate(ctx, snapshot)
	if err != nil {
		// results cut short by the deadline say nothing about the calls
		b.countCycle(ctx, outcomeFailed)
		span.SetStatus(codes.Error, "estimation interrupted")
		return nil, apperror.New(apperror.CodeServiceTimeout,
			apperror.WithCause(err),
			apperror.WithContext("gas estimation"))
	}

	estimated, failed := domain.Partition(results)
	remove := b.failedForRemoval(ctx, failed)

	batch := domain.BuildBatch(estimated, domain.GasCeiling)
	span.SetAttributes(
		attribute.Int("estimated", len(estimated)),
		attribute.Int("failed", len(failed)),
		attribute.Int("batched", len(batch.Calls)),
		attribute.Int64("batch_gas", int64(batch.TotalGas)),
	)

	if batch.Empty() {
		if len(estimated) > 0 {
			b.logger.Warn(ctx, "first queued call exceeds the batch gas ceiling",
				"call_id", estimated[0].ID,
				"gas", estimated[0].Gas,
				"ceiling", domain.GasCeiling,
			)
		}
		b.queue.Remove(remove...)
		b.countCycle(ctx, outcomeEmpty)
		return nil, nil
	}

	fees, err := b.fees.Select(ctx)
	if err != nil {
		b.queue.Remove(remove...)
		return nil, b.submissionFailed(ctx, span, err)
	}

	b.logger.Info(ctx, "submitting batch",
		"calls", len(batch.Calls),
		"batch_gas", batch.TotalGas,
		"max_fee_gwei", domain.FormatGwei(fees.MaxFeePerGas),
		"priority_fee_gwei", domain.FormatGwei(fees.MaxPriorityFeePerGas),
	)

	result, err := b.submitter.Submit(ctx, batch, fees)
	if err != nil {
		var subErr *SubmissionError
		if errors.As(err, &subErr) && subErr.Broadcast {
			// the transaction may still land; resubmitting could execute calls twice
			batchIDs := domain.IDs(batch.QueuedCalls())
			b.queue.Remove(append(remove, batchIDs...)...)
			b.logger.Error(ctx, "dead letter: batch removed after broadcast failure",
				"hash", subErr.Hash.Hex(),
				"call_ids", batchIDs,
				"error", subErr.Err,
			)
		} else {
			b.queue.Remove(remove...)
		}
		return nil, b.submissionFailed(ctx, span, err)
	}

	b.queue.Remove(append(remove, domain.IDs(batch.QueuedCalls())...)...)
	b.metrics.callsSubmitted.Add(ctx, int64(len(batch.Calls)))
	b.countCycle(ctx, outcomeSubmitted)

	b.logger.Info(ctx, "batch mined",
		"hash", result.Hash.Hex(),
		"block_number", result.BlockNumber,
		"gas_used", result.GasUsed,
	)

	b.dispatcher.Dispatch(ctx, result)

	span.SetStatus(codes.Ok, "submitted")
	return result, nil
}

// failedForRemoval applies the failure policy and returns the ids to drop.
func (b *Batcher) failedForRemoval(ctx context.Context, failed []domain.QueuedCall) []uint64 {
	if len(failed) == 0 {
		return nil
	}
	b.metrics.estimationFailures.Add(ctx, int64(len(failed)))

	ids := domain.IDs(failed)
	if b.config.FailurePolicy == domain.RetainFailed {
		b.logger.Warn(ctx, "gas estimation failed, calls retained", "call_ids", ids)
		return nil
	}

	b.logger.Warn(ctx, "gas estimation failed, calls dropped", "call_ids", ids)
	return ids
}

func (b *Batcher) submissionFailed(ctx context.Context, span trace.Span, err error) error {
	b.metrics.submissionFailures.Add(ctx, 1)
	b.countCycle(ctx, outcomeFailed)
	span.RecordError(err)
	span.SetStatus(codes.Error, "submission failed")
	return err
}

func (b *Batcher) countCycle(ctx context.Context, outcome string) {
	b.metrics.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Run runs a cycle every Interval until ctx is cancelled.
func (b *Batcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.config.Interval)
	defer ticker.Stop()

	ceiling := "none"
	if c := b.fees.Ceiling(); c != nil {
		ceiling = domain.FormatGwei(c)
	}
	b.logger.Info(ctx, "batcher started",
		"interval", b.config.Interval.String(),
		"failure_policy", string(b.config.FailurePolicy),
		"gas_price_ceiling_gwei", ceiling,
	)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info(ctx, "batcher stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			b.runScheduled(ctx)
		}
	}
}

// RunOnce runs a single cycle under the configured per-cycle deadline.
func (b *Batcher) RunOnce(ctx context.Context) (*domain.SubmissionResult, error) {
	if b.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.CycleTimeout)
		defer cancel()
	}
	return b.RunCycle(ctx)
}

func (b *Batcher) runScheduled(ctx context.Context) {
	_, err := b.RunOnce(ctx)
	if err == nil {
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		b.logger.Error(ctx, "batch cycle failed", appErr.LogArgs()...)
		return
	}
	b.logger.Error(ctx, "batch cycle failed", "error", err)
}
