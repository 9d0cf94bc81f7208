package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/multicall-batcher/business/batching/domain"
	"github.com/fd1az/multicall-batcher/internal/logger"
	"github.com/fd1az/multicall-batcher/internal/ratelimit"
)

const tracerName = "github.com/fd1az/multicall-batcher/business/batching/app"

// GasEstimator results per-call gas concurrently.
type GasEstimator struct {
	signer      Signer
	limiter     *ratelimit.Limiter
	concurrency int
	logger      logger.LoggerInterface
	tracer      trace.Tracer
}

// NewGasEstimator creates a GasEstimator. limiter may be nil; concurrency < 1
// means unbounded.
func NewGasEstimator(signer Signer, limiter *ratelimit.Limiter, concurrency int, log logger.LoggerInterface) *GasEstimator {
	return &GasEstimator{
		signer:      signer,
		limiter:     limiter,
		concurrency: concurrency,
		logger:      log,
		tracer:      otel.Tracer(tracerName),
	}
}

// Estimate returns one Estimation per call in input order. A failed
// estimation yields an unknown estimate. The only error is ctx ending before
// all calls finished, in which case the results are not trustworthy.
func (e *GasEstimator) Estimate(ctx context.Context, calls []domain.QueuedCall) ([]domain.Estimation, error) {
	ctx, span := e.tracer.Start(ctx, "batching.estimate",
		trace.WithAttributes(attribute.Int("calls", len(calls))),
	)
	defer span.End()

	results := make([]domain.Estimation, len(calls))

	g := new(errgroup.Group)
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}

	for i, call := range calls {
		g.Go(func() error {
			results[i] = domain.Estimation{QueuedCall: call, Estimate: e.estimateOne(ctx, call)}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return results, nil
}

func (e *GasEstimator) estimateOne(ctx context.Context, call domain.QueuedCall) domain.GasEstimate {
	if err := e.limiter.Wait(ctx); err != nil {
		return domain.UnknownGas()
	}

	gas, err := e.signer.EstimateGas(ctx, domain.TxRequest{To: call.Target, Data: call.CallData})
	if err != nil {
		e.logger.Debug(ctx, "gas estimation failed",
			"call_id", call.ID,
			"target", call.Target.Hex(),
			"error", err,
		)
		return domain.UnknownGas()
	}
	return domain.KnownGas(gas)
}
