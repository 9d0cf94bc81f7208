package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/multicall-batcher/business/batching/domain"
	"github.com/fd1az/multicall-batcher/internal/apperror"
)

// SubmissionError is a failed submission. Broadcast reports whether the
// transaction may have reached the network, in which case Hash is set.
type SubmissionError struct {
	Broadcast bool
	Hash      common.Hash
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.Broadcast {
		return fmt.Sprintf("submission %s failed: %v", e.Hash.Hex(), e.Err)
	}
	return fmt.Sprintf("submission failed before broadcast: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Submitter sends a batch as one aggregate3 transaction and waits for it to be mined.
type Submitter struct {
	signer     Signer
	aggregator Aggregator
	tracer     trace.Tracer
}

// NewSubmitter creates a Submitter.
func NewSubmitter(signer Signer, aggregator Aggregator) *Submitter {
	return &Submitter{
		signer:     signer,
		aggregator: aggregator,
		tracer:     otel.Tracer(tracerName),
	}
}

// Submit encodes batch, estimates the aggregate call, sends it with fees and
// blocks until it is mined. Errors are *SubmissionError.
func (s *Submitter) Submit(ctx context.Context, batch domain.Batch, fees domain.FeePlan) (*domain.SubmissionResult, error) {
	ctx, span := s.tracer.Start(ctx, "batching.submit",
		trace.WithAttributes(
			attribute.Int("calls", len(batch.Calls)),
			attribute.Int64("batch_gas", int64(batch.TotalGas)),
			attribute.String("max_fee_per_gas", fees.MaxFeePerGas.String()),
		),
	)
	defer span.End()

	fail := func(err *SubmissionError) (*domain.SubmissionResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		return nil, err
	}

	calls := batch.Targets()

	data, err := s.aggregator.Pack(calls)
	if err != nil {
		return fail(&SubmissionError{Err: apperror.New(apperror.CodeAggregateEncodeFailed, apperror.WithCause(err))})
	}

	gasLimit, err := s.signer.EstimateGas(ctx, domain.TxRequest{To: s.aggregator.Address(), Data: data})
	if err != nil {
		return fail(&SubmissionError{Err: apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext("aggregate call"))})
	}
	span.SetAttributes(attribute.Int64("gas_limit", int64(gasLimit)))

	pending, err := s.aggregator.Aggregate3(ctx, calls, domain.TxOptions{GasLimit: gasLimit, Fees: fees})
	if err != nil {
		var uncertain *UncertainSendError
		if errors.As(err, &uncertain) {
			return fail(&SubmissionError{
				Broadcast: true,
				Hash:      uncertain.Hash,
				Err:       apperror.Wrap(err, apperror.CodeTransactionSendFailed, uncertain.Hash.Hex()),
			})
		}
		return fail(&SubmissionError{Err: apperror.Wrap(err, apperror.CodeTransactionSendFailed, "aggregate3")})
	}
	span.SetAttributes(attribute.String("tx_hash", pending.Hash().Hex()))

	result, err := pending.Wait(ctx)
	if err != nil {
		return fail(&SubmissionError{
			Broadcast: true,
			Hash:      pending.Hash(),
			Err:       apperror.Wrap(err, apperror.CodeConfirmationFailed, pending.Hash().Hex()),
		})
	}

	span.SetAttributes(attribute.Int64("block_number", int64(result.BlockNumber)))
	span.SetStatus(codes.Ok, "mined")
	return result, nil
}
