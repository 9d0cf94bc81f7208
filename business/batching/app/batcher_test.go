package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/multicall-batcher/business/batching/domain"
	"github.com/fd1az/multicall-batcher/internal/apperror"
)

type harness struct {
	signer   *fakeSigner
	fees     *fakeFeeSource
	agg      *fakeAggregator
	sink     *recordingSink
	exchange *fakeExchange
	batcher  *Batcher
}

func newHarness(t *testing.T, policy domain.FailurePolicy) *harness {
	t.Helper()

	h := &harness{
		signer:   newFakeSigner(),
		fees:     &fakeFeeSource{price: gwei(80)},
		agg:      &fakeAggregator{},
		sink:     &recordingSink{},
		exchange: &fakeExchange{},
	}

	log := &mockLogger{}
	dispatcher, err := NewDispatcher(h.sink, h.exchange, log)
	if err != nil {
		t.Fatal(err)
	}

	h.batcher, err = NewBatcher(
		NewCallQueue(),
		NewGasEstimator(h.signer, nil, 4, log),
		NewFeeSelector(h.fees, gwei(50)),
		NewSubmitter(h.signer, h.agg),
		dispatcher,
		BatcherConfig{Interval: 10 * time.Millisecond, FailurePolicy: policy},
		log,
	)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func (h *harness) add(t *testing.T, n byte, gas uint64) {
	t.Helper()
	h.signer.gas[target(n)] = gas
	if _, err := h.batcher.Add(domain.NewCall(target(n), []byte{n}, false)); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) queuedTargets() []common.Address {
	var out []common.Address
	for _, c := range h.batcher.queue.Snapshot() {
		out = append(out, c.Target)
	}
	return out
}

func TestBatcher_GreedyPrefix(t *testing.T) {
	h := newHarness(t, domain.DropFailed)
	h.add(t, 1, 1_000_000)
	h.add(t, 2, 2_500_000)
	h.add(t, 3, 100_000)

	res, err := h.batcher.RunCycle(context.Background())
	if err != nil || res == nil {
		t.Fatalf("RunCycle = %v, %v", res, err)
	}

	if len(h.agg.sent) != 1 || len(h.agg.sent[0]) != 1 || h.agg.sent[0][0].Target != target(1) {
		t.Fatalf("sent = %+v", h.agg.sent)
	}
	if h.agg.lastOpts.Fees.MaxFeePerGas.Cmp(gwei(50)) != 0 {
		t.Errorf("maxFee = %s, want ceiling", h.agg.lastOpts.Fees.MaxFeePerGas)
	}

	left := h.queuedTargets()
	if len(left) != 2 || left[0] != target(2) || left[1] != target(3) {
		t.Errorf("queue = %v", left)
	}
}

func TestBatcher_FailedEstimationDropped(t *testing.T) {
	h := newHarness(t, domain.DropFailed)
	h.add(t, 1, 0)
	h.signer.fail[target(1)] = true

	res, err := h.batcher.RunCycle(context.Background())
	if res != nil || err != nil {
		t.Fatalf("RunCycle = %v, %v", res, err)
	}
	if h.batcher.QueueLen() != 0 {
		t.Error("failed call should be dropped")
	}
	if len(h.agg.sent) != 0 || h.fees.calls != 0 || len(h.sink.records) != 0 {
		t.Error("empty batch must not fetch fees, submit or notify")
	}
}

func TestBatcher_FailedEstimationRetained(t *testing.T) {
	h := newHarness(t, domain.RetainFailed)
	h.add(t, 1, 0)
	h.add(t, 2, 30_000)
	h.signer.fail[target(1)] = true

	if _, err := h.batcher.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(h.agg.sent) != 1 || h.agg.sent[0][0].Target != target(2) {
		t.Fatalf("sent = %+v", h.agg.sent)
	}
	left := h.queuedTargets()
	if len(left) != 1 || left[0] != target(1) {
		t.Errorf("queue = %v", left)
	}
}

func TestBatcher_OversizedFirstCallStaysQueued(t *testing.T) {
	h := newHarness(t, domain.DropFailed)
	h.add(t, 1, domain.GasCeiling+1)
	h.add(t, 2, 10_000)

	res, err := h.batcher.RunCycle(context.Background())
	if res != nil || err != nil {
		t.Fatalf("RunCycle = %v, %v", res, err)
	}
	if h.batcher.QueueLen() != 2 {
		t.Errorf("queue len = %d, want 2", h.batcher.QueueLen())
	}
}

func TestBatcher_EmptyQueue(t *testing.T) {
	h := newHarness(t, domain.DropFailed)
	res, err := h.batcher.RunCycle(context.Background())
	if res != nil || err != nil {
		t.Fatalf("RunCycle = %v, %v", res, err)
	}
}

func TestBatcher_FailureBeforeBroadcastKeepsBatch(t *testing.T) {
	h := newHarness(t, domain.DropFailed)
	h.add(t, 1, 10_000)
	h.add(t, 2, 0)
	h.signer.fail[target(2)] = true
	h.agg.sendErr = errors.New("insufficient funds")

	_, err := h.batcher.RunCycle(context.Background())
	if apperror.GetCode(err) != apperror.CodeTransactionSendFailed {
		t.Fatalf("err = %v", err)
	}

	left := h.queuedTargets()
	if len(left) != 1 || left[0] != target(1) {
		t.Errorf("queue = %v, want batched call kept and failed call dropped", left)
	}
}

func TestBatcher_FailureAfterBroadcastRemovesBatch(t *testing.T) {
	h := newHarness(t, domain.DropFailed)
	h.add(t, 1, 10_000)
	h.agg.waitErr = apperror.New(apperror.CodeTransactionReverted)

	_, err := h.batcher.RunCycle(context.Background())

	var subErr *SubmissionError
	if !errors.As(err, &subErr) || !subErr.Broadcast {
		t.Fatalf("err = %v", err)
	}
	if h.batcher.QueueLen() != 0 {
		t.Error("broadcast batch must not be resubmitted")
	}
	if len(h.sink.records) != 0 {
		t.Error("failed submission must not notify")
	}
}

func TestBatcher_UncertainSendRemovesBatch(t *testing.T) {
	h := newHarness(t, domain.DropFailed)
	h.add(t, 1, 10_000)
	h.agg.sendErr = &UncertainSendError{
		Hash: common.Hash{31: 7},
		Err:  apperror.New(apperror.CodeTransactionSendFailed, apperror.WithCause(context.DeadlineExceeded)),
	}

	_, err := h.batcher.RunCycle(context.Background())

	var subErr *SubmissionError
	if !errors.As(err, &subErr) || !subErr.Broadcast || subErr.Hash != (common.Hash{31: 7}) {
		t.Fatalf("err = %v", err)
	}
	if h.batcher.QueueLen() != 0 {
		t.Fatal("a send the node may have accepted must not be retried")
	}

	h.agg.sendErr = nil
	res, err := h.batcher.RunCycle(context.Background())
	if res != nil || err != nil || len(h.agg.sent) != 0 {
		t.Errorf("second cycle = %v, %v, sent %d", res, err, len(h.agg.sent))
	}
}

func TestBatcher_CallAddedDuringCycleWaitsForNext(t *testing.T) {
	h := newHarness(t, domain.DropFailed)
	h.add(t, 1, 10_000)
	h.signer.gas[target(2)] = 10_000

	var once sync.Once
	h.signer.onEstimate = func(req domain.TxRequest) {
		if req.To != target(1) {
			return
		}
		once.Do(func() {
			if _, err := h.batcher.Add(domain.NewCall(target(2), []byte{2}, false)); err != nil {
				t.Error(err)
			}
		})
	}

	res, err := h.batcher.RunCycle(context.Background())
	if err != nil || res == nil {
		t.Fatalf("RunCycle = %v, %v", res, err)
	}

	if len(h.agg.sent) != 1 || len(h.agg.sent[0]) != 1 || h.agg.sent[0][0].Target != target(1) {
		t.Errorf("sent = %+v, want only the call queued before the cycle", h.agg.sent)
	}
	left := h.queuedTargets()
	if len(left) != 1 || left[0] != target(2) {
		t.Errorf("queue = %v, want the call added mid-cycle", left)
	}
}

func TestBatcher_FeeFailure(t *testing.T) {
	h := newHarness(t, domain.DropFailed)
	h.add(t, 1, 10_000)
	h.fees.err = errors.New("timeout")

	_, err := h.batcher.RunCycle(context.Background())
	if apperror.GetCode(err) != apperror.CodeFeeDataUnavailable {
		t.Fatalf("err = %v", err)
	}
	if h.batcher.QueueLen() != 1 {
		t.Error("call should stay queued")
	}
}

func TestBatcher_PublishFailureStillReturnsResult(t *testing.T) {
	h := newHarness(t, domain.DropFailed)
	h.add(t, 1, 10_000)
	h.exchange.err = errors.New("channel closed")

	res, err := h.batcher.RunCycle(context.Background())
	if err != nil || res == nil {
		t.Fatalf("RunCycle = %v, %v", res, err)
	}

	got := h.sink.messages()
	if len(got) != 2 || got[0] != MessageTx || got[1] != MessageAMQPError {
		t.Errorf("messages = %v", got)
	}
}

func TestBatcher_AddRejectsInvalid(t *testing.T) {
	h := newHarness(t, domain.DropFailed)

	_, err := h.batcher.Add(domain.NewCall(target(1), nil, false), domain.Call{})
	if apperror.GetCode(err) != apperror.CodeInvalidCall {
		t.Fatalf("err = %v", err)
	}
	if h.batcher.QueueLen() != 0 {
		t.Error("nothing should be enqueued when a call is invalid")
	}
}

func TestBatcher_RunSubmitsUntilCancelled(t *testing.T) {
	h := newHarness(t, domain.DropFailed)
	h.add(t, 1, 10_000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.batcher.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for h.batcher.QueueLen() != 0 {
		select {
		case <-deadline:
			t.Fatal("call was never submitted")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v", err)
	}
}
