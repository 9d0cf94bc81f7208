package app

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/multicall-batcher/business/batching/domain"
	"github.com/fd1az/multicall-batcher/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

var (
	aggregatorAddr = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")
	signerAddr     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	errRevert      = errors.New("execution reverted")
)

func target(n byte) common.Address {
	return common.Address{19: n}
}

// fakeSigner answers estimates from a per-target table.
type fakeSigner struct {
	mu        sync.Mutex
	gas       map[common.Address]uint64
	fail      map[common.Address]bool
	estimates []domain.TxRequest

	// onEstimate runs before each estimate, outside the lock
	onEstimate func(req domain.TxRequest)
}

func newFakeSigner() *fakeSigner {
	return &fakeSigner{
		gas:  map[common.Address]uint64{aggregatorAddr: 200_000},
		fail: map[common.Address]bool{},
	}
}

func (s *fakeSigner) Address() common.Address { return signerAddr }

func (s *fakeSigner) EstimateGas(ctx context.Context, req domain.TxRequest) (uint64, error) {
	if s.onEstimate != nil {
		s.onEstimate(req)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.estimates = append(s.estimates, req)
	if s.fail[req.To] {
		return 0, errRevert
	}
	return s.gas[req.To], nil
}

func (s *fakeSigner) SendTransaction(ctx context.Context, req domain.TxRequest) (PendingTransaction, error) {
	return nil, errors.New("not used")
}

type fakeFeeSource struct {
	price *big.Int
	err   error
	calls int
}

func (f *fakeFeeSource) CurrentFeeData(ctx context.Context) (*domain.FeeData, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.FeeData{GasPrice: f.price}, nil
}

type fakePending struct {
	hash    common.Hash
	nonce   uint64
	waitErr error
	result  *domain.SubmissionResult
}

func (p *fakePending) Hash() common.Hash { return p.hash }
func (p *fakePending) Nonce() uint64     { return p.nonce }

func (p *fakePending) Wait(ctx context.Context) (*domain.SubmissionResult, error) {
	if p.waitErr != nil {
		return nil, p.waitErr
	}
	return p.result, nil
}

// fakeAggregator records what was submitted.
type fakeAggregator struct {
	packErr  error
	sendErr  error
	waitErr  error
	sent     [][]domain.Call
	lastOpts domain.TxOptions
}

func (a *fakeAggregator) Address() common.Address { return aggregatorAddr }

func (a *fakeAggregator) Pack(calls []domain.Call) ([]byte, error) {
	if a.packErr != nil {
		return nil, a.packErr
	}
	return []byte{0x82, 0xad, 0x56, 0xcb, byte(len(calls))}, nil
}

func (a *fakeAggregator) Aggregate3(ctx context.Context, calls []domain.Call, opts domain.TxOptions) (PendingTransaction, error) {
	if a.sendErr != nil {
		return nil, a.sendErr
	}
	a.sent = append(a.sent, calls)
	a.lastOpts = opts

	hash := common.Hash{31: byte(len(a.sent))}
	return &fakePending{
		hash:    hash,
		nonce:   uint64(len(a.sent) - 1),
		waitErr: a.waitErr,
		result: &domain.SubmissionResult{
			ChainID:     big.NewInt(1),
			Hash:        hash,
			BlockNumber: 100,
			Nonce:       uint64(len(a.sent) - 1),
			GasUsed:     150_000,
		},
	}, nil
}

type sinkRecord struct {
	level   LogLevel
	message string
	fields  map[string]any
}

type recordingSink struct {
	mu       sync.Mutex
	records  []sinkRecord
	flushes  int
	flushErr error
}

func (s *recordingSink) Record(ctx context.Context, level LogLevel, message string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, sinkRecord{level: level, message: message, fields: fields})
}

func (s *recordingSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return s.flushErr
}

func (s *recordingSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.message
	}
	return out
}

type fakeExchange struct {
	err      error
	payloads [][]byte
	keys     []string
}

func (e *fakeExchange) Name() string { return "multicall" }

func (e *fakeExchange) Publish(ctx context.Context, routingKey string, payload []byte) error {
	e.keys = append(e.keys, routingKey)
	e.payloads = append(e.payloads, payload)
	return e.err
}
