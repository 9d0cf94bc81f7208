// Package ethereum implements the batching ports on go-ethereum.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/multicall-batcher/business/batching/app"
	"github.com/fd1az/multicall-batcher/business/batching/domain"
	"github.com/fd1az/multicall-batcher/internal/apperror"
	"github.com/fd1az/multicall-batcher/internal/circuitbreaker"
	"github.com/fd1az/multicall-batcher/internal/logger"
)

const (
	tracerName = "github.com/fd1az/multicall-batcher/business/batching/infra/ethereum"
	meterName  = "github.com/fd1az/multicall-batcher/business/batching/infra/ethereum"

	defaultPollInterval = 2 * time.Second
)

var (
	_ app.Signer    = (*Signer)(nil)
	_ app.FeeSource = (*Signer)(nil)
)

// Backend is the JSON-RPC surface the signer needs. *ethclient.Client implements it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// SignerConfig configures a Signer.
type SignerConfig struct {
	PrivateKey   string
	ChainID      uint64 // 0 = ask the node
	PollInterval time.Duration
}

type signerMetrics struct {
	feeFetches  metric.Int64Counter
	txSent      metric.Int64Counter
	receiptPoll metric.Int64Counter
}

// Signer signs EIP-1559 transactions with a local key and doubles as the fee source.
type Signer struct {
	backend      Backend
	key          *ecdsa.PrivateKey
	from         common.Address
	pollInterval time.Duration
	logger       logger.LoggerInterface

	chainMu sync.Mutex
	chainID *big.Int

	// serialises nonce lookup and broadcast
	sendMu sync.Mutex

	feeCB  *circuitbreaker.CircuitBreaker[*big.Int]
	sendCB *circuitbreaker.CircuitBreaker[*types.Transaction]

	tracer  trace.Tracer
	metrics *signerMetrics
}

// NewSigner creates a Signer for cfg.PrivateKey (hex, optional 0x prefix).
func NewSigner(backend Backend, cfg SignerConfig, log logger.LoggerInterface) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidSignerKey, apperror.WithCause(err))
	}

	s := &Signer{
		backend:      backend,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		pollInterval: cfg.PollInterval,
		logger:       log,
		tracer:       otel.Tracer(tracerName),
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	if cfg.ChainID != 0 {
		s.chainID = new(big.Int).SetUint64(cfg.ChainID)
	}

	onChange := func(name string, from, to circuitbreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	feeCfg := circuitbreaker.DefaultConfig("ethereum-fee-data")
	feeCfg.OnStateChange = onChange
	sendCfg := circuitbreaker.DefaultConfig("ethereum-send")
	sendCfg.OnStateChange = onChange

	s.feeCB = circuitbreaker.New[*big.Int](feeCfg)
	s.sendCB = circuitbreaker.New[*types.Transaction](sendCfg)

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *Signer) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &signerMetrics{}

	s.metrics.feeFetches, err = meter.Int64Counter(
		"fee_data_fetches_total",
		metric.WithDescription("Gas price lookups"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	s.metrics.txSent, err = meter.Int64Counter(
		"transactions_sent_total",
		metric.WithDescription("Signed transactions broadcast"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.receiptPoll, err = meter.Int64Counter(
		"receipt_polls_total",
		metric.WithDescription("Receipt lookups while waiting for mining"),
		metric.WithUnit("{poll}"),
	)
	return err
}

// Address returns the sending account.
func (s *Signer) Address() common.Address {
	return s.from
}

// ChainID returns the configured chain id, asking the node once if unset.
func (s *Signer) ChainID(ctx context.Context) (*big.Int, error) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	if s.chainID != nil {
		return s.chainID, nil
	}

	id, err := s.backend.ChainID(ctx)
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("eth_chainId"))
	}
	s.chainID = id
	return id, nil
}

// EstimateGas implements app.Signer.
func (s *Signer) EstimateGas(ctx context.Context, req domain.TxRequest) (uint64, error) {
	to := req.To
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: s.from,
		To:   &to,
		Data: req.Data,
	})
	if err != nil {
		return 0, apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext(to.Hex()))
	}
	return gas, nil
}

// CurrentFeeData implements app.FeeSource.
func (s *Signer) CurrentFeeData(ctx context.Context) (*domain.FeeData, error) {
	ctx, span := s.tracer.Start(ctx, "ethereum.fee_data")
	defer span.End()

	s.metrics.feeFetches.Add(ctx, 1)

	price, err := s.feeCB.Execute(func() (*big.Int, error) {
		return s.backend.SuggestGasPrice(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, rpcError(err, "eth_gasPrice")
	}

	span.SetAttributes(attribute.String("gas_price_gwei", domain.FormatGwei(price)))
	return &domain.FeeData{GasPrice: price}, nil
}

// SendTransaction implements app.Signer.
func (s *Signer) SendTransaction(ctx context.Context, req domain.TxRequest) (app.PendingTransaction, error) {
	if req.Fees == nil || req.GasLimit == 0 {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("transaction needs fees and a gas limit"))
	}

	ctx, span := s.tracer.Start(ctx, "ethereum.send_transaction",
		trace.WithAttributes(
			attribute.String("to", req.To.Hex()),
			attribute.Int64("gas_limit", int64(req.GasLimit)),
		),
	)
	defer span.End()

	chainID, err := s.ChainID(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	signed, err := s.sendCB.Execute(func() (*types.Transaction, error) {
		return s.signAndSend(ctx, chainID, req)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		if circuitbreaker.IsOpen(err) {
			return nil, apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err))
		}
		var uncertain *app.UncertainSendError
		if errors.As(err, &uncertain) {
			s.logger.Warn(ctx, "transaction send outcome unknown",
				"hash", uncertain.Hash.Hex(),
				"error", uncertain.Err,
			)
		}
		return nil, err
	}

	s.metrics.txSent.Add(ctx, 1)
	span.SetAttributes(
		attribute.String("tx_hash", signed.Hash().Hex()),
		attribute.Int64("nonce", int64(signed.Nonce())),
	)
	s.logger.Info(ctx, "transaction broadcast",
		"hash", signed.Hash().Hex(),
		"nonce", signed.Nonce(),
		"gas_limit", signed.Gas(),
		"max_fee_gwei", domain.FormatGwei(signed.GasFeeCap()),
	)

	return &pendingTx{signer: s, tx: signed, chainID: chainID}, nil
}

func (s *Signer) signAndSend(ctx context.Context, chainID *big.Int, req domain.TxRequest) (*types.Transaction, error) {
	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, apperror.New(apperror.CodeNonceUnavailable, apperror.WithCause(err))
	}

	to := req.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: req.Fees.MaxPriorityFeePerGas,
		GasFeeCap: req.Fees.MaxFeePerGas,
		Gas:       req.GasLimit,
		To:        &to,
		Value:     new(big.Int),
		Data:      req.Data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, apperror.New(apperror.CodeTransactionSignFailed, apperror.WithCause(err))
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		sendErr := apperror.New(apperror.CodeTransactionSendFailed,
			apperror.WithCause(err),
			apperror.WithContext(signed.Hash().Hex()))
		if rejectedByNode(err) {
			return nil, sendErr
		}
		return nil, &app.UncertainSendError{Hash: signed.Hash(), Err: sendErr}
	}
	return signed, nil
}

// rejectedByNode reports whether err is a JSON-RPC answer that keeps the
// transaction out of the node's pool. Transport and context errors leave the
// outcome open, and "already known" means the pool holds it.
func rejectedByNode(err error) bool {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	msg := strings.ToLower(rpcErr.Error())
	for _, held := range []string{"already known", "known transaction", "already imported"} {
		if strings.Contains(msg, held) {
			return false
		}
	}
	return true
}

// rpcError maps breaker rejections and raw RPC failures to app errors.
func rpcError(err error, method string) error {
	if circuitbreaker.IsOpen(err) {
		return apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err), apperror.WithContext(method))
	}
	return apperror.New(apperror.CodeEthereumRPCError, apperror.WithCause(err), apperror.WithContext(method))
}

// pendingTx polls for the receipt of a broadcast transaction.
type pendingTx struct {
	signer  *Signer
	tx      *types.Transaction
	chainID *big.Int
}

func (p *pendingTx) Hash() common.Hash { return p.tx.Hash() }
func (p *pendingTx) Nonce() uint64     { return p.tx.Nonce() }

// Wait polls until the receipt appears or ctx ends. Lookup errors other than
// not-found are retried on the next tick.
func (p *pendingTx) Wait(ctx context.Context) (*domain.SubmissionResult, error) {
	s := p.signer
	hash := p.tx.Hash()

	ctx, span := s.tracer.Start(ctx, "ethereum.wait_mined",
		trace.WithAttributes(attribute.String("tx_hash", hash.Hex())),
	)
	defer span.End()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		s.metrics.receiptPoll.Add(ctx, 1)

		receipt, err := s.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return p.result(ctx, span, receipt)
		case errors.Is(err, ethereum.NotFound):
		default:
			s.logger.Debug(ctx, "receipt lookup failed", "hash", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "not mined before deadline")
			return nil, apperror.New(apperror.CodeConfirmationFailed,
				apperror.WithCause(ctx.Err()),
				apperror.WithContext(hash.Hex()))
		case <-ticker.C:
		}
	}
}

func (p *pendingTx) result(ctx context.Context, span trace.Span, receipt *types.Receipt) (*domain.SubmissionResult, error) {
	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	span.SetAttributes(
		attribute.Int64("block_number", int64(block)),
		attribute.Int64("gas_used", int64(receipt.GasUsed)),
	)

	if receipt.Status != types.ReceiptStatusSuccessful {
		err := apperror.New(apperror.CodeTransactionReverted,
			apperror.WithContext(fmt.Sprintf("%s in block %d", p.tx.Hash().Hex(), block)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "reverted")
		return nil, err
	}

	span.SetStatus(codes.Ok, "mined")
	return &domain.SubmissionResult{
		ChainID:     new(big.Int).Set(p.chainID),
		Hash:        p.tx.Hash(),
		BlockNumber: block,
		Nonce:       p.tx.Nonce(),
		GasUsed:     receipt.GasUsed,
	}, nil
}
