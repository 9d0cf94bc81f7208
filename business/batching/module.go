// Package batching implements the multicall batching bounded context.
package batching

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fd1az/multicall-batcher/business/batching/app"
	batchingDI "github.com/fd1az/multicall-batcher/business/batching/di"
	"github.com/fd1az/multicall-batcher/business/batching/domain"
	"github.com/fd1az/multicall-batcher/business/batching/infra/amqp"
	"github.com/fd1az/multicall-batcher/business/batching/infra/console"
	"github.com/fd1az/multicall-batcher/business/batching/infra/ethereum"
	"github.com/fd1az/multicall-batcher/business/batching/infra/logtail"
	"github.com/fd1az/multicall-batcher/internal/apperror"
	"github.com/fd1az/multicall-batcher/internal/config"
	"github.com/fd1az/multicall-batcher/internal/di"
	"github.com/fd1az/multicall-batcher/internal/logger"
	"github.com/fd1az/multicall-batcher/internal/monolith"
	"github.com/fd1az/multicall-batcher/internal/ratelimit"
)

// Module implements the batching bounded context.
type Module struct{}

// RegisterServices registers all batching services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, batchingDI.Queue, func(sr di.ServiceRegistry) *app.CallQueue {
		return app.NewCallQueue()
	})

	di.RegisterToken(c, batchingDI.Signer, func(sr di.ServiceRegistry) *ethereum.Signer {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		backend := sr.Get("ethClient").(ethereum.Backend)

		signer, err := ethereum.NewSigner(backend, ethereum.SignerConfig{
			PrivateKey:   cfg.Ethereum.PrivateKey,
			ChainID:      cfg.Ethereum.ChainID,
			PollInterval: cfg.Batching.ConfirmationPollInterval,
		}, log)
		if err != nil {
			panic("failed to create signer: " + err.Error())
		}
		return signer
	})

	di.RegisterToken(c, batchingDI.Aggregator, func(sr di.ServiceRegistry) app.Aggregator {
		cfg := sr.Get("config").(*config.Config)

		mc, err := ethereum.NewMulticall(cfg.Ethereum.MulticallAddressHex(), batchingDI.GetSigner(sr))
		if err != nil {
			panic("failed to create multicall: " + err.Error())
		}
		return mc
	})

	di.RegisterToken(c, batchingDI.LogSink, func(sr di.ServiceRegistry) app.LogSink {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if !cfg.Logtail.Enabled() {
			return console.New(log)
		}

		sink, err := logtail.New(cfg.Logtail.Endpoint, cfg.Logtail.SourceToken, cfg.Logtail.Timeout)
		if err != nil {
			panic("failed to create logtail sink: " + err.Error())
		}
		return sink
	})

	di.RegisterToken(c, batchingDI.Exchange, func(sr di.ServiceRegistry) app.MessageExchange {
		cfg := sr.Get("config").(*config.Config)
		if !cfg.AMQP.Enabled() {
			return nil
		}
		return amqp.NewExchange(cfg.AMQP.URL, cfg.AMQP.Exchange)
	})

	di.RegisterToken(c, batchingDI.Batcher, func(sr di.ServiceRegistry) *app.Batcher {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		b, err := newBatcher(cfg, log, sr)
		if err != nil {
			panic("failed to create batcher: " + err.Error())
		}
		return b
	})

	return nil
}

func newBatcher(cfg *config.Config, log logger.LoggerInterface, sr di.ServiceRegistry) (*app.Batcher, error) {
	ceiling, err := domain.ParseGasPriceCeiling(cfg.Batching.GasPriceCeiling)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("batching.gas_price_ceiling"))
	}

	policy, err := domain.ParseFailurePolicy(cfg.Batching.FailurePolicy)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("batching.failure_policy"))
	}

	signer := batchingDI.GetSigner(sr)

	dispatcher, err := app.NewDispatcher(batchingDI.GetLogSink(sr), batchingDI.GetExchange(sr), log)
	if err != nil {
		return nil, err
	}

	return app.NewBatcher(
		batchingDI.GetQueue(sr),
		app.NewGasEstimator(
			signer,
			ratelimit.New(cfg.Batching.EstimationRatePerSecond),
			cfg.Batching.EstimationConcurrency,
			log,
		),
		app.NewFeeSelector(signer, ceiling),
		app.NewSubmitter(signer, batchingDI.GetAggregator(sr)),
		dispatcher,
		app.BatcherConfig{
			Interval:      cfg.Batching.Interval,
			CycleTimeout:  cfg.Batching.CycleTimeout,
			FailurePolicy: policy,
		},
		log,
	)
}

// Startup resolves the batcher and seeds the queue with configured calls.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	batcher := batchingDI.GetBatcher(mono.Services())
	signer := batchingDI.GetSigner(mono.Services())

	chainID, err := signer.ChainID(ctx)
	if err != nil {
		return err
	}

	calls, err := SeedCalls(cfg.Batching.Calls)
	if err != nil {
		return err
	}
	if len(calls) > 0 {
		if _, err := batcher.Add(calls...); err != nil {
			return err
		}
	}

	log.Info(ctx, "batching module started",
		"chain_id", chainID.String(),
		"signer", signer.Address().Hex(),
		"multicall", cfg.Ethereum.MulticallAddress,
		"gas_price_ceiling", cfg.Batching.GasPriceCeiling,
		"seeded_calls", len(calls),
		"amqp", cfg.AMQP.Enabled(),
		"logtail", cfg.Logtail.Enabled(),
	)
	return nil
}

// SeedCalls converts configured calls into domain calls.
func SeedCalls(cfgCalls []config.CallConfig) ([]domain.Call, error) {
	calls := make([]domain.Call, 0, len(cfgCalls))
	for i, c := range cfgCalls {
		var data []byte
		if c.CallData != "" && c.CallData != "0x" {
			decoded, err := hexutil.Decode(c.CallData)
			if err != nil {
				return nil, apperror.New(apperror.CodeInvalidFormat,
					apperror.WithCause(err),
					apperror.WithContext(fmt.Sprintf("batching.calls[%d].call_data", i)))
			}
			data = decoded
		}
		calls = append(calls, domain.NewCall(common.HexToAddress(c.Target), data, c.AllowFailure))
	}
	return calls, nil
}
