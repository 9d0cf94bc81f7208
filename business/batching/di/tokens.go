// Package di contains dependency injection tokens for the batching context.
package di

import (
	"github.com/fd1az/multicall-batcher/business/batching/app"
	"github.com/fd1az/multicall-batcher/business/batching/infra/ethereum"
	"github.com/fd1az/multicall-batcher/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Batcher = di.NewToken[*app.Batcher]("batching.Batcher")
)

// Private dependency tokens - internal to batching module
var (
	Signer     = di.NewToken[*ethereum.Signer]("batching:signer")
	Aggregator = di.NewToken[app.Aggregator]("batching:aggregator")
	LogSink    = di.NewToken[app.LogSink]("batching:logSink")
	Exchange   = di.NewToken[app.MessageExchange]("batching:exchange")
	Queue      = di.NewToken[*app.CallQueue]("batching:queue")
)

func GetBatcher(c di.ServiceRegistry) *app.Batcher {
	return di.GetToken(c, Batcher)
}

func GetSigner(c di.ServiceRegistry) *ethereum.Signer {
	return di.GetToken(c, Signer)
}

func GetAggregator(c di.ServiceRegistry) app.Aggregator {
	return di.GetToken(c, Aggregator)
}

func GetLogSink(c di.ServiceRegistry) app.LogSink {
	return di.GetToken(c, LogSink)
}

func GetExchange(c di.ServiceRegistry) app.MessageExchange {
	return di.GetToken(c, Exchange)
}

func GetQueue(c di.ServiceRegistry) *app.CallQueue {
	return di.GetToken(c, Queue)
}
