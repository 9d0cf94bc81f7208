// Package console implements the notification log sink over the structured logger.
package console

import (
	"context"
	"sort"

	"github.com/fd1az/multicall-batcher/business/batching/app"
	"github.com/fd1az/multicall-batcher/internal/logger"
)

var _ app.LogSink = (*Sink)(nil)

// Sink writes records straight to the process logger. Flush is a no-op.
type Sink struct {
	logger logger.LoggerInterface
}

// New creates a Sink.
func New(log logger.LoggerInterface) *Sink {
	return &Sink{logger: log}
}

// Record implements app.LogSink.
func (s *Sink) Record(ctx context.Context, level app.LogLevel, message string, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, k, fields[k])
	}

	switch level {
	case app.LevelError:
		s.logger.Errorc(ctx, 1, message, args...)
	case app.LevelWarn:
		s.logger.Warnc(ctx, 1, message, args...)
	default:
		s.logger.Infoc(ctx, 1, message, args...)
	}
}

// Flush implements app.LogSink.
func (s *Sink) Flush(context.Context) error {
	return nil
}
