// Package logtail ships notification records to a Logtail (Better Stack) HTTP source.
package logtail

import (
	"context"
	"sync"
	"time"

	"github.com/fd1az/multicall-batcher/business/batching/app"
	"github.com/fd1az/multicall-batcher/internal/apperror"
	"github.com/fd1az/multicall-batcher/internal/httpclient"
)

// maxBuffered bounds the records kept across failed flushes.
const maxBuffered = 1000

var _ app.LogSink = (*Sink)(nil)

// Sink buffers records in memory and posts them as one JSON array on Flush.
type Sink struct {
	client httpclient.Client
	now    func() time.Time

	mu      sync.Mutex
	pending []map[string]any
}

// New creates a Sink posting to endpoint with the source token.
func New(endpoint, sourceToken string, timeout time.Duration) (*Sink, error) {
	client, err := httpclient.New(
		httpclient.WithBaseURL(endpoint),
		httpclient.WithProviderName("logtail"),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithHeaders(map[string]string{"Authorization": "Bearer " + sourceToken}),
		httpclient.WithRedactedHeaders("Authorization"),
	)
	if err != nil {
		return nil, err
	}
	return NewWithClient(client), nil
}

// NewWithClient creates a Sink over an existing client.
func NewWithClient(client httpclient.Client) *Sink {
	return &Sink{client: client, now: time.Now}
}

// Record implements app.LogSink.
func (s *Sink) Record(_ context.Context, level app.LogLevel, message string, fields map[string]any) {
	rec := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		rec[k] = v
	}
	rec["dt"] = s.now().UTC().Format(time.RFC3339Nano)
	rec["level"] = string(level)
	rec["message"] = message

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, rec)
	if over := len(s.pending) - maxBuffered; over > 0 {
		s.pending = s.pending[over:]
	}
}

// Flush implements app.LogSink. Records from a failed flush are kept for the next one.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if _, err := s.client.PostJSON(ctx, "/", batch); err != nil {
		s.mu.Lock()
		s.pending = append(batch, s.pending...)
		if over := len(s.pending) - maxBuffered; over > 0 {
			s.pending = s.pending[over:]
		}
		s.mu.Unlock()

		return apperror.New(apperror.CodeLogSinkFlushFailed, apperror.WithCause(err))
	}
	return nil
}

// Pending returns the number of buffered records.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
