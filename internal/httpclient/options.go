// Package httpclient provides an instrumented JSON HTTP client with OTEL tracing and metrics.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Options holds configuration for the instrumented HTTP client.
type Options struct {
	meterProvider  metric.MeterProvider
	providerName   string
	roundTripper   http.RoundTripper
	requestTimeout time.Duration
	headers        map[string]string
	redactHeaders  []string
	baseURL        string
}

// Option configures Options.
type Option func(*Options)

// WithMeterProvider sets the OTEL meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Options) {
		o.meterProvider = mp
	}
}

// WithProviderName sets the provider name for metrics and traces.
func WithProviderName(name string) Option {
	return func(o *Options) {
		o.providerName = name
	}
}

// WithRoundTripper sets a custom HTTP transport.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *Options) {
		o.roundTripper = rt
	}
}

// WithRequestTimeout sets the request timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.requestTimeout = timeout
	}
}

// WithHeaders sets default headers for all requests.
func WithHeaders(headers map[string]string) Option {
	return func(o *Options) {
		o.headers = headers
	}
}

// WithRedactedHeaders lists headers whose values are masked on span events.
func WithRedactedHeaders(names ...string) Option {
	return func(o *Options) {
		o.redactHeaders = names
	}
}

// WithBaseURL sets the base URL that relative paths resolve against.
func WithBaseURL(url string) Option {
	return func(o *Options) {
		o.baseURL = url
	}
}

// StatusError is returned for responses with status >= 400.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return http.StatusText(e.StatusCode) + ": " + string(e.Body)
}
