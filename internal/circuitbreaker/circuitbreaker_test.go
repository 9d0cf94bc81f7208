package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.FailureThreshold = 3
	cfg.Timeout = time.Hour
	cb := New[int](cfg)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if !IsOpen(err) {
		t.Errorf("expected open-state error, got %v", err)
	}
}

func TestCircuitBreaker_CanceledIsNotFailure(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.FailureThreshold = 1
	cb := New[int](cfg)

	_, _ = cb.Execute(func() (int, error) { return 0, context.Canceled })

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestCircuitBreaker_PassesValue(t *testing.T) {
	cb := New[string](DefaultConfig("test"))
	v, err := cb.Execute(func() (string, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Errorf("Execute = %q, %v", v, err)
	}
}
