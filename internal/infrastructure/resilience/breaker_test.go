package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Enabled:          true,
		MinRequests:      3,
		FailureRatio:     0.5,
		OpenTimeout:      time.Minute,
		HalfOpenMaxCalls: 1,
	}
}

func TestExecuteDisabledPassesThrough(t *testing.T) {
	e := NewExecutor(Config{Enabled: false})

	calls := 0
	err := e.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	}, nil)
	if err != nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestExecuteNilCallback(t *testing.T) {
	e := NewExecutor(testConfig())
	if err := e.Execute(context.Background(), "op", nil, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestExecuteNeverRetries(t *testing.T) {
	e := NewExecutor(testConfig())

	calls := 0
	err := e.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("down")
	}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want exactly 1", calls)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	e := NewExecutor(testConfig())
	boom := errors.New("down")

	for i := 0; i < 3; i++ {
		_ = e.Execute(context.Background(), "op", func(context.Context) error { return boom }, nil)
	}

	err := e.Execute(context.Background(), "op", func(context.Context) error { return nil }, nil)
	if !IsCircuitOpen(err) {
		t.Fatalf("err = %v, want open circuit", err)
	}
}

func TestBreakersIsolatedPerOperation(t *testing.T) {
	e := NewExecutor(testConfig())
	boom := errors.New("down")

	for i := 0; i < 3; i++ {
		_ = e.Execute(context.Background(), "llm", func(context.Context) error { return boom }, nil)
	}

	err := e.Execute(context.Background(), "embed", func(context.Context) error { return nil }, nil)
	if err != nil {
		t.Fatalf("embed breaker tripped by llm failures: %v", err)
	}
}

func TestClassifierSkipsIgnoredFailures(t *testing.T) {
	e := NewExecutor(testConfig())
	ignore := func(error) ErrorClassification { return ErrorClassification{RecordFailure: false} }

	for i := 0; i < 5; i++ {
		_ = e.Execute(context.Background(), "op", func(context.Context) error { return context.Canceled }, ignore)
	}

	err := e.Execute(context.Background(), "op", func(context.Context) error { return nil }, ignore)
	if err != nil {
		t.Fatalf("ignored failures must not trip the breaker: %v", err)
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	e := NewExecutor(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Execute(ctx, "op", func(context.Context) error { return nil }, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
