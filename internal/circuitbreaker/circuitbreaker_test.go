package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/dapp-bridge/internal/apperror"
)

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cfg := DefaultConfig("test-rpc")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Minute

	var transitions []gobreaker.State
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}
	cb := New[int](cfg)

	boom := errors.New("rpc down")
	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected underlying error, got %v", i, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if !apperror.HasCode(err, apperror.CodeCircuitOpen) {
		t.Fatalf("expected CIRCUIT_OPEN, got %v", err)
	}
	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Fatalf("unexpected transitions %v", transitions)
	}
}

func TestCircuitBreaker_IsSuccessfulSkipsFailure(t *testing.T) {
	notFound := errors.New("not found")
	cfg := DefaultConfig("receipts")
	cfg.FailureThreshold = 1
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, notFound)
	}
	cb := New[string](cfg)

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (string, error) { return "", notFound }); !errors.Is(err, notFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("breaker should stay closed, got %s", cb.State())
	}

	got, err := cb.Execute(func() (string, error) { return "ok", nil })
	if err != nil || got != "ok" {
		t.Fatalf("Execute() = %q, %v", got, err)
	}
}
