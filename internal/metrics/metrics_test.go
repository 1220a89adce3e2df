package metrics

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders("api-key=abc,x=1")
	if got["api-key"] != "abc" || got["x"] != "1" || len(got) != 2 {
		t.Fatalf("ParseHeaders() = %v", got)
	}
	if len(ParseHeaders("")) != 0 {
		t.Fatal("expected no headers for empty input")
	}
}

func TestNewMetricProvider_Prometheus(t *testing.T) {
	mp, err := NewMetricProvider(context.Background(),
		WithServiceName("dapp-bridge-test"),
		WithProviderConfig(NewPrometheusConfig()),
	)
	if err != nil {
		t.Fatalf("NewMetricProvider() error: %v", err)
	}
	defer mp.Shutdown(context.Background())

	counter, err := mp.Meter("test").Int64Counter("test_total")
	if err != nil {
		t.Fatalf("Int64Counter() error: %v", err)
	}
	counter.Add(context.Background(), 1)
}
