package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc ,broken, =x,tenant=rewards")
	if len(got) != 2 || got["api-key"] != "abc" || got["tenant"] != "rewards" {
		t.Fatalf("unexpected headers %v", got)
	}
}

func TestInitValidatesAndDisables(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing service name error")
	}
	if _, err := Init(context.Background(), Config{ServiceName: "rewardd", SampleRatio: 2}); err == nil {
		t.Fatalf("expected sample ratio error")
	}
	shutdown, err := Init(context.Background(), Config{ServiceName: "rewardd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
