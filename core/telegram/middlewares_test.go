package telegram

import (
	"testing"

	coreconfig "github.com/MyhlovetsVladyslav/bookbot/core/config"
)

func middlewareNames(mws []Middleware) []string {
	names := make([]string, len(mws))
	for i, mw := range mws {
		names[i] = mw.Name
	}
	return names
}

func TestDefaultMiddlewaresOrder(t *testing.T) {
	got := middlewareNames(DefaultMiddlewares(&coreconfig.Config{}, nil))
	want := []string{"recover", "logger", "metrics"}
	if len(got) != len(want) {
		t.Fatalf("middlewares = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("middlewares = %v, want %v", got, want)
		}
	}

	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 300, ExcludeUpdates: []string{"message"}}}
	got = middlewareNames(DefaultMiddlewares(cfg, nil))
	if len(got) != 4 || got[1] != "rate_limit" {
		t.Fatalf("middlewares with rate limit = %v", got)
	}
}
