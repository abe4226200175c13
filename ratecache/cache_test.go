package ratecache

import (
	"context"
	"testing"
	"time"

	"github.com/epic1st/fxcore/config"
	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/money"
)

type fakeUpstream struct {
	calls int
	rate  externals.Rate
	err   error
}

func (f *fakeUpstream) GetRate(ctx context.Context, from, to string) (externals.Rate, error) {
	f.calls++
	if f.err != nil {
		return externals.Rate{}, f.err
	}
	return f.rate, nil
}

func (f *fakeUpstream) Subscribe(ctx context.Context, pair string) (<-chan externals.Rate, error) {
	return nil, nil
}

// TestGetRate_FallsThroughOnCacheMiss exercises the no-Redis-reachable path:
// the dialled client never connects (the test uses an address nothing is
// listening on), so every lookup misses and GetRate must still answer from
// upstream rather than failing the call.
func TestGetRate_FallsThroughOnCacheMiss(t *testing.T) {
	upstream := &fakeUpstream{rate: externals.Rate{Pair: "EUR/USD", Mid: money.MustParse("1.1000"), Timestamp: time.Now()}}
	cfg := config.RedisConfig{Host: "127.0.0.1", Port: "1", DB: 0}
	cache := New(cfg, time.Minute, upstream)
	defer cache.Close()

	rate, err := cache.GetRate(context.Background(), "EUR", "USD")
	if err != nil {
		t.Fatalf("expected fallthrough to upstream, got error: %v", err)
	}
	if money.Cmp(rate.Mid, money.MustParse("1.1000")) != 0 {
		t.Fatalf("expected upstream rate, got %s", rate.Mid)
	}
	if upstream.calls != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", upstream.calls)
	}
}

func TestCacheKey_IncludesBothLegs(t *testing.T) {
	key := cacheKey("EUR", "USD")
	if key != keyPrefix+"EUR/USD" {
		t.Fatalf("unexpected cache key: %s", key)
	}
}
