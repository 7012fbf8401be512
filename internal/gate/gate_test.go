package gate

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlcore/internal/robots"
)

func newTestGate(t *testing.T, cfg Config) (*RedisGate, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	fetcher := robots.NewRobotsFetcher(nil, "crawlcore-test", nil)
	return NewRedisGate(fetcher, client, cfg), mr
}

func TestEvaluateAdmitsUnderQPSBudget(t *testing.T) {
	g, _ := newTestGate(t, Config{UserAgent: "crawlcore-test", DefaultQPS: 10, WindowSeconds: 1})
	target, _ := url.Parse("https://example.com/path")

	decision, err := g.Evaluate(context.Background(), *target)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Zero(t, decision.Wait)
}

func TestEvaluateThrottlesOverBudget(t *testing.T) {
	g, _ := newTestGate(t, Config{UserAgent: "crawlcore-test", DefaultQPS: 1, WindowSeconds: 1})
	target, _ := url.Parse("https://example.com/path")
	ctx := context.Background()

	first, err := g.Evaluate(ctx, *target)
	require.NoError(t, err)
	require.True(t, first.Allowed)
	require.Zero(t, first.Wait)

	second, err := g.Evaluate(ctx, *target)
	require.NoError(t, err)
	require.True(t, second.Allowed)
	require.NotZero(t, second.Wait)
}

func TestRecordFetchOutcomeAddsBackoffOnFailure(t *testing.T) {
	g, _ := newTestGate(t, Config{UserAgent: "crawlcore-test", DefaultQPS: 1000, WindowSeconds: 1})
	target, _ := url.Parse("https://example.com/path")
	ctx := context.Background()

	g.RecordFetchOutcome(target.Hostname(), false)

	decision, err := g.Evaluate(ctx, *target)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.NotZero(t, decision.Wait)
}

func TestRecordFetchOutcomeClearsBackoffOnSuccess(t *testing.T) {
	g, _ := newTestGate(t, Config{UserAgent: "crawlcore-test", DefaultQPS: 1000, WindowSeconds: 1})
	target, _ := url.Parse("https://example.com/path")
	ctx := context.Background()

	g.RecordFetchOutcome(target.Hostname(), false)
	g.RecordFetchOutcome(target.Hostname(), true)

	decision, err := g.Evaluate(ctx, *target)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Zero(t, decision.Wait)
}

func TestPathAllowedLongestMatchWins(t *testing.T) {
	allow := []ruleAdapter{{"/blog/public"}}
	disallow := []ruleAdapter{{"/blog"}}

	require.True(t, pathAllowed(allow, disallow, "/blog/public/post"))
	require.False(t, pathAllowed(allow, disallow, "/blog/private"))
}

type ruleAdapter struct{ prefix string }

func (r ruleAdapter) Prefix() string { return r.prefix }

var _ = time.Second
