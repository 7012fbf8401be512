package gate

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rohmanhakim/crawlcore/internal/robots"
	"github.com/rohmanhakim/crawlcore/pkg/limiter"
	"github.com/rohmanhakim/crawlcore/pkg/timeutil"
)

/*
Gate is the single admission authority a crawler worker consults before
fetching a URL: is it allowed by robots, and does the domain have QPS
budget right now. Both checks are evaluated together so a caller gets
one Decision instead of having to sequence two separate systems.
*/

type Gate interface {
	Evaluate(ctx context.Context, target url.URL) (Decision, error)
	// RecordFetchOutcome feeds a fetch's pass/fail result back into the
	// gate's local per-host backoff, independent of the distributed QPS
	// ceiling: a host that keeps failing gets an additional, per-process
	// cooldown on top of whatever the shared Redis budget allows.
	RecordFetchOutcome(hostname string, success bool)
}

// RedisGate fuses the teacher's robots.RobotsFetcher (generalized to a
// distributed cache, see internal/gate/rediscache) with a Redis sorted-set
// sliding-window QPS counter evaluated atomically via a Lua script, plus
// the teacher's pkg/limiter.RateLimiter kept as a local adaptive-backoff
// layer: consecutive fetch failures against one host add an
// exponential cooldown on top of the shared QPS ceiling, and a
// successful fetch clears it.
type RedisGate struct {
	robotsFetcher *robots.RobotsFetcher
	redisClient   *redis.Client
	userAgent     string
	backoff       limiter.RateLimiter

	defaultQPS    float64
	domainQPS     map[string]float64
	windowSeconds int

	permissiveDefaultTTL time.Duration
}

type Config struct {
	UserAgent            string
	DefaultQPS           float64
	DomainQPS            map[string]float64
	WindowSeconds        int
	PermissiveDefaultTTL time.Duration
}

func NewRedisGate(robotsFetcher *robots.RobotsFetcher, redisClient *redis.Client, cfg Config) *RedisGate {
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 1
	}
	if cfg.DefaultQPS <= 0 {
		cfg.DefaultQPS = 1
	}
	if cfg.PermissiveDefaultTTL <= 0 {
		cfg.PermissiveDefaultTTL = 5 * time.Minute
	}
	return &RedisGate{
		robotsFetcher:        robotsFetcher,
		redisClient:          redisClient,
		userAgent:            cfg.UserAgent,
		backoff:              limiter.NewConcurrentRateLimiter(),
		defaultQPS:           cfg.DefaultQPS,
		domainQPS:            cfg.DomainQPS,
		windowSeconds:        cfg.WindowSeconds,
		permissiveDefaultTTL: cfg.PermissiveDefaultTTL,
	}
}

// RecordFetchOutcome marks host's most recent fetch as a success (clears
// any accumulated backoff) or failure (extends it) for the next Evaluate.
// MarkLastFetchAsNow always runs too, since ResolveDelay measures the
// cooldown from the last recorded fetch, not from when backoff started.
func (g *RedisGate) RecordFetchOutcome(hostname string, success bool) {
	if success {
		g.backoff.ResetBackoff(hostname)
	} else {
		g.backoff.Backoff(hostname)
	}
	g.backoff.MarkLastFetchAsNow(hostname)
}

func (g *RedisGate) Evaluate(ctx context.Context, target url.URL) (Decision, error) {
	hostname := target.Hostname()

	fetchResult, robotsErr := g.robotsFetcher.Fetch(ctx, target.Scheme, hostname)
	if robotsErr != nil {
		// A fetch failure defaults to a permissive policy rather than
		// blocking the domain outright - the teacher's own "don't
		// stampede a bad host" instinct. Nothing is cached for the
		// failure here, and permissiveDefaultTTL is not read.
		return g.admit(ctx, hostname, nil)
	}

	ruleSet := robots.MapResponseToRuleSet(fetchResult.Response, g.userAgent, fetchResult.FetchedAt)
	if !pathAllowed(ruleSet.AllowRules(), ruleSet.DisallowRules(), target.Path) {
		return Decision{Allowed: false, Reason: "disallowed_by_robots"}, nil
	}

	return g.admit(ctx, hostname, ruleSet.CrawlDelay())
}

// admit performs the QPS check-and-record for hostname, fusing the
// resolved ceiling (configured domain QPS, default QPS, 1/crawl-delay)
// the same way the teacher's ResolveDelay takes the max of candidate
// delays via timeutil.MaxDuration - generalized here from "delay" to
// "interval between admits".
func (g *RedisGate) admit(ctx context.Context, hostname string, crawlDelay *time.Duration) (Decision, error) {
	qps := g.defaultQPS
	if domainQPS, ok := g.domainQPS[hostname]; ok {
		qps = domainQPS
	}

	candidateIntervals := []time.Duration{time.Duration(float64(time.Second) / qps)}
	if crawlDelay != nil {
		candidateIntervals = append(candidateIntervals, *crawlDelay)
	}
	minInterval := timeutil.MaxDuration(candidateIntervals)
	effectiveQPS := qps
	if minInterval > 0 {
		effectiveQPS = float64(time.Second) / float64(minInterval)
	}

	admitted, wait, err := g.checkSlidingWindow(ctx, hostname, effectiveQPS)
	if err != nil {
		return Decision{}, err
	}

	totalWait := waitIfNotAdmitted(admitted, wait)
	if backoffWait := g.backoff.ResolveDelay(hostname); backoffWait > totalWait {
		totalWait = backoffWait
	}

	return Decision{
		Allowed:    true,
		Reason:     "allowed_by_robots",
		CrawlDelay: durationOrZero(crawlDelay),
		Wait:       totalWait,
	}, nil
}

func waitIfNotAdmitted(admitted bool, wait time.Duration) time.Duration {
	if admitted {
		return 0
	}
	return wait
}

func durationOrZero(d *time.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return *d
}

// slidingWindowScript implements ZREMRANGEBYSCORE+ZCARD+ZADD atomically:
// evict entries older than the window, count what remains, and only add
// the current timestamp (admitting the request) if under budget. Run as
// a single EVAL so two workers racing on the same domain key never both
// observe room under the ceiling.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = now - tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, tonumber(ARGV[2]) + 1)
  return 1
end
return 0
`

func (g *RedisGate) checkSlidingWindow(ctx context.Context, hostname string, qps float64) (bool, time.Duration, error) {
	key := fmt.Sprintf("gate:qps:%s", hostname)
	now := time.Now()
	limit := int(qps * float64(g.windowSeconds))
	if limit < 1 {
		limit = 1
	}
	member := fmt.Sprintf("%d-%s", now.UnixNano(), hostname)

	result, err := g.redisClient.Eval(ctx, slidingWindowScript, []string{key},
		now.Unix(), g.windowSeconds, limit, member).Int()
	if err != nil {
		return false, 0, fmt.Errorf("gate: sliding window eval: %w", err)
	}

	if result == 1 {
		return true, 0, nil
	}
	return false, time.Duration(float64(time.Second) / qps), nil
}

// prefixedRule is satisfied by the teacher's unexported robots.pathRule
// without this package ever needing to name that type; Go infers it as
// the type argument to pathAllowed at the call site.
type prefixedRule interface {
	Prefix() string
}

// pathAllowed implements longest-match allow-over-disallow: among all
// allow/disallow rules whose prefix matches path, the longest prefix
// wins; a tie between an allow and a disallow rule favors allow. No
// matching rule at all means the path is permitted.
func pathAllowed[R prefixedRule](allow, disallow []R, path string) bool {
	bestLen := -1
	bestAllowed := true

	consider := func(rules []R, allowed bool) {
		for _, r := range rules {
			prefix := r.Prefix()
			if prefix == "" || !strings.HasPrefix(path, prefix) {
				continue
			}
			if len(prefix) > bestLen || (len(prefix) == bestLen && allowed) {
				bestLen = len(prefix)
				bestAllowed = allowed
			}
		}
	}

	consider(disallow, false)
	consider(allow, true)

	return bestAllowed
}
