package middleware

import (
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/vaskular/vaskular-backend/internal/config"
)

// tokenBucketScript refills and debits one bucket atomically.  The bucket
// hash holds the token count and the time of the last whole refill step.
// Reply: {allowed (1|0), tokens left, ms until the next token}.
var tokenBucketScript = redis.NewScript(`
local bucket = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local every = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', bucket, 'tokens', 'stamp')
local tokens = tonumber(state[1])
local stamp = tonumber(state[2])
if tokens == nil or stamp == nil then
    tokens = capacity
    stamp = now
end

local steps = math.floor(math.max(0, now - stamp) / every)
if steps > 0 then
    tokens = math.min(capacity, tokens + steps * refill)
    stamp = stamp + steps * every
end

local allowed = 0
local wait = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
else
    wait = math.max(0, every - (now - stamp))
end

redis.call('HSET', bucket, 'tokens', tokens, 'stamp', stamp)
redis.call('EXPIRE', bucket, ttl)
return {allowed, tokens, wait}
`)

// NewTokenBucket limits inbound requests per client with a token bucket kept
// in Redis, so several server instances share one budget.  When the limiter
// is disabled, Redis is absent or the script fails, requests pass through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    everyMs := max(cfg.RefillInterval.Milliseconds(), 1)
    ttlSecs := max(int64(cfg.TTL/time.Second), 1)
    limit := strconv.Itoa(cfg.Capacity)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            vals, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key},
                time.Now().UnixMilli(), cfg.Capacity, cfg.RefillTokens, everyMs, ttlSecs).Result()
            if err != nil {
                if cfg.Debug {
                    c.Logger().Warnf("ratelimit: script failed for %s: %v", key, err)
                }
                return next(c)
            }
            allowed, remaining, waitMs, ok := parseLimiterResult(vals)
            if !ok {
                if cfg.Debug {
                    c.Logger().Warnf("ratelimit: unexpected reply for %s: %#v", key, vals)
                }
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", limit)
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if allowed {
                return next(c)
            }

            secs := max(int(math.Ceil(float64(waitMs)/1000)), 1)
            h.Set("Retry-After", strconv.Itoa(secs))
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "detail":      "Rate limit exceeded",
                "retry_after": secs,
            })
        }
    }
}

// parseLimiterResult decodes the script's {allowed, tokens, retry_after_ms}
// reply.
func parseLimiterResult(vals interface{}) (allowed bool, remaining, retryMs int64, ok bool) {
    arr, isArr := vals.([]interface{})
    if !isArr || len(arr) != 3 {
        return false, 0, 0, false
    }
    return asInt64(arr[0]) == 1, asInt64(arr[1]), asInt64(arr[2]), true
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64: return t
    case int32: return int64(t)
    case int: return int64(t)
    case float64: return int64(t)
    case float32: return int64(t)
    case string:
        if n, err := strconv.ParseInt(t, 10, 64); err == nil { return n }
    }
    return 0
}

// buildRateKey joins the request attributes selected by cfg.KeyStrategy.
// "user" is the user_id path parameter, which is only present on the
// per-user routes; anonymous routes count as "anon".
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    uid := c.Param("user_id")
    if uid == "" {
        uid = "anon"
    }
    route := c.Request().Method + " " + c.Path()

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", uid)
    case "route":
        parts = append(parts, "route", route)
    case "ip_user":
        parts = append(parts, "ip", ip, "user", uid)
    case "user_route":
        parts = append(parts, "user", uid, "route", route)
    case "ip_user_route":
        parts = append(parts, "ip", ip, "user", uid, "route", route)
    default: // "ip_route"
        parts = append(parts, "ip", ip, "route", route)
    }
    return strings.Join(parts, ":")
}
