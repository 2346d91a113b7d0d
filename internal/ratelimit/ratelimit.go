// Package ratelimit is a Redis token bucket shared by every instance.
package ratelimit

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ms-registration/internal/config"
	"ms-registration/internal/logger"
	"ms-registration/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
)

var limiterScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		local until_next = interval_ms - (now_ms - last_refill)
		if until_next < 0 then until_next = 0 end
		retry_after_ms = until_next
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

type Limiter struct {
	cfg    config.RateLimitConfig
	client *redis.Client
	logger *logger.Logger
	now    func() time.Time
}

func New(cfg config.RateLimitConfig, client *redis.Client, log *logger.Logger) *Limiter {
	if cfg.TTL < time.Second {
		cfg.TTL = 10 * time.Minute
	}
	return &Limiter{cfg: cfg, client: client, logger: log, now: time.Now}
}

// Middleware limits requests per client IP and route. Redis failures let the
// request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if !l.cfg.Enabled || l.client == nil || l.cfg.Capacity <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.key(r)
		args := []interface{}{
			l.now().UnixMilli(),
			l.cfg.Capacity,
			l.cfg.RefillTokens,
			l.cfg.RefillInterval.Milliseconds(),
			int64(l.cfg.TTL / time.Second),
		}

		vals, err := limiterScript.Run(r.Context(), l.client, []string{key}, args...).Result()
		if err != nil {
			l.logger.Warn("RATELIMIT", fmt.Sprintf("redis error for key=%s: %v", key, err))
			next.ServeHTTP(w, r)
			return
		}
		arr, ok := vals.([]interface{})
		if !ok || len(arr) != 3 {
			l.logger.Warn("RATELIMIT", fmt.Sprintf("unexpected script result for key=%s: %#v", key, vals))
			next.ServeHTTP(w, r)
			return
		}

		allowed := asInt64(arr[0]) == 1
		remaining := asInt64(arr[1])
		retryMs := asInt64(arr[2])

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			secs := int(math.Ceil(float64(retryMs) / 1000.0))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			l.logger.LogSecurity("RATE_LIMITED", fmt.Sprintf("key=%s retry=%dms", key, retryMs))
			utils.WriteJSON(w, http.StatusTooManyRequests,
				utils.ErrorResponse("Too many requests", fmt.Sprintf("rate limit exceeded, retry in %ds", secs)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func (l *Limiter) key(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if ip == "" {
		ip = "unknown"
	}

	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			route = pattern
		}
	}
	return strings.Join([]string{l.cfg.Prefix, "ip", ip, "route", r.Method + " " + route}, ":")
}
