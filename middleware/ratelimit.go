package middleware

import (
	"context"
	"crypto/subtle"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"lrc-editor-go/logcolors"
	"lrc-editor-go/stats"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type contextKey string

const rateLimitTierKey contextKey = "rateLimitTier"

// Rate limit tiers reported in X-RateLimit-Type
const (
	TierBypass   = "bypass"
	TierNormal   = "normal"
	TierReadOnly = "cached"
	TierExceeded = "exceeded"
)

// LimiterPair holds the normal and read-only tier limiters for an IP
type LimiterPair struct {
	Normal   *rate.Limiter
	ReadOnly *rate.Limiter
	lastSeen time.Time
}

// GetNormalTokens returns the number of tokens available in the normal tier
func (lp *LimiterPair) GetNormalTokens() int {
	return int(math.Floor(lp.Normal.Tokens()))
}

// GetReadOnlyTokens returns the number of tokens available in the read-only tier
func (lp *LimiterPair) GetReadOnlyTokens() int {
	return int(math.Floor(lp.ReadOnly.Tokens()))
}

// IPRateLimiter manages two-tier rate limiting per IP. Any request may
// spend a normal token; once those run out, GET and HEAD requests fall
// back to the read-only tier and everything else is rejected.
type IPRateLimiter struct {
	ips           map[string]*LimiterPair
	mu            sync.Mutex
	normalRate    rate.Limit
	normalBurst   int
	readOnlyRate  rate.Limit
	readOnlyBurst int
	now           func() time.Time
}

// NewIPRateLimiter creates a new two-tier rate limiter
func NewIPRateLimiter(normalRate rate.Limit, normalBurst int, readOnlyRate rate.Limit, readOnlyBurst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:           make(map[string]*LimiterPair),
		normalRate:    normalRate,
		normalBurst:   normalBurst,
		readOnlyRate:  readOnlyRate,
		readOnlyBurst: readOnlyBurst,
		now:           time.Now,
	}
}

// GetNormalLimit returns the normal tier burst limit
func (i *IPRateLimiter) GetNormalLimit() int {
	return i.normalBurst
}

// GetReadOnlyLimit returns the read-only tier burst limit
func (i *IPRateLimiter) GetReadOnlyLimit() int {
	return i.readOnlyBurst
}

// GetLimiter returns the limiters for ip, creating them on first use
func (i *IPRateLimiter) GetLimiter(ip string) *LimiterPair {
	i.mu.Lock()
	defer i.mu.Unlock()

	pair, exists := i.ips[ip]
	if !exists {
		pair = &LimiterPair{
			Normal:   rate.NewLimiter(i.normalRate, i.normalBurst),
			ReadOnly: rate.NewLimiter(i.readOnlyRate, i.readOnlyBurst),
		}
		i.ips[ip] = pair
	}
	pair.lastSeen = i.now()
	return pair
}

// Len returns the number of tracked IPs
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ips)
}

// Cleanup forgets IPs that have not been seen for maxIdle and returns how
// many were removed
func (i *IPRateLimiter) Cleanup(maxIdle time.Duration) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	cutoff := i.now().Add(-maxIdle)
	removed := 0
	for ip, pair := range i.ips {
		if pair.lastSeen.Before(cutoff) {
			delete(i.ips, ip)
			removed++
		}
	}
	return removed
}

// RateLimitTier returns the tier a request was admitted under
func RateLimitTier(ctx context.Context) string {
	tier, _ := ctx.Value(rateLimitTierKey).(string)
	return tier
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isReadOnly(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

// Middleware applies the limiter to next. Requests carrying bypassKey in
// X-API-Key skip rate limiting entirely.
func (i *IPRateLimiter) Middleware(next http.Handler, bypassKey string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("X-API-Key"); key != "" && bypassKey != "" &&
			subtle.ConstantTimeCompare([]byte(key), []byte(bypassKey)) == 1 {
			w.Header().Set("X-RateLimit-Bypass", "true")
			next.ServeHTTP(w, withTier(r, TierBypass))
			return
		}

		ip := clientIP(r)
		limiters := i.GetLimiter(ip)

		if limiters.Normal.Allow() {
			stats.Get().RecordRateLimit(TierNormal)
			setLimitHeaders(w, i.normalBurst, limiters.GetNormalTokens(), TierNormal)
			next.ServeHTTP(w, withTier(r, TierNormal))
			return
		}

		if isReadOnly(r) && limiters.ReadOnly.Allow() {
			stats.Get().RecordRateLimit(TierReadOnly)
			setLimitHeaders(w, i.readOnlyBurst, limiters.GetReadOnlyTokens(), TierReadOnly)
			log.Debugf("%s IP %s exceeded normal tier, using read-only tier", logcolors.LogRateLimit, ip)
			next.ServeHTTP(w, withTier(r, TierReadOnly))
			return
		}

		stats.Get().RecordRateLimit(TierExceeded)
		log.Warnf("%s IP %s exceeded rate limit for %s %s", logcolors.LogRateLimit, ip, r.Method, r.URL.Path)
		setLimitHeaders(w, i.readOnlyBurst, 0, TierExceeded)
		w.Header().Set("Retry-After", "1")
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
	})
}

func withTier(r *http.Request, tier string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), rateLimitTierKey, tier))
}

func setLimitHeaders(w http.ResponseWriter, limit, remaining int, tier string) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Type", tier)
}
