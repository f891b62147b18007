package stats

import (
	"strings"
	"sync/atomic"
	"time"
)

// Stats holds all server statistics with atomic counters
type Stats struct {
	// Server info
	StartTime time.Time

	// Request counters
	TotalRequests   atomic.Int64
	SessionRequests atomic.Int64
	LRCRequests     atomic.Int64
	ExportRequests  atomic.Int64
	AudioRequests   atomic.Int64
	CacheRequests   atomic.Int64
	StatsRequests   atomic.Int64
	HealthRequests  atomic.Int64
	OtherRequests   atomic.Int64

	// Editor activity
	Uploads          atomic.Int64
	LinesParsed      atomic.Int64
	ParseFailures    atomic.Int64
	Exports          atomic.Int64
	ExportFailures   atomic.Int64
	StaleResults     atomic.Int64
	MixdownSuccesses atomic.Int64
	MixdownFailures  atomic.Int64

	// ffmpeg circuit breaker transitions
	BreakerTrips      atomic.Int64 // into OPEN
	BreakerRecoveries atomic.Int64 // back to CLOSED

	// Render cache performance
	CacheHits   atomic.Int64
	CacheMisses atomic.Int64

	// Rate limiting
	RateLimitNormal   atomic.Int64 // Requests served under normal rate limit
	RateLimitCached   atomic.Int64 // Requests served under read-only tier
	RateLimitExceeded atomic.Int64 // Requests rejected (429)

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (in microseconds for precision)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64

	// Mixdown render times (microseconds)
	mixdownTime  atomic.Int64
	mixdownCount atomic.Int64
}

// Request categories used by RecordRequest
const (
	CategorySession = "session"
	CategoryLRC     = "lrc"
	CategoryExport  = "export"
	CategoryAudio   = "audio"
	CategoryCache   = "cache"
	CategoryStats   = "stats"
	CategoryHealth  = "health"
	CategoryOther   = "other"
)

const maxInt64 = int64(^uint64(0) >> 1)

// Global stats instance
var global = newStats()

func newStats() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResponseTime.Store(maxInt64)
	return s
}

// Get returns the global stats instance
func Get() *Stats {
	return global
}

// Category maps a request path to the counter it is recorded under
func Category(path string) string {
	switch {
	case path == "/health":
		return CategoryHealth
	case path == "/stats":
		return CategoryStats
	case path == "/cache" || strings.HasPrefix(path, "/cache/"):
		return CategoryCache
	case strings.HasPrefix(path, "/lrc/"):
		return CategoryLRC
	case strings.HasPrefix(path, "/sessions"):
		switch {
		case strings.Contains(path, "/export."):
			return CategoryExport
		case strings.Contains(path, "/audio/"):
			return CategoryAudio
		}
		return CategorySession
	}
	return CategoryOther
}

// RecordRequest records a request to a specific path
func (s *Stats) RecordRequest(path string) {
	s.TotalRequests.Add(1)
	switch Category(path) {
	case CategorySession:
		s.SessionRequests.Add(1)
	case CategoryLRC:
		s.LRCRequests.Add(1)
	case CategoryExport:
		s.ExportRequests.Add(1)
	case CategoryAudio:
		s.AudioRequests.Add(1)
	case CategoryCache:
		s.CacheRequests.Add(1)
	case CategoryStats:
		s.StatsRequests.Add(1)
	case CategoryHealth:
		s.HealthRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordCacheHit records a render cache hit
func (s *Stats) RecordCacheHit() {
	s.CacheHits.Add(1)
}

// RecordCacheMiss records a render cache miss
func (s *Stats) RecordCacheMiss() {
	s.CacheMisses.Add(1)
}

// RecordUpload records an accepted file batch
func (s *Stats) RecordUpload() {
	s.Uploads.Add(1)
}

// RecordParse records the outcome of parsing an LRC document
func (s *Stats) RecordParse(lines int, err error) {
	if err != nil {
		s.ParseFailures.Add(1)
		return
	}
	s.LinesParsed.Add(int64(lines))
}

// RecordExport records the outcome of an export
func (s *Stats) RecordExport(err error) {
	if err != nil {
		s.ExportFailures.Add(1)
		return
	}
	s.Exports.Add(1)
}

// RecordStale records an async result discarded because the session moved on
func (s *Stats) RecordStale() {
	s.StaleResults.Add(1)
}

// RecordBreakerTrip records the ffmpeg breaker opening
func (s *Stats) RecordBreakerTrip() {
	s.BreakerTrips.Add(1)
}

// RecordBreakerRecovery records the ffmpeg breaker closing again
func (s *Stats) RecordBreakerRecovery() {
	s.BreakerRecoveries.Add(1)
}

// RecordMixdown records a finished mixdown and how long it took
func (s *Stats) RecordMixdown(duration time.Duration, err error) {
	if err != nil {
		s.MixdownFailures.Add(1)
		return
	}
	s.MixdownSuccesses.Add(1)
	s.mixdownTime.Add(duration.Microseconds())
	s.mixdownCount.Add(1)
}

// RecordRateLimit records rate limit tier usage
func (s *Stats) RecordRateLimit(tier string) {
	switch tier {
	case "normal":
		s.RateLimitNormal.Add(1)
	case "cached":
		s.RateLimitCached.Add(1)
	case "exceeded":
		s.RateLimitExceeded.Add(1)
	}
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time
func (s *Stats) RecordResponseTime(duration time.Duration) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	// Update min/max atomically
	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
}

// Uptime returns the server uptime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// CacheHitRate returns the render cache hit rate as a percentage
func (s *Stats) CacheHitRate() float64 {
	hits := s.CacheHits.Load()
	misses := s.CacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// AvgResponseTime returns the average response time
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MinResponseTime returns the minimum response time
func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == maxInt64 {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

// MaxResponseTime returns the maximum response time
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// AvgMixdownTime returns the average render time of successful mixdowns
func (s *Stats) AvgMixdownTime() time.Duration {
	count := s.mixdownCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.mixdownTime.Load()/count) * time.Microsecond
}

// Snapshot returns a point-in-time snapshot of all stats
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":    s.TotalRequests.Load(),
			"sessions": s.SessionRequests.Load(),
			"lrc":      s.LRCRequests.Load(),
			"export":   s.ExportRequests.Load(),
			"audio":    s.AudioRequests.Load(),
			"cache":    s.CacheRequests.Load(),
			"stats":    s.StatsRequests.Load(),
			"health":   s.HealthRequests.Load(),
			"other":    s.OtherRequests.Load(),
		},
		"editor": map[string]interface{}{
			"uploads":         s.Uploads.Load(),
			"lines_parsed":    s.LinesParsed.Load(),
			"parse_failures":  s.ParseFailures.Load(),
			"exports":         s.Exports.Load(),
			"export_failures": s.ExportFailures.Load(),
			"stale_results":   s.StaleResults.Load(),
		},
		"mixdown": map[string]interface{}{
			"successes": s.MixdownSuccesses.Load(),
			"failures":  s.MixdownFailures.Load(),
			"avg_time":  s.AvgMixdownTime().String(),
		},
		"breaker": map[string]interface{}{
			"trips":      s.BreakerTrips.Load(),
			"recoveries": s.BreakerRecoveries.Load(),
		},
		"cache": map[string]interface{}{
			"hits":     s.CacheHits.Load(),
			"misses":   s.CacheMisses.Load(),
			"hit_rate": s.CacheHitRate(),
		},
		"rate_limiting": map[string]interface{}{
			"normal_tier": s.RateLimitNormal.Load(),
			"cached_tier": s.RateLimitCached.Load(),
			"exceeded":    s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg": s.AvgResponseTime().String(),
			"min": s.MinResponseTime().String(),
			"max": s.MaxResponseTime().String(),
		},
	}
}
