package main

import (
	"context"
	"sync"

	"lrc-editor-go/audio"
	"lrc-editor-go/cache"
	"lrc-editor-go/circuitbreaker"
	"lrc-editor-go/config"
	"lrc-editor-go/lrc"
	"lrc-editor-go/middleware"
	"lrc-editor-go/session"
	"lrc-editor-go/stats"
	"lrc-editor-go/timeline"
)

// server holds everything the handlers share
type server struct {
	conf     config.Config
	registry *session.Registry
	mixdown  *audio.Mixdown
	mixCache *cache.MixCache                // nil when the render cache is disabled
	breaker  *circuitbreaker.CircuitBreaker // nil without ffmpeg
	limiter  *middleware.IPRateLimiter
	store    *stats.Store // nil when stats are not persisted

	// jobs tracks background mixdowns; jobCtx cancels them on shutdown
	jobs       sync.WaitGroup
	jobCtx     context.Context
	cancelJobs context.CancelFunc
}

// ParseResponse is returned by /lrc/parse
type ParseResponse struct {
	Metadata    lrc.Metadata         `json:"metadata"`
	Lines       []timeline.TimedLine `json:"lines"`
	Stats       timeline.Stats       `json:"stats"`
	Diagnostics lrc.Diagnostics      `json:"diagnostics,omitempty"`
}

// FormatRequest is accepted by /lrc/format
type FormatRequest struct {
	Metadata lrc.Metadata `json:"metadata"`
	Lines    []lrc.Line   `json:"lines"`
}

// AddLineRequest adds a line before Index; a missing index uses the
// session's pending insertion point
type AddLineRequest struct {
	Text  string `json:"text"`
	Index *int   `json:"index,omitempty"`
}

// UpdateLineRequest replaces a line's text
type UpdateLineRequest struct {
	Text string `json:"text"`
}

// SetTimeRequest sets a start or end time; a missing time (or Now) uses
// the current playback position
type SetTimeRequest struct {
	Kind string   `json:"kind"`
	Time *float64 `json:"time,omitempty"`
	Now  bool     `json:"now,omitempty"`
}

// AdjustTimeRequest nudges a time by Delta seconds
type AdjustTimeRequest struct {
	Kind  string  `json:"kind"`
	Delta float64 `json:"delta"`
}

// PlaybackRequest carries player updates. Position is a playback tick,
// Seek an explicit user seek.
type PlaybackRequest struct {
	Position   *float64 `json:"currentTime,omitempty"`
	Seek       *float64 `json:"seek,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
	Playing    *bool    `json:"playing,omitempty"`
	PlayLine   string   `json:"playLine,omitempty"`
	JumpToLine *int     `json:"jumpToLine,omitempty"`
	AddIndex   *int     `json:"addLyricIndex,omitempty"`
}

// PlaybackResponse reports the playback state after an update
type PlaybackResponse struct {
	ActiveIndex int              `json:"activeIndex"`
	Playback    session.Playback `json:"playback"`
	Pending     bool             `json:"pendingLoad"`
}

// SourceRequest selects an audio source
type SourceRequest struct {
	Source string `json:"source"`
}

// SourceLoadedRequest completes a pending source switch
type SourceLoadedRequest struct {
	ID uint64 `json:"id"`
}

// CacheEntryInfo describes one render in the /cache dump
type CacheEntryInfo struct {
	Key string `json:"key"`
	cache.Entry
}

// CachePerformance contains render cache hit/miss statistics
type CachePerformance struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate_percent"`
}

// CacheDumpResponse is the response format for /cache endpoint
type CacheDumpResponse struct {
	NumberOfKeys int              `json:"number_of_keys"`
	SizeInKB     int              `json:"size_kb"`
	SizeInMB     float64          `json:"size_mb"`
	Performance  CachePerformance `json:"performance"`
	Entries      []CacheEntryInfo `json:"entries"`
}
