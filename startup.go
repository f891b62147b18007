package main

import (
	"context"
	"net/http"
	"time"

	"lrc-editor-go/audio"
	"lrc-editor-go/cache"
	"lrc-editor-go/circuitbreaker"
	"lrc-editor-go/config"
	"lrc-editor-go/logcolors"
	"lrc-editor-go/lrc"
	"lrc-editor-go/middleware"
	"lrc-editor-go/session"
	"lrc-editor-go/stats"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Paths reachable without an API key even when one is required
var publicPaths = []string{"/", "/health", "/lrc/*"}

// onBreakerChange counts ffmpeg breaker trips and recoveries
func onBreakerChange(name string, from, to circuitbreaker.State) {
	switch to {
	case circuitbreaker.StateOpen:
		stats.Get().RecordBreakerTrip()
		log.Warnf("%s %s -> %s, only WAV and MP3 stems can be mixed", logcolors.CircuitBreakerPrefix(name), from, to)
	case circuitbreaker.StateClosed:
		stats.Get().RecordBreakerRecovery()
		log.Infof("%s %s -> %s", logcolors.CircuitBreakerPrefix(name), from, to)
	}
}

// newServer wires the session registry, the mixdown engine and the optional
// render cache and stats store from configuration
func newServer(conf config.Config) *server {
	c := conf.Configuration

	s := &server{
		conf: conf,
		registry: session.NewRegistry(conf.SessionTTL(), session.Options{
			Defaults: lrc.Metadata{
				CreatedBy: c.DefaultCreatedBy,
				Revision:  c.DefaultRevision,
				Version:   c.DefaultVersion,
			},
		}),
		limiter: middleware.NewIPRateLimiter(
			rate.Limit(c.RateLimitPerSecond), c.RateLimitBurstLimit,
			rate.Limit(c.CachedRateLimitPerSecond), c.CachedRateLimitBurstLimit,
		),
	}
	s.jobCtx, s.cancelJobs = context.WithCancel(context.Background())

	var fallback audio.Decoder
	if c.FFmpegPath != "" {
		s.breaker = circuitbreaker.New(circuitbreaker.Config{
			Name:      "ffmpeg",
			Threshold: c.CircuitBreakerThreshold,
			Cooldown:  time.Duration(c.CircuitBreakerCooldownSecs) * time.Second,

			OnStateChange: onBreakerChange,
		})
		fallback = audio.NewFFmpegDecoder(c.FFmpegPath, c.FFmpegSampleRate, s.breaker)
		log.Infof("%s ffmpeg fallback enabled at %s (%d Hz)", logcolors.LogFFmpeg, c.FFmpegPath, c.FFmpegSampleRate)
	}

	s.mixdown = &audio.Mixdown{Decoder: audio.NewSniffDecoder(fallback)}
	if conf.FeatureFlags.MixLimiter {
		s.mixdown.Ceiling = float32(c.MixLimiterCeiling)
	}

	if c.MixCachePath != "" {
		mc, err := cache.NewMixCache(c.MixCachePath, c.MixCacheBackupPath, conf.FeatureFlags.CacheCompression, c.MixCacheMaxEntries)
		if err != nil {
			log.Errorf("%s Render cache disabled: %v", logcolors.LogCacheInit, err)
		} else {
			s.mixCache = mc
			s.mixdown.Cache = mc
		}
	}

	if c.StatsDBPath != "" {
		store, err := stats.NewStore(c.StatsDBPath)
		if err != nil {
			log.Errorf("%s Stats persistence disabled: %v", logcolors.LogStats, err)
		} else {
			if err := store.Load(); err != nil {
				log.Warnf("%s %v", logcolors.LogStats, err)
			}
			s.store = store
		}
	}

	return s
}

// handler builds the middleware chain around the router
func (s *server) handler() http.Handler {
	c := s.conf.Configuration

	router := mux.NewRouter()
	s.setupRoutes(router)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: c.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
		ExposedHeaders: []string{"Content-Disposition", "X-RateLimit-Type", "X-RateLimit-Remaining", "X-Session-Revision", "X-Cache-Status"},
	}).Handler(middleware.APIKeyMiddleware(c.APIKey, c.APIKeyRequired, publicPaths)(router))

	return middleware.LoggingMiddleware(s.limiter.Middleware(corsHandler, c.APIKey))
}

// runBackground starts the session sweeper, the limiter cleanup and the
// stats auto-save until ctx is done
func (s *server) runBackground(ctx context.Context) {
	go s.registry.Run(ctx, s.conf.SessionSweepInterval())

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.limiter.Cleanup(30 * time.Minute); n > 0 {
					log.Debugf("%s Forgot %d idle clients", logcolors.LogRateLimit, n)
				}
			}
		}
	}()

	if s.store != nil {
		s.store.StartAutoSave(time.Duration(s.conf.Configuration.StatsSaveIntervalSec) * time.Second)
	}
}

// close stops background mixdowns and flushes persistent state
func (s *server) close() {
	s.cancelJobs()
	s.jobs.Wait()

	if s.mixCache != nil {
		if err := s.mixCache.Close(); err != nil {
			log.Warnf("%s Failed to close render cache: %v", logcolors.LogCache, err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Warnf("%s Failed to close stats store: %v", logcolors.LogStats, err)
		}
	}
}
