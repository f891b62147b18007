package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Configuration struct {
		Port     string `envconfig:"PORT" default:"8080"`
		LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

		// Playback ticks arrive several times a second, so the normal tier is generous
		RateLimitPerSecond        int `envconfig:"RATE_LIMIT_PER_SECOND" default:"20"`
		RateLimitBurstLimit       int `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"40"`
		CachedRateLimitPerSecond  int `envconfig:"CACHED_RATE_LIMIT_PER_SECOND" default:"50"` // read-only requests once the normal tier is spent
		CachedRateLimitBurstLimit int `envconfig:"CACHED_RATE_LIMIT_BURST_LIMIT" default:"100"`

		CacheAccessToken   string   `envconfig:"CACHE_ACCESS_TOKEN" default:""`
		APIKey             string   `envconfig:"API_KEY" default:""`
		APIKeyRequired     bool     `envconfig:"API_KEY_REQUIRED" default:"false"`
		CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

		MaxUploadMB                   int `envconfig:"MAX_UPLOAD_MB" default:"200"`
		SessionTTLInSeconds           int `envconfig:"SESSION_TTL_IN_SECONDS" default:"21600"`
		SessionSweepIntervalInSeconds int `envconfig:"SESSION_SWEEP_INTERVAL_IN_SECONDS" default:"600"`

		// Render cache for finished mixdowns; empty path disables it
		MixCachePath       string  `envconfig:"MIX_CACHE_PATH" default:""`
		MixCacheBackupPath string  `envconfig:"MIX_CACHE_BACKUP_PATH" default:"backups"`
		MixCacheMaxEntries int     `envconfig:"MIX_CACHE_MAX_ENTRIES" default:"64"`
		MixLimiterCeiling  float64 `envconfig:"MIX_LIMITER_CEILING" default:"0.98"`

		// Counters survive restarts when a stats path is set
		StatsDBPath          string `envconfig:"STATS_DB_PATH" default:""`
		StatsSaveIntervalSec int    `envconfig:"STATS_SAVE_INTERVAL_SECS" default:"300"`

		// ffmpeg decodes containers the built-in decoders cannot; empty path disables it
		FFmpegPath                 string `envconfig:"FFMPEG_PATH" default:""`
		FFmpegSampleRate           int    `envconfig:"FFMPEG_SAMPLE_RATE" default:"44100"`
		FFmpegTimeoutSecs          int    `envconfig:"FFMPEG_TIMEOUT_SECS" default:"120"`
		CircuitBreakerThreshold    int    `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`       // Consecutive failures before circuit opens
		CircuitBreakerCooldownSecs int    `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"300"` // Seconds to wait before retrying (default: 5 minutes)

		DefaultCreatedBy string `envconfig:"DEFAULT_CREATED_BY" default:"LRC Editor v1.0"`
		DefaultRevision  string `envconfig:"DEFAULT_REVISION" default:"LRC Editor"`
		DefaultVersion   string `envconfig:"DEFAULT_VERSION" default:"1.0"`
	}

	FeatureFlags struct {
		CacheCompression bool `envconfig:"FF_CACHE_COMPRESSION" default:"true"`
		MixLimiter       bool `envconfig:"FF_MIX_LIMITER" default:"false"`
	}
}

// SessionTTL returns how long an idle session is kept
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Configuration.SessionTTLInSeconds) * time.Second
}

// SessionSweepInterval returns how often idle sessions are collected
func (c Config) SessionSweepInterval() time.Duration {
	return time.Duration(c.Configuration.SessionSweepIntervalInSeconds) * time.Second
}

// MaxUploadBytes returns the request body limit for file uploads
func (c Config) MaxUploadBytes() int64 {
	return int64(c.Configuration.MaxUploadMB) << 20
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warnf("Error loading env config: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}
