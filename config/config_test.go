package config

import (
	"os"
	"testing"
	"time"
)

func TestConfigDefaultValues(t *testing.T) {
	// Clear any existing env vars that might interfere
	envVars := []string{
		"PORT",
		"RATE_LIMIT_PER_SECOND",
		"RATE_LIMIT_BURST_LIMIT",
		"CACHED_RATE_LIMIT_PER_SECOND",
		"CACHED_RATE_LIMIT_BURST_LIMIT",
		"MAX_UPLOAD_MB",
		"SESSION_TTL_IN_SECONDS",
		"MIX_CACHE_PATH",
		"FFMPEG_PATH",
		"FFMPEG_SAMPLE_RATE",
		"DEFAULT_CREATED_BY",
		"FF_CACHE_COMPRESSION",
		"FF_MIX_LIMITER",
	}

	// Store original values
	originalValues := make(map[string]string)
	for _, key := range envVars {
		originalValues[key] = os.Getenv(key)
		os.Unsetenv(key)
	}
	defer func() {
		// Restore original values
		for key, value := range originalValues {
			if value != "" {
				os.Setenv(key, value)
			}
		}
	}()

	cfg, err := load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port default", cfg.Configuration.Port, "8080"},
		{"RateLimitPerSecond default", cfg.Configuration.RateLimitPerSecond, 20},
		{"RateLimitBurstLimit default", cfg.Configuration.RateLimitBurstLimit, 40},
		{"CachedRateLimitPerSecond default", cfg.Configuration.CachedRateLimitPerSecond, 50},
		{"CachedRateLimitBurstLimit default", cfg.Configuration.CachedRateLimitBurstLimit, 100},
		{"MaxUploadMB default", cfg.Configuration.MaxUploadMB, 200},
		{"SessionTTLInSeconds default", cfg.Configuration.SessionTTLInSeconds, 21600},
		{"MixCachePath default", cfg.Configuration.MixCachePath, ""},
		{"MixCacheMaxEntries default", cfg.Configuration.MixCacheMaxEntries, 64},
		{"StatsDBPath default", cfg.Configuration.StatsDBPath, ""},
		{"StatsSaveIntervalSec default", cfg.Configuration.StatsSaveIntervalSec, 300},
		{"FFmpegPath default", cfg.Configuration.FFmpegPath, ""},
		{"FFmpegSampleRate default", cfg.Configuration.FFmpegSampleRate, 44100},
		{"DefaultCreatedBy default", cfg.Configuration.DefaultCreatedBy, "LRC Editor v1.0"},
		{"CacheCompression default", cfg.FeatureFlags.CacheCompression, true},
		{"MixLimiter default", cfg.FeatureFlags.MixLimiter, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}
}

func TestConfigEnvironmentOverrides(t *testing.T) {
	os.Setenv("RATE_LIMIT_PER_SECOND", "5")
	os.Setenv("SESSION_TTL_IN_SECONDS", "60")
	os.Setenv("MAX_UPLOAD_MB", "1")
	os.Setenv("FFMPEG_PATH", "/usr/bin/ffmpeg")
	os.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,https://lrc.example.com")
	os.Setenv("FF_MIX_LIMITER", "true")

	defer func() {
		os.Unsetenv("RATE_LIMIT_PER_SECOND")
		os.Unsetenv("SESSION_TTL_IN_SECONDS")
		os.Unsetenv("MAX_UPLOAD_MB")
		os.Unsetenv("FFMPEG_PATH")
		os.Unsetenv("CORS_ALLOWED_ORIGINS")
		os.Unsetenv("FF_MIX_LIMITER")
	}()

	cfg, err := load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Configuration.RateLimitPerSecond != 5 {
		t.Errorf("Expected RateLimitPerSecond 5, got %d", cfg.Configuration.RateLimitPerSecond)
	}
	if cfg.SessionTTL() != time.Minute {
		t.Errorf("Expected SessionTTL 1m, got %v", cfg.SessionTTL())
	}
	if cfg.MaxUploadBytes() != 1<<20 {
		t.Errorf("Expected 1 MiB upload limit, got %d", cfg.MaxUploadBytes())
	}
	if cfg.Configuration.FFmpegPath != "/usr/bin/ffmpeg" {
		t.Errorf("Expected FFmpegPath override, got %q", cfg.Configuration.FFmpegPath)
	}
	origins := cfg.Configuration.CORSAllowedOrigins
	if len(origins) != 2 || origins[1] != "https://lrc.example.com" {
		t.Errorf("Expected two CORS origins, got %v", origins)
	}
	if !cfg.FeatureFlags.MixLimiter {
		t.Error("Expected MixLimiter enabled")
	}
}

func TestGet(t *testing.T) {
	cfg := Get()

	if cfg.Configuration.RateLimitPerSecond == 0 && cfg.Configuration.RateLimitBurstLimit == 0 {
		t.Error("Expected Get() to return initialized config, got zero values")
	}
}

func TestMustLoad(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("mustLoad() panicked: %v", r)
		}
	}()

	cfg := mustLoad()
	if cfg.Configuration.RateLimitPerSecond <= 0 {
		t.Error("Expected mustLoad to return valid config with positive RateLimitPerSecond")
	}
}

func TestFeatureFlagCacheCompression(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected bool
	}{
		{"Cache compression enabled (true)", "true", true},
		{"Cache compression disabled (false)", "false", false},
		{"Cache compression enabled (1)", "1", true},
		{"Cache compression disabled (0)", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("FF_CACHE_COMPRESSION", tt.envValue)
			defer os.Unsetenv("FF_CACHE_COMPRESSION")

			cfg, err := load()
			if err != nil {
				t.Fatalf("Failed to load config: %v", err)
			}

			if cfg.FeatureFlags.CacheCompression != tt.expected {
				t.Errorf("Expected CacheCompression %v, got %v", tt.expected, cfg.FeatureFlags.CacheCompression)
			}
		})
	}
}

func TestSessionSweepInterval(t *testing.T) {
	os.Setenv("SESSION_SWEEP_INTERVAL_IN_SECONDS", "30")
	defer os.Unsetenv("SESSION_SWEEP_INTERVAL_IN_SECONDS")

	cfg, err := load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.SessionSweepInterval() != 30*time.Second {
		t.Errorf("Expected 30s, got %v", cfg.SessionSweepInterval())
	}
}
