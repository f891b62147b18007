package main

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"sort"

	"lrc-editor-go/cache"
	"lrc-editor-go/circuitbreaker"
	"lrc-editor-go/logcolors"
	"lrc-editor-go/stats"

	log "github.com/sirupsen/logrus"
)

// authorized checks the admin token sent in the Authorization header
func (s *server) authorized(w http.ResponseWriter, r *http.Request) bool {
	token := s.conf.Configuration.CacheAccessToken
	provided := r.Header.Get("Authorization")
	if token == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
		Respond(w, r).Error(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return false
	}
	return true
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"help": "Create a session with POST /sessions, upload audio (and optionally an .lrc) to /sessions/{id}/files, " +
			"time lines via /sessions/{id}/lines/{lineID}/time and download /sessions/{id}/export.zip",
		"tools": []string{"POST /lrc/parse", "POST /lrc/format"},
	})
}

func (s *server) getHealthStatus(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":   "ok",
		"sessions": s.registry.Len(),
		"ffmpeg":   s.breaker != nil,
	}

	if s.breaker != nil {
		health["circuit_breaker"] = s.breaker.State().String()
		// Without ffmpeg only WAV and MP3 stems can be mixed
		if s.breaker.State() == circuitbreaker.StateOpen {
			health["status"] = "degraded"
			health["circuit_breaker_retry_in"] = s.breaker.TimeUntilRetry().String()
		}
	}

	health["render_cache"] = s.mixCache != nil
	Respond(w, r).JSON(health)
}

func (s *server) getStats(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	snapshot := stats.Get().Snapshot()
	snapshot["sessions"] = map[string]interface{}{
		"live": s.registry.Len(),
	}

	if s.mixCache != nil {
		numKeys, sizeInKB := s.mixCache.Stats()
		snapshot["cache_storage"] = map[string]interface{}{
			"keys":    numKeys,
			"size_kb": sizeInKB,
			"size_mb": float64(sizeInKB) / 1024,
		}
	}

	if s.breaker != nil {
		snapshot["circuit_breaker"] = map[string]interface{}{
			"state":              s.breaker.State().String(),
			"failures":           s.breaker.Failures(),
			"cooldown_remaining": s.breaker.TimeUntilRetry().String(),
		}
	}

	Respond(w, r).JSON(snapshot)
}

// requireCache writes 404 when the render cache is disabled
func (s *server) requireCache(w http.ResponseWriter, r *http.Request) bool {
	if !s.authorized(w, r) {
		return false
	}
	if s.mixCache == nil {
		Respond(w, r).Error(http.StatusNotFound, ErrorResponse{Error: "render cache is disabled (set MIX_CACHE_PATH)"})
		return false
	}
	return true
}

func (s *server) getCacheDump(w http.ResponseWriter, r *http.Request) {
	if !s.requireCache(w, r) {
		return
	}

	var entries []CacheEntryInfo
	s.mixCache.Range(func(key string, e cache.Entry) bool {
		entries = append(entries, CacheEntryInfo{Key: key, Entry: e})
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })

	numKeys, sizeInKB := s.mixCache.Stats()
	st := stats.Get()

	Respond(w, r).JSON(CacheDumpResponse{
		NumberOfKeys: numKeys,
		SizeInKB:     sizeInKB,
		SizeInMB:     float64(sizeInKB) / 1024,
		Performance: CachePerformance{
			Hits:    st.CacheHits.Load(),
			Misses:  st.CacheMisses.Load(),
			HitRate: st.CacheHitRate(),
		},
		Entries: entries,
	})
}

func (s *server) backupCache(w http.ResponseWriter, r *http.Request) {
	if !s.requireCache(w, r) {
		return
	}

	backupPath, err := s.mixCache.Backup()
	if err != nil {
		log.Errorf("%s Failed to create backup: %v", logcolors.LogCacheBackup, err)
		Respond(w, r).Error(http.StatusInternalServerError, ErrorResponse{Error: fmt.Sprintf("Failed to create backup: %v", err)})
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"message":     "Backup created successfully",
		"backup_path": backupPath,
	})
}

func (s *server) clearCache(w http.ResponseWriter, r *http.Request) {
	if !s.requireCache(w, r) {
		return
	}

	backupPath, err := s.mixCache.BackupAndClear()
	if err != nil {
		log.Errorf("%s Failed to backup and clear cache: %v", logcolors.LogCacheClear, err)
		Respond(w, r).Error(http.StatusInternalServerError, ErrorResponse{Error: fmt.Sprintf("Failed to backup and clear cache: %v", err)})
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"message":     "Cache cleared successfully",
		"backup_path": backupPath,
	})
}

func (s *server) listBackups(w http.ResponseWriter, r *http.Request) {
	if !s.requireCache(w, r) {
		return
	}

	backups, err := s.mixCache.ListBackups()
	if err != nil {
		log.Errorf("%s Failed to list backups: %v", logcolors.LogCacheBackups, err)
		Respond(w, r).Error(http.StatusInternalServerError, ErrorResponse{Error: fmt.Sprintf("Failed to list backups: %v", err)})
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"count":   len(backups),
		"backups": backups,
	})
}

func (s *server) restoreCache(w http.ResponseWriter, r *http.Request) {
	if !s.requireCache(w, r) {
		return
	}

	backupFileName := r.URL.Query().Get("backup")
	if backupFileName == "" {
		Respond(w, r).Error(http.StatusBadRequest, ErrorResponse{
			Error: "Missing 'backup' query parameter. Use /cache/backups to list available backups.",
		})
		return
	}

	if err := s.mixCache.RestoreFromBackup(backupFileName); err != nil {
		log.Errorf("%s Failed to restore from backup %s: %v", logcolors.LogCacheRestore, backupFileName, err)
		Respond(w, r).Error(http.StatusInternalServerError, ErrorResponse{Error: fmt.Sprintf("Failed to restore from backup: %v", err)})
		return
	}

	numKeys, sizeKB := s.mixCache.Stats()
	Respond(w, r).JSON(map[string]interface{}{
		"message":       "Cache restored successfully",
		"restored_from": backupFileName,
		"keys_restored": numKeys,
		"size_kb":       sizeKB,
	})
}

func (s *server) getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if s.breaker == nil {
		Respond(w, r).JSON(map[string]interface{}{"enabled": false})
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"enabled":      true,
		"name":         s.breaker.Name(),
		"state":        s.breaker.State().String(),
		"failures":     s.breaker.Failures(),
		"retry_in":     s.breaker.TimeUntilRetry().String(),
		"ffmpeg_path":  s.conf.Configuration.FFmpegPath,
		"sample_rate":  s.conf.Configuration.FFmpegSampleRate,
		"threshold":    s.conf.Configuration.CircuitBreakerThreshold,
		"cooldown_sec": s.conf.Configuration.CircuitBreakerCooldownSecs,
	})
}

func (s *server) resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if s.breaker == nil {
		Respond(w, r).Error(http.StatusNotFound, ErrorResponse{Error: "ffmpeg is not configured"})
		return
	}

	s.breaker.Reset()
	log.Infof("%s Reset via API", logcolors.CircuitBreakerPrefix(s.breaker.Name()))
	Respond(w, r).JSON(map[string]interface{}{
		"message": "Circuit breaker reset",
		"state":   s.breaker.State().String(),
	})
}
