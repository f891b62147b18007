package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"lrc-editor-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "server_stats"
)

// Store handles persistent storage for stats
type Store struct {
	db       *bolt.DB
	dbPath   string
	stats    *Stats
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// PersistedStats represents the stats data that gets persisted to disk
type PersistedStats struct {
	// Cumulative counters (these accumulate across restarts)
	Counters map[string]int64 `json:"counters"`

	// Response time tracking
	TotalResponseTime int64 `json:"total_response_time"`
	ResponseCount     int64 `json:"response_count"`
	MinResponseTime   int64 `json:"min_response_time"`
	MaxResponseTime   int64 `json:"max_response_time"`
	MixdownTime       int64 `json:"mixdown_time"`
	MixdownCount      int64 `json:"mixdown_count"`

	// Metadata
	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// counters names every persisted counter of s
func (s *Stats) counters() map[string]*atomic.Int64 {
	return map[string]*atomic.Int64{
		"total_requests":      &s.TotalRequests,
		"session_requests":    &s.SessionRequests,
		"lrc_requests":        &s.LRCRequests,
		"export_requests":     &s.ExportRequests,
		"audio_requests":      &s.AudioRequests,
		"cache_requests":      &s.CacheRequests,
		"stats_requests":      &s.StatsRequests,
		"health_requests":     &s.HealthRequests,
		"other_requests":      &s.OtherRequests,
		"uploads":             &s.Uploads,
		"lines_parsed":        &s.LinesParsed,
		"parse_failures":      &s.ParseFailures,
		"exports":             &s.Exports,
		"export_failures":     &s.ExportFailures,
		"stale_results":       &s.StaleResults,
		"mixdown_successes":   &s.MixdownSuccesses,
		"mixdown_failures":    &s.MixdownFailures,
		"breaker_trips":       &s.BreakerTrips,
		"breaker_recoveries":  &s.BreakerRecoveries,
		"cache_hits":          &s.CacheHits,
		"cache_misses":        &s.CacheMisses,
		"rate_limit_normal":   &s.RateLimitNormal,
		"rate_limit_cached":   &s.RateLimitCached,
		"rate_limit_exceeded": &s.RateLimitExceeded,
		"status_2xx":          &s.Status2xx,
		"status_4xx":          &s.Status4xx,
		"status_5xx":          &s.Status5xx,
	}
}

// NewStore creates a stats store with a dedicated BoltDB file for the
// global stats
func NewStore(dbPath string) (*Store, error) {
	return newStore(dbPath, Get())
}

func newStore(dbPath string, s *Stats) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %v", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %v", err)
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return &Store{
		db:       db,
		dbPath:   dbPath,
		stats:    s,
		stopChan: make(chan struct{}),
	}, nil
}

// Load reads persisted stats from disk and applies them
func (st *Store) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	var persisted PersistedStats
	found := false
	err := st.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &persisted)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %v", err)
	}
	if !found {
		return nil
	}

	s := st.stats
	for name, counter := range s.counters() {
		counter.Store(persisted.Counters[name])
	}
	s.totalResponseTime.Store(persisted.TotalResponseTime)
	s.responseCount.Store(persisted.ResponseCount)
	s.mixdownTime.Store(persisted.MixdownTime)
	s.mixdownCount.Store(persisted.MixdownCount)

	// Only update min/max if we have valid persisted values
	if persisted.MinResponseTime > 0 && persisted.MinResponseTime < maxInt64 {
		s.minResponseTime.Store(persisted.MinResponseTime)
	}
	if persisted.MaxResponseTime > 0 {
		s.maxResponseTime.Store(persisted.MaxResponseTime)
	}

	if !persisted.FirstStarted.IsZero() {
		s.StartTime = persisted.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d, first started: %s)",
		logcolors.LogStats, s.TotalRequests.Load(), persisted.FirstStarted.Format(time.RFC3339))
	return nil
}

// Save persists current stats to disk
func (st *Store) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.stats
	persisted := PersistedStats{
		Counters:          make(map[string]int64),
		TotalResponseTime: s.totalResponseTime.Load(),
		ResponseCount:     s.responseCount.Load(),
		MinResponseTime:   s.minResponseTime.Load(),
		MaxResponseTime:   s.maxResponseTime.Load(),
		MixdownTime:       s.mixdownTime.Load(),
		MixdownCount:      s.mixdownCount.Load(),
		LastSaved:         time.Now(),
		FirstStarted:      s.StartTime,
	}
	for name, counter := range s.counters() {
		persisted.Counters[name] = counter.Load()
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %v", err)
	}

	err = st.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return fmt.Errorf("stats bucket not found")
		}
		return b.Put([]byte(statsKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save stats: %v", err)
	}
	return nil
}

// StartAutoSave begins periodic saving of stats
func (st *Store) StartAutoSave(interval time.Duration) {
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := st.Save(); err != nil {
					log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
				}
			case <-st.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
}

// Close saves stats and closes the database
func (st *Store) Close() error {
	st.stopOnce.Do(func() { close(st.stopChan) })
	st.wg.Wait()

	if err := st.Save(); err != nil {
		log.Warnf("%s Failed to save stats on close: %v", logcolors.LogStats, err)
	} else {
		log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
	}

	return st.db.Close()
}
