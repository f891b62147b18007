package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"lrc-editor-go/logcolors"
	"lrc-editor-go/stats"
	"lrc-editor-go/utils"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	rendersBucket = "renders"
	entriesBucket = "entries"
)

// MixCache stores rendered mixdowns in BoltDB. Only entry metadata is
// kept in memory; the WAV payloads stay on disk.
type MixCache struct {
	mu                 sync.RWMutex // guards db across backup and restore
	db                 *bolt.DB
	index              sync.Map
	dbPath             string
	backupPath         string
	compressionEnabled bool
	maxEntries         int
}

// Entry describes one cached render
type Entry struct {
	Size       int       `json:"size"`
	StoredSize int       `json:"storedSize"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewMixCache opens (or creates) the render cache at dbPath. maxEntries <= 0
// means unbounded.
func NewMixCache(dbPath string, backupPath string, compressionEnabled bool, maxEntries int) (*MixCache, error) {
	dir := filepath.Dir(dbPath)
	if info, err := os.Stat(dir); err == nil {
		log.Infof("%s Directory %s exists (IsDir: %v)", logcolors.LogCacheInit, dir, info.IsDir())
	} else {
		log.Infof("%s Directory %s does not exist, creating...", logcolors.LogCacheInit, dir)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %v", err)
	}

	if err := os.MkdirAll(backupPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %v", err)
	}
	log.Infof("%s Backup directory set to: %s", logcolors.LogCacheInit, backupPath)

	if info, err := os.Stat(dbPath); err == nil {
		log.Infof("%s Found existing database file at: %s (size: %d bytes)", logcolors.LogCacheInit, dbPath, info.Size())
	} else {
		log.Infof("%s Creating new database file at: %s", logcolors.LogCacheInit, dbPath)
	}

	mc := &MixCache{
		dbPath:             dbPath,
		backupPath:         backupPath,
		compressionEnabled: compressionEnabled,
		maxEntries:         maxEntries,
	}
	if err := mc.open(); err != nil {
		return nil, err
	}

	log.Infof("%s Render cache initialized at %s (compression: %v, max entries: %d)",
		logcolors.LogCacheMix, dbPath, compressionEnabled, maxEntries)
	return mc, nil
}

// open opens the database, creates the buckets and rebuilds the index.
// Callers hold mu or have exclusive access.
func (mc *MixCache) open() error {
	db, err := bolt.Open(mc.dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to open cache database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{rendersBucket, entriesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create cache buckets: %v", err)
	}

	mc.db = db
	if err := mc.loadIndex(); err != nil {
		log.Warnf("%s Failed to load cache index: %v", logcolors.LogCache, err)
	}
	return nil
}

// loadIndex loads all entry metadata from disk to memory
func (mc *MixCache) loadIndex() error {
	mc.index.Range(func(k, _ interface{}) bool {
		mc.index.Delete(k)
		return true
	})

	count := 0
	err := mc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(entriesBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("%s Failed to unmarshal entry for key %s: %v", logcolors.LogCache, string(k), err)
				return nil
			}
			mc.index.Store(string(k), entry)
			count++
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Infof("%s Indexed %d cached renders", logcolors.LogCache, count)
	return nil
}

// Get returns the decompressed render stored under key
func (mc *MixCache) Get(key string) ([]byte, bool) {
	raw, ok := mc.index.Load(key)
	if !ok {
		stats.Get().RecordCacheMiss()
		return nil, false
	}
	entry := raw.(Entry)

	mc.mu.RLock()
	var data []byte
	err := mc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(rendersBucket))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		v := b.Get([]byte(key))
		if v == nil {
			return fmt.Errorf("key not found")
		}
		// bbolt values are only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	mc.mu.RUnlock()

	if err != nil {
		mc.index.Delete(key)
		stats.Get().RecordCacheMiss()
		return nil, false
	}

	if entry.Compressed {
		data, err = utils.DecompressBytes(data)
		if err != nil {
			log.Errorf("%s Error decompressing render for key %s: %v", logcolors.LogCache, key, err)
			stats.Get().RecordCacheMiss()
			return nil, false
		}
	}

	stats.Get().RecordCacheHit()
	return data, true
}

// Set stores a render under key, evicting the oldest renders beyond the
// configured limit
func (mc *MixCache) Set(key string, value []byte) error {
	stored := value
	compressed := false
	if mc.compressionEnabled {
		c, err := utils.CompressBytes(value, 0)
		if err != nil {
			log.Errorf("%s Error compressing render for key %s: %v", logcolors.LogCache, key, err)
			return err
		}
		// PCM rarely shrinks much; keep whichever is smaller
		if len(c) < len(value) {
			stored, compressed = c, true
		}
	}

	entry := Entry{
		Size:       len(value),
		StoredSize: len(stored),
		Compressed: compressed,
		CreatedAt:  time.Now(),
	}
	meta, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	mc.mu.RLock()
	err = mc.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(rendersBucket)).Put([]byte(key), stored); err != nil {
			return err
		}
		return tx.Bucket([]byte(entriesBucket)).Put([]byte(key), meta)
	})
	mc.mu.RUnlock()
	if err != nil {
		return err
	}

	mc.index.Store(key, entry)
	mc.evict()
	return nil
}

// evict removes the oldest entries until the cache is within maxEntries
func (mc *MixCache) evict() {
	if mc.maxEntries <= 0 {
		return
	}

	type keyed struct {
		key     string
		created time.Time
	}
	var all []keyed
	mc.index.Range(func(k, v interface{}) bool {
		all = append(all, keyed{k.(string), v.(Entry).CreatedAt})
		return true
	})
	if len(all) <= mc.maxEntries {
		return
	}

	sort.Slice(all, func(i, j int) bool { return all[i].created.Before(all[j].created) })
	for _, e := range all[:len(all)-mc.maxEntries] {
		if err := mc.Delete(e.key); err != nil {
			log.Warnf("%s Failed to evict %s: %v", logcolors.LogCache, e.key, err)
			continue
		}
		log.Debugf("%s Evicted %s", logcolors.LogCache, e.key)
	}
}

// Delete removes a key from cache
func (mc *MixCache) Delete(key string) error {
	mc.index.Delete(key)

	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(rendersBucket)).Delete([]byte(key)); err != nil {
			return err
		}
		return tx.Bucket([]byte(entriesBucket)).Delete([]byte(key))
	})
}

// Clear removes all entries from cache
func (mc *MixCache) Clear() error {
	mc.index.Range(func(key, _ interface{}) bool {
		mc.index.Delete(key)
		return true
	})

	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{rendersBucket, entriesBucket} {
			if err := tx.DeleteBucket([]byte(name)); err != nil {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Range iterates over the metadata of all cached renders
func (mc *MixCache) Range(fn func(key string, entry Entry) bool) {
	mc.index.Range(func(k, v interface{}) bool {
		return fn(k.(string), v.(Entry))
	})
}

// Stats returns the number of cached renders and their on-disk size
func (mc *MixCache) Stats() (numKeys int, sizeInKB int) {
	mc.index.Range(func(k, v interface{}) bool {
		numKeys++
		sizeInKB += len(k.(string)) + v.(Entry).StoredSize
		return true
	})
	sizeInKB = sizeInKB / 1024
	return
}

// Backup creates a backup of the cache database file
// Returns the backup file path
func (mc *MixCache) Backup() (string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.backupLocked()
}

func (mc *MixCache) backupLocked() (string, error) {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	backupFileName := fmt.Sprintf("mixcache_backup_%s.db", timestamp)
	backupFilePath := filepath.Join(mc.backupPath, backupFileName)

	log.Infof("%s Creating backup at: %s", logcolors.LogCacheBackup, backupFilePath)

	// Close the database temporarily to ensure all data is flushed
	if err := mc.db.Close(); err != nil {
		return "", fmt.Errorf("failed to close database for backup: %v", err)
	}

	if err := copyFile(mc.dbPath, backupFilePath); err != nil {
		mc.open()
		return "", fmt.Errorf("failed to copy database file: %v", err)
	}

	if err := mc.open(); err != nil {
		return "", fmt.Errorf("failed to reopen database after backup: %v", err)
	}

	log.Infof("%s Backup created successfully: %s", logcolors.LogCacheBackup, backupFilePath)
	return backupFilePath, nil
}

// BackupAndClear creates a backup of the cache and then clears it
func (mc *MixCache) BackupAndClear() (string, error) {
	backupPath, err := mc.Backup()
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %v", err)
	}

	if err := mc.Clear(); err != nil {
		return backupPath, fmt.Errorf("backup created but failed to clear cache: %v", err)
	}

	log.Infof("%s Cache cleared successfully (backup: %s)", logcolors.LogCacheClear, backupPath)
	return backupPath, nil
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// Close closes the database connection
func (mc *MixCache) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.db != nil {
		return mc.db.Close()
	}
	return nil
}

// BackupInfo contains metadata about a backup file
type BackupInfo struct {
	FileName  string    `json:"fileName"`
	FilePath  string    `json:"filePath"`
	Size      int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListBackups returns a list of all available backup files
func (mc *MixCache) ListBackups() ([]BackupInfo, error) {
	var backups []BackupInfo

	entries, err := os.ReadDir(mc.backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return backups, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %v", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warnf("%s Failed to get info for %s: %v", logcolors.LogCacheBackups, entry.Name(), err)
			continue
		}

		backups = append(backups, BackupInfo{
			FileName:  entry.Name(),
			FilePath:  filepath.Join(mc.backupPath, entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	return backups, nil
}

// RestoreFromBackup replaces the current cache database with a backup
func (mc *MixCache) RestoreFromBackup(backupFileName string) error {
	if filepath.Ext(backupFileName) != ".db" || filepath.Base(backupFileName) != backupFileName {
		return fmt.Errorf("invalid backup file: must be a .db file name")
	}

	backupFilePath := filepath.Join(mc.backupPath, backupFileName)
	if _, err := os.Stat(backupFilePath); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", backupFileName)
	}

	log.Infof("%s Starting restore from backup: %s", logcolors.LogCacheRestore, backupFileName)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if err := mc.db.Close(); err != nil {
		return fmt.Errorf("failed to close current database: %v", err)
	}

	currentBackupPath := mc.dbPath + ".pre-restore"
	if err := copyFile(mc.dbPath, currentBackupPath); err != nil {
		mc.open()
		return fmt.Errorf("failed to backup current database: %v", err)
	}

	if err := copyFile(backupFilePath, mc.dbPath); err != nil {
		copyFile(currentBackupPath, mc.dbPath)
		mc.open()
		return fmt.Errorf("failed to restore backup: %v", err)
	}

	os.Remove(currentBackupPath)

	if err := mc.open(); err != nil {
		return fmt.Errorf("failed to reopen database after restore: %v", err)
	}

	log.Infof("%s Successfully restored from backup: %s", logcolors.LogCacheRestore, backupFileName)
	return nil
}

// DeleteBackup deletes a specific backup file
func (mc *MixCache) DeleteBackup(backupFileName string) error {
	if filepath.Ext(backupFileName) != ".db" || filepath.Base(backupFileName) != backupFileName {
		return fmt.Errorf("invalid backup file: must be a .db file name")
	}

	backupFilePath := filepath.Join(mc.backupPath, backupFileName)
	if _, err := os.Stat(backupFilePath); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", backupFileName)
	}

	if err := os.Remove(backupFilePath); err != nil {
		return fmt.Errorf("failed to delete backup: %v", err)
	}

	log.Infof("%s Deleted backup: %s", logcolors.LogCacheBackup, backupFileName)
	return nil
}
