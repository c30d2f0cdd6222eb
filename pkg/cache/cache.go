// Package cache implements the file fingerprint cache backing the
// orchestrator's step 4: a JSON-backed, directory-level-locked map from
// repo-relative path to its last-seen content hash and findings, pruned
// by TTL.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/archkit/archkit/pkg/types"
)

// Entry is one cached file's last-evaluated state.
type Entry struct {
	SHA256    string            `json:"sha256"`
	Findings  types.RuleFailure `json:"findings"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Cache is a process-local view of the on-disk fingerprint cache file.
type Cache struct {
	fs   afero.Fs
	path string
	ttl  time.Duration

	mu      sync.Mutex
	entries map[string]Entry
}

// Fingerprint returns the hex sha256 digest of content.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Load reads the cache file at path (a plain miss if it doesn't exist
// yet) with the given TTL for entry expiry.
func Load(fs afero.Fs, path string, ttl time.Duration) (*Cache, error) {
	c := &Cache{fs: fs, path: path, ttl: ttl, entries: make(map[string]Entry)}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		// A corrupted cache file degrades to an empty cache rather than
		// failing the run; every file is simply treated as changed.
		return &Cache{fs: fs, path: path, ttl: ttl, entries: make(map[string]Entry)}, nil
	}
	return c, nil
}

// Lookup returns the cached findings for relPath if its sha256 matches
// and the entry hasn't expired.
func (c *Cache) Lookup(relPath, sha256Hex string) (types.RuleFailure, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[relPath]
	if !ok || entry.SHA256 != sha256Hex {
		return types.RuleFailure{}, false
	}
	if c.ttl > 0 && time.Since(entry.UpdatedAt) > c.ttl {
		return types.RuleFailure{}, false
	}
	return entry.Findings, true
}

// Store records relPath's current fingerprint and findings.
func (c *Cache) Store(relPath, sha256Hex string, findings types.RuleFailure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[relPath] = Entry{SHA256: sha256Hex, Findings: findings, UpdatedAt: time.Now()}
}

// Prune drops entries older than the TTL.
func (c *Cache) Prune() {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, entry := range c.entries {
		if time.Since(entry.UpdatedAt) > c.ttl {
			delete(c.entries, path)
		}
	}
}

// lockSuffix names the advisory lockfile created alongside the cache
// file. A plain O_EXCL create/delete is sufficient here: the cache is
// only ever written once per run, at the end of the orchestrator's
// per-file loop, so contention is between separate archkit processes
// racing to persist, not between goroutines within one.
const lockSuffix = ".lock"

// Save persists the cache to disk, holding a directory-level advisory
// lock (an O_EXCL lockfile) for the duration of the write so two
// concurrent archkit processes against the same cache path don't
// interleave writes.
func (c *Cache) Save() error {
	lockPath := c.path + lockSuffix
	if err := c.acquireLock(lockPath); err != nil {
		return err
	}
	defer c.fs.Remove(lockPath)

	c.mu.Lock()
	data, err := json.Marshal(c.entries)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(c.fs, c.path, data, 0o644)
}

func (c *Cache) acquireLock(lockPath string) error {
	const maxAttempts = 50
	const retryDelay = 20 * time.Millisecond

	for attempt := 0; attempt < maxAttempts; attempt++ {
		f, err := c.fs.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return err
		}
		time.Sleep(retryDelay)
	}
	return errors.New("cache: timed out acquiring advisory lock " + lockPath)
}
