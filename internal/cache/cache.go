// Package cache remembers match outcomes across runs, keyed by a fingerprint
// of the track's title, artist and album.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"trackbridge/internal/logging"
	"trackbridge/internal/models"
)

// Entry is the persisted outcome of one match attempt. Failed lookups are
// stored with Matched=false so they are not retried on the next run.
type Entry struct {
	// Source labels the track the entry was made for, as "artist - title".
	Source     string    `json:"source,omitempty"`
	Matched    bool      `json:"matched"`
	ID         string    `json:"id,omitempty"`
	URI        string    `json:"uri,omitempty"`
	Name       string    `json:"name,omitempty"`
	Artists    []string  `json:"artists,omitempty"`
	Album      string    `json:"album,omitempty"`
	Confidence float64   `json:"confidence"`
	Strategy   string    `json:"strategy,omitempty"`
	Error      string    `json:"error,omitempty"`
	CachedAt   time.Time `json:"cached_at"`
}

// Store is a backing store for the whole cache mapping. Load on a store that
// does not exist yet returns an empty map.
type Store interface {
	Load() (map[string]Entry, error)
	Save(entries map[string]Entry) error
}

// Fingerprint hashes the lowercased, trimmed title|artist|album. The title
// includes any version qualifier so a live cut does not reuse the studio
// match.
func Fingerprint(t models.NormalizedTrack) string {
	key := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(t.FullTitle())),
		strings.ToLower(strings.TrimSpace(t.Artist)),
		strings.ToLower(strings.TrimSpace(t.Album)),
	}, "|")
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// SourceLabel is the human-readable form of the fingerprinted fields.
func SourceLabel(t models.NormalizedTrack) string {
	title := t.FullTitle()
	switch {
	case t.Artist == "":
		return title
	case title == "":
		return t.Artist
	}
	return t.Artist + " - " + title
}

func EntryFromResult(r models.MatchResult, now time.Time) Entry {
	e := Entry{
		Source:     SourceLabel(r.Track),
		Confidence: r.Confidence,
		Strategy:   r.Strategy,
		Error:      r.Error,
		CachedAt:   now.UTC(),
	}
	if c := r.Candidate; c != nil {
		e.Matched = true
		e.ID = c.ID
		e.URI = c.URI
		e.Name = c.Name
		e.Artists = append([]string(nil), c.Artists...)
		e.Album = c.Album
	}
	return e
}

// Result rebuilds a MatchResult for t from a cached entry.
func (e Entry) Result(t models.NormalizedTrack) models.MatchResult {
	r := models.MatchResult{
		Track:      t,
		Confidence: e.Confidence,
		Strategy:   e.Strategy,
		Error:      e.Error,
		Cached:     true,
	}
	if e.Matched {
		r.Candidate = &models.MatchCandidate{
			ID:      e.ID,
			URI:     e.URI,
			Name:    e.Name,
			Artists: append([]string(nil), e.Artists...),
			Album:   e.Album,
		}
	} else {
		r.Confidence = 0
	}
	return r
}

// Cache is an in-memory view of a Store. It is safe for concurrent use; the
// batch matcher inserts from several goroutines at once.
type Cache struct {
	store    Store
	logger   *slog.Logger
	mu       sync.RWMutex
	entries  map[string]Entry
	dirty    bool
	detached bool // Load failed; Save leaves the store untouched
}

// New returns an empty cache backed by store. A nil store keeps everything
// in memory.
func New(store Store, logger *slog.Logger) *Cache {
	return &Cache{
		store:   store,
		logger:  logging.NewComponentLogger(logger, "cache"),
		entries: make(map[string]Entry),
	}
}

// Load replaces the in-memory entries with the store's contents.
func (c *Cache) Load() error {
	if c.store == nil {
		return nil
	}
	entries, err := c.store.Load()
	if err != nil {
		c.mu.Lock()
		c.detached = true
		c.mu.Unlock()
		return fmt.Errorf("load cache: %w", err)
	}
	if entries == nil {
		entries = make(map[string]Entry)
	}

	c.mu.Lock()
	c.entries = entries
	c.dirty = false
	c.detached = false
	c.mu.Unlock()

	c.logger.Debug("cache loaded", logging.Int("entries", len(entries)))
	return nil
}

// Save writes the entries back if anything changed since Load. After a
// failed Load it does nothing.
func (c *Cache) Save() error {
	if c.store == nil {
		return nil
	}
	c.mu.RLock()
	if c.detached {
		c.mu.RUnlock()
		c.logger.Debug("cache save skipped after failed load")
		return nil
	}
	if !c.dirty {
		c.mu.RUnlock()
		return nil
	}
	snapshot := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	if err := c.store.Save(snapshot); err != nil {
		return fmt.Errorf("save cache: %w", err)
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()

	c.logger.Debug("cache saved", logging.Int("entries", len(snapshot)))
	return nil
}

func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *Cache) Put(key string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
	c.dirty = true
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry; the change is persisted on the next Save.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
	c.dirty = true
}

// Keyed pairs an entry with its fingerprint.
type Keyed struct {
	Key string
	Entry
}

// List returns all entries, newest first.
func (c *Cache) List() []Keyed {
	c.mu.RLock()
	out := make([]Keyed, 0, len(c.entries))
	for k, e := range c.entries {
		out = append(out, Keyed{Key: k, Entry: e})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CachedAt.Equal(out[j].CachedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].CachedAt.After(out[j].CachedAt)
	})
	return out
}

type Stats struct {
	Entries int
	Matched int
	Failed  int
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		if e.Matched {
			s.Matched++
		} else {
			s.Failed++
		}
	}
	return s
}
