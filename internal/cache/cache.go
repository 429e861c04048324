// Package cache persists parsed build contexts between runs. Entries are
// keyed by descriptor path plus the exact build configuration, validated on
// read against both an age limit and the current content hash of the
// descriptor file. Any unreadable, stale, or mismatched entry is a miss,
// never an error: the caller simply reparses.
package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

const (
	entryVersion = 1

	// DefaultTTL bounds how long an entry stays usable even when the
	// descriptor file itself has not changed.
	DefaultTTL = 24 * time.Hour
)

// Store is a directory of JSON cache entries, one file per key.
type Store struct {
	dir    string
	ttl    time.Duration
	logger *slog.Logger

	now func() time.Time
}

func New(dir string, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{dir: dir, ttl: ttl, logger: logger, now: time.Now}
}

type entry struct {
	Version        int               `json:"version"`
	Timestamp      time.Time         `json:"timestamp"`
	DescriptorPath string            `json:"descriptor_path"`
	Flags          map[string]string `json:"flags"`
	DescriptorHash string            `json:"descriptor_hash"`
	Payload        json.RawMessage   `json:"payload"`
}

// Key derives the entry name from the descriptor path and the full build
// configuration. Flags are folded in sorted order so map iteration cannot
// produce two keys for one configuration.
func Key(descriptorPath string, flags map[string]string) string {
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(descriptorPath)
	for _, name := range names {
		b.WriteByte('\n')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(flags[name])
	}
	return fmt.Sprintf("%016x", xxh3.HashString(b.String()))
}

func (s *Store) entryPath(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxh3.Hash(data)), nil
}

// Save stores payload under the key for this descriptor and configuration.
// The entry records the descriptor's current content hash so later edits
// invalidate it regardless of age.
func (s *Store) Save(descriptorPath string, flags map[string]string, payload any) error {
	hash, err := hashFile(descriptorPath)
	if err != nil {
		return fmt.Errorf("hashing descriptor %s: %w", descriptorPath, err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding cache payload: %w", err)
	}

	data, err := json.MarshalIndent(entry{
		Version:        entryVersion,
		Timestamp:      s.now(),
		DescriptorPath: descriptorPath,
		Flags:          flags,
		DescriptorHash: hash,
		Payload:        raw,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	path := s.entryPath(Key(descriptorPath, flags))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Load reads the entry for this descriptor and configuration into out and
// reports whether it was a usable hit.
func (s *Store) Load(descriptorPath string, flags map[string]string, out any) bool {
	ent, ok := s.validEntry(descriptorPath, flags)
	if !ok {
		return false
	}
	if err := json.Unmarshal(ent.Payload, out); err != nil {
		s.logger.Debug("cache payload undecodable, treating as miss", "key", Key(descriptorPath, flags), "error", err)
		return false
	}
	return true
}

// IsValid reports whether a usable entry exists without decoding its payload.
func (s *Store) IsValid(descriptorPath string, flags map[string]string) bool {
	_, ok := s.validEntry(descriptorPath, flags)
	return ok
}

func (s *Store) validEntry(descriptorPath string, flags map[string]string) (entry, bool) {
	key := Key(descriptorPath, flags)
	data, err := os.ReadFile(s.entryPath(key))
	if err != nil {
		return entry{}, false
	}

	var ent entry
	if err := json.Unmarshal(data, &ent); err != nil {
		s.logger.Debug("cache entry corrupt, treating as miss", "key", key, "error", err)
		return entry{}, false
	}
	if ent.Version != entryVersion {
		return entry{}, false
	}
	if s.now().Sub(ent.Timestamp) > s.ttl {
		return entry{}, false
	}

	hash, err := hashFile(descriptorPath)
	if err != nil || hash != ent.DescriptorHash {
		return entry{}, false
	}
	return ent, true
}

// Clear removes every entry in the cache directory. A missing directory is
// already clear.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("removing cache entry %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Stats summarizes the on-disk cache.
type Stats struct {
	Dir        string    `json:"dir"`
	Entries    int       `json:"entries"`
	TotalBytes int64     `json:"total_bytes"`
	Oldest     time.Time `json:"oldest,omitempty"`
	Newest     time.Time `json:"newest,omitempty"`
}

// Stats walks the cache directory and reports entry count, total size, and
// the timestamp spread. Undecodable entries still count toward size.
func (s *Store) Stats() (Stats, error) {
	stats := Stats{Dir: s.dir}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("reading cache directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalBytes += info.Size()

		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var ent entry
		if err := json.Unmarshal(data, &ent); err != nil {
			continue
		}
		if stats.Oldest.IsZero() || ent.Timestamp.Before(stats.Oldest) {
			stats.Oldest = ent.Timestamp
		}
		if ent.Timestamp.After(stats.Newest) {
			stats.Newest = ent.Timestamp
		}
	}
	return stats, nil
}
