package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const (
	indexFile = "cache.index"
	// buffers below this size are stored as is
	compressThreshold = 1024
)

// DiskCache persists PCM buffers across sessions, compressed with zstd.
type DiskCache struct {
	dir      string
	capacity int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu    sync.Mutex
	size  int64
	index map[string]*diskEntry
	stats Stats
}

// diskEntry is persisted in the gob index, so its fields are exported.
type diskEntry struct {
	Key        string
	File       string
	Size       int64 // on disk
	Original   int64
	Stored     time.Time
	LastAccess time.Time
	Compressed bool
}

// NewDiskCache opens or creates a disk cache in dir. A compression level of
// zero stores buffers uncompressed.
func NewDiskCache(dir string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
	}

	if compressionLevel > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}

	// entries written with compression stay readable after it is disabled
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	dc.decoder = decoder

	if err := dc.loadIndex(); err != nil {
		log.Warn("Discarding unreadable cache index", "dir", dir, "err", err)
		dc.index = make(map[string]*diskEntry)
	}
	for _, e := range dc.index {
		dc.size += e.Size
	}
	if err := dc.adoptOrphans(); err != nil {
		log.Debug("Could not scan cache directory", "dir", dir, "err", err)
	}

	return dc, nil
}

// Get reads and decompresses a value.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := dc.read(entry)
	if err != nil {
		log.Debug("Dropping unreadable cache entry", "key", key, "err", err)
		dc.removeEntry(entry)
		dc.stats.Misses++
		return nil, false
	}

	entry.LastAccess = time.Now()
	entry.Original = int64(len(data))
	dc.stats.Hits++
	return data, true
}

func (dc *DiskCache) read(entry *diskEntry) ([]byte, error) {
	data, err := os.ReadFile(entry.File)
	if err != nil {
		return nil, err
	}
	if !entry.Compressed {
		return data, nil
	}
	out, err := dc.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheCorrupted, err)
	}
	return out, nil
}

// Put compresses and writes a value, evicting least recently used entries
// when over capacity.
func (dc *DiskCache) Put(key string, value []byte) error {
	data, compressed := value, false
	if dc.encoder != nil && len(value) > compressThreshold {
		if c := dc.encoder.EncodeAll(value, nil); len(c) < len(value) {
			data, compressed = c, true
		}
	}

	n := int64(len(data))
	if n > dc.capacity {
		return ErrItemTooLarge
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()

	if existing, ok := dc.index[key]; ok {
		dc.removeEntry(existing)
	}
	if dc.size+n > dc.capacity {
		dc.evict(dc.size + n - dc.capacity)
	}

	file := filepath.Join(dc.dir, key+".pcm")
	if compressed {
		file += ".zst"
	}
	if err := writeAtomic(file, data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskEntry{
		Key:        key,
		File:       file,
		Size:       n,
		Original:   int64(len(value)),
		Stored:     now,
		LastAccess: now,
		Compressed: compressed,
	}
	dc.size += n
	dc.persistIndex()
	return nil
}

// Delete removes a key.
func (dc *DiskCache) Delete(key string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if entry, ok := dc.index[key]; ok {
		dc.removeEntry(entry)
		dc.persistIndex()
	}
	return nil
}

// Clear removes every entry and persists the empty index.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for _, entry := range dc.index {
		_ = os.Remove(entry.File)
	}
	dc.index = make(map[string]*diskEntry)
	dc.size = 0
	return dc.saveIndex()
}

// Contains reports whether key is indexed.
func (dc *DiskCache) Contains(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	_, ok := dc.index[key]
	return ok
}

// RemoveOlderThan drops entries stored before cutoff.
func (dc *DiskCache) RemoveOlderThan(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for _, entry := range dc.index {
		if entry.Stored.Before(cutoff) {
			dc.removeEntry(entry)
			removed++
		}
	}
	if removed > 0 {
		dc.persistIndex()
	}
	return removed
}

// Stats returns a copy of the counters.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	s := dc.stats
	s.Capacity = dc.capacity
	s.Size = dc.size
	s.Items = int64(len(dc.index))
	for _, e := range dc.index {
		s.Stored += e.Original
	}
	return s
}

// Close persists the index.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.saveIndex()
}

// evict frees at least need bytes, least recently used first.
func (dc *DiskCache) evict(need int64) {
	entries := make([]*diskEntry, 0, len(dc.index))
	for _, e := range dc.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})

	var freed int64
	for _, e := range entries {
		if freed >= need {
			break
		}
		freed += e.Size
		dc.removeEntry(e)
		dc.stats.Evictions++
	}
}

func (dc *DiskCache) removeEntry(entry *diskEntry) {
	_ = os.Remove(entry.File)
	delete(dc.index, entry.Key)
	dc.size -= entry.Size
}

func (dc *DiskCache) loadIndex() error {
	f, err := os.Open(filepath.Join(dc.dir, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	index := make(map[string]*diskEntry)
	if err := gob.NewDecoder(f).Decode(&index); err != nil {
		return err
	}

	// drop entries whose file disappeared
	for key, e := range index {
		if _, err := os.Stat(e.File); err != nil {
			delete(index, key)
		}
	}
	dc.index = index
	return nil
}

// adoptOrphans indexes cache files that were written but never recorded,
// for example when the process died before the index was saved. Leftover
// temp files are removed.
func (dc *DiskCache) adoptOrphans() error {
	entries, err := os.ReadDir(dc.dir)
	if err != nil {
		return err
	}

	adopted := 0
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || name == indexFile {
			continue
		}
		path := filepath.Join(dc.dir, name)
		if strings.HasSuffix(name, ".tmp") {
			_ = os.Remove(path)
			continue
		}

		key, compressed := strings.TrimSuffix(name, ".pcm.zst"), true
		if key == name {
			key, compressed = strings.TrimSuffix(name, ".pcm"), false
		}
		if key == name || dc.index[key] != nil {
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue
		}
		// the uncompressed length of .zst files is learned on first read
		dc.index[key] = &diskEntry{
			Key:        key,
			File:       path,
			Size:       info.Size(),
			Original:   info.Size(),
			Stored:     info.ModTime(),
			LastAccess: info.ModTime(),
			Compressed: compressed,
		}
		dc.size += info.Size()
		adopted++
	}
	if adopted == 0 {
		return nil
	}

	log.Debug("Adopted unindexed cache files", "count", adopted)
	if dc.size > dc.capacity {
		dc.evict(dc.size - dc.capacity)
	}
	return dc.saveIndex()
}

// persistIndex saves the index after a change so a killed process does not
// lose track of its files.
func (dc *DiskCache) persistIndex() {
	if err := dc.saveIndex(); err != nil {
		log.Debug("Could not save cache index", "err", err)
	}
}

func (dc *DiskCache) saveIndex() error {
	path := filepath.Join(dc.dir, indexFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(f).Encode(dc.index)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// writeAtomic writes to a temp file and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

var _ Cache = (*DiskCache)(nil)
