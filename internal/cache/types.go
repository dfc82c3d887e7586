package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheCorrupted is returned when a stored entry cannot be decoded.
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Level identifies a cache tier.
type Level int

const (
	// LevelMemory is the in-process LRU.
	LevelMemory Level = iota
	// LevelDisk is the persistent compressed store.
	LevelDisk
)

func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds counters for one cache tier.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int64
	Hits      int64
	Misses    int64
	Evictions int64
	// Stored is the uncompressed size of what the tier holds.
	Stored int64
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Cache is implemented by every tier.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error
	Contains(key string) bool
	Stats() Stats
}

// Config holds configuration for a Manager.
type Config struct {
	MemoryCapacity int64 // bytes
	DiskCapacity   int64 // bytes
	DiskPath       string
	// CompressionLevel is a zstd level, 0 disables compression.
	CompressionLevel int
	// TTL drops disk entries older than this on cleanup, 0 keeps them.
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns the default cache configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		MemoryCapacity:   64 * 1024 * 1024,
		DiskCapacity:     512 * 1024 * 1024,
		DiskPath:         dir,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Key identifies one rendered utterance.
type Key struct {
	Engine string
	Voice  string
	Text   string
	Pitch  float64
	Rate   float64
}

// String returns the hashed cache key.
func (k Key) String() string {
	data := fmt.Sprintf("%s|%s|%s|%.2f|%.2f", k.Engine, k.Voice, k.Text, k.Pitch, k.Rate)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
