package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager layers the memory cache over the disk cache. Disk hits are
// promoted to memory; writes reach memory at once and disk in the
// background.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	config Config

	writes sync.WaitGroup

	cleanupStop chan struct{}
	cleanupDone chan struct{}

	mu         sync.Mutex
	promotions int64
}

// NewManager opens both tiers.
func NewManager(config Config) (*Manager, error) {
	if config.DiskPath == "" {
		return nil, errors.New("cache directory is required")
	}

	disk, err := NewDiskCache(config.DiskPath, config.DiskCapacity, config.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk cache: %w", err)
	}

	m := &Manager{
		memory: NewMemoryCache(config.MemoryCapacity),
		disk:   disk,
		config: config,
	}
	m.Cleanup()

	if config.CleanupInterval > 0 {
		m.cleanupStop = make(chan struct{})
		m.cleanupDone = make(chan struct{})
		go m.cleanupLoop()
	}

	return m, nil
}

// Get looks in memory first, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		return data, true
	}

	data, ok := m.disk.Get(key)
	if !ok {
		return nil, false
	}

	if err := m.memory.Put(key, data); err == nil {
		m.mu.Lock()
		m.promotions++
		m.mu.Unlock()
	}
	return data, true
}

// Put stores value in memory and schedules the disk write.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("memory cache: %w", err)
	}

	m.writes.Add(1)
	go func() {
		defer m.writes.Done()
		if err := m.disk.Put(key, value); err != nil {
			log.Debug("Disk cache write failed", "key", key, "err", err)
		}
	}()
	return nil
}

// Contains reports whether either tier holds key.
func (m *Manager) Contains(key string) bool {
	return m.memory.Contains(key) || m.disk.Contains(key)
}

// Delete removes key from both tiers.
func (m *Manager) Delete(key string) error {
	m.writes.Wait()
	return errors.Join(m.memory.Delete(key), m.disk.Delete(key))
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	m.writes.Wait()
	return errors.Join(m.memory.Clear(), m.disk.Clear())
}

// Stats returns per tier counters.
func (m *Manager) Stats() (memory, disk Stats) {
	return m.memory.Stats(), m.disk.Stats()
}

// Promotions returns how many disk hits were copied into memory.
func (m *Manager) Promotions() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.promotions
}

// Close waits for pending writes, stops cleanup and saves the disk index.
func (m *Manager) Close() error {
	if m.cleanupStop != nil {
		close(m.cleanupStop)
		<-m.cleanupDone
	}
	m.writes.Wait()

	if err := m.disk.Close(); err != nil {
		return fmt.Errorf("failed to close disk cache: %w", err)
	}
	return nil
}

func (m *Manager) cleanupLoop() {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-m.cleanupStop:
			return
		}
	}
}

// Cleanup drops expired entries from both tiers.
func (m *Manager) Cleanup() {
	if m.config.TTL <= 0 {
		return
	}
	disk := m.disk.RemoveOlderThan(time.Now().Add(-m.config.TTL))
	memory := m.memory.Prune(m.config.TTL)
	if disk+memory > 0 {
		log.Debug("Cache cleanup", "disk", disk, "memory", memory)
	}
}

// Flush waits for background disk writes to finish.
func (m *Manager) Flush() {
	m.writes.Wait()
}
