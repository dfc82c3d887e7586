package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKey_String(t *testing.T) {
	a := Key{Engine: "piper", Voice: "es", Text: "hola", Pitch: 0.6, Rate: 1.05}
	b := a
	if a.String() != b.String() {
		t.Error("equal keys hashed differently")
	}
	if len(a.String()) != 32 {
		t.Errorf("unexpected key length %d", len(a.String()))
	}

	b.Pitch = 1.2
	if a.String() == b.String() {
		t.Error("pitch must be part of the key")
	}
	b = a
	b.Engine = "gtts"
	if a.String() == b.String() {
		t.Error("engine must be part of the key")
	}
}

func TestMemoryCache_LRU(t *testing.T) {
	c := NewMemoryCache(10)

	_ = c.Put("a", []byte("1234"))
	_ = c.Put("b", []byte("1234"))
	c.Get("a") // b is now least recently used
	_ = c.Put("c", []byte("1234"))

	if c.Contains("b") {
		t.Error("expected b to be evicted")
	}
	if !c.Contains("a") || !c.Contains("c") {
		t.Error("expected a and c to remain")
	}

	s := c.Stats()
	if s.Size != 8 || s.Items != 2 || s.Evictions != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestMemoryCache_TooLarge(t *testing.T) {
	c := NewMemoryCache(4)
	if err := c.Put("big", []byte("12345")); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("expected ErrItemTooLarge, got %v", err)
	}
}

func TestMemoryCache_Replace(t *testing.T) {
	c := NewMemoryCache(100)
	_ = c.Put("a", []byte("1234"))
	_ = c.Put("a", []byte("12"))

	if got, _ := c.Get("a"); string(got) != "12" {
		t.Errorf("got %q", got)
	}
	if s := c.Stats(); s.Size != 2 {
		t.Errorf("size = %d, want 2", s.Size)
	}
}

func TestMemoryCache_HitRate(t *testing.T) {
	c := NewMemoryCache(100)
	_ = c.Put("a", []byte("x"))
	c.Get("a")
	c.Get("missing")

	if r := c.Stats().HitRate(); r != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", r)
	}
}

func TestMemoryCache_Prune(t *testing.T) {
	c := NewMemoryCache(100)
	_ = c.Put("a", []byte("x"))
	time.Sleep(5 * time.Millisecond)
	_ = c.Put("b", []byte("y"))

	if n := c.Prune(3 * time.Millisecond); n != 1 {
		t.Errorf("pruned %d entries, want 1", n)
	}
	if c.Contains("a") || !c.Contains("b") {
		t.Error("prune removed the wrong entry")
	}
}

func pcmLike(n int) []byte {
	// repetitive data compresses well
	return bytes.Repeat([]byte{0, 1, 2, 3}, n/4)
}

func TestDiskCache_RoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}

	value := pcmLike(8192)
	if err := dc.Put("k", value); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := dc.Get("k")
	if !ok || !bytes.Equal(got, value) {
		t.Fatal("round trip failed")
	}

	s := dc.Stats()
	if s.Size >= int64(len(value)) {
		t.Errorf("expected compressed size below %d, got %d", len(value), s.Size)
	}
	if s.Stored != int64(len(value)) {
		t.Errorf("stored = %d, want %d", s.Stored, len(value))
	}
}

func TestDiskCache_Persists(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	_ = dc.Put("k", pcmLike(4096))
	if err := dc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reopened.Get("k")
	if !ok || !bytes.Equal(got, pcmLike(4096)) {
		t.Error("entry lost across reopen")
	}
}

func TestDiskCache_SurvivesMissingClose(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	_ = dc.Put("k", pcmLike(4096))
	_ = dc.Put("j", []byte("abc"))

	// no Close, as if the process had been killed
	reopened, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.Contains("k") || !reopened.Contains("j") {
		t.Fatal("entries written before the crash were not indexed")
	}

	if err := os.Remove(filepath.Join(dir, indexFile)); err != nil {
		t.Fatal(err)
	}
	rebuilt, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	got, ok := rebuilt.Get("k")
	if !ok || !bytes.Equal(got, pcmLike(4096)) {
		t.Error("compressed file was not adopted")
	}
	if got, ok := rebuilt.Get("j"); !ok || string(got) != "abc" {
		t.Error("plain file was not adopted")
	}
	if s := rebuilt.Stats(); s.Items != 2 || s.Size == 0 {
		t.Errorf("unexpected stats after rebuild %+v", s)
	}
}

func TestDiskCache_AdoptedFilesCountTowardCapacity(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pcm", "b.pcm", "c.pcm"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("1234"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	dc, err := NewDiskCache(dir, 10, 0)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	if s := dc.Stats(); s.Size > 10 || s.Items != 2 {
		t.Errorf("expected eviction down to capacity, got %+v", s)
	}
}

func TestDiskCache_MissingFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	dc, _ := NewDiskCache(dir, 1<<20, 0)
	_ = dc.Put("k", []byte("abc"))

	files, _ := filepath.Glob(filepath.Join(dir, "*.pcm"))
	for _, f := range files {
		_ = os.Remove(f)
	}

	if _, ok := dc.Get("k"); ok {
		t.Error("expected miss for deleted file")
	}
	if dc.Contains("k") {
		t.Error("entry should be dropped from the index")
	}
}

func TestDiskCache_EvictsLRU(t *testing.T) {
	dc, _ := NewDiskCache(t.TempDir(), 10, 0)

	_ = dc.Put("a", []byte("1234"))
	time.Sleep(2 * time.Millisecond)
	_ = dc.Put("b", []byte("1234"))
	time.Sleep(2 * time.Millisecond)
	dc.Get("a")
	_ = dc.Put("c", []byte("1234"))

	if dc.Contains("b") {
		t.Error("expected b to be evicted")
	}
	if !dc.Contains("a") || !dc.Contains("c") {
		t.Error("expected a and c to remain")
	}
	if err := dc.Put("huge", make([]byte, 11)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("expected ErrItemTooLarge, got %v", err)
	}
}

func TestDiskCache_RemoveOlderThan(t *testing.T) {
	dc, _ := NewDiskCache(t.TempDir(), 1<<20, 0)
	_ = dc.Put("old", []byte("x"))
	cutoff := time.Now().Add(time.Millisecond)
	time.Sleep(3 * time.Millisecond)
	_ = dc.Put("new", []byte("y"))

	if n := dc.RemoveOlderThan(cutoff); n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
	if dc.Contains("old") || !dc.Contains("new") {
		t.Error("wrong entry removed")
	}
}

func TestManager_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.CleanupInterval = 0

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	_ = m.Put("k", pcmLike(2048))
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m, err = NewManager(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer m.Close() //nolint:errcheck

	if _, ok := m.Get("k"); !ok {
		t.Fatal("expected disk hit")
	}
	if m.Promotions() != 1 {
		t.Errorf("promotions = %d, want 1", m.Promotions())
	}
	memory, disk := m.Stats()
	if memory.Items != 1 || disk.Hits != 1 {
		t.Errorf("unexpected stats memory=%+v disk=%+v", memory, disk)
	}
}

func TestManager_PrunesExpiredOnOpen(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	_ = dc.Put("old", []byte("x"))
	if err := dc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	cfg := DefaultConfig(dir)
	cfg.TTL = time.Millisecond
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close() //nolint:errcheck

	if m.Contains("old") {
		t.Error("expired entry survived opening the cache")
	}
}

func TestManager_Clear(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.CleanupInterval = 0
	m, _ := NewManager(cfg)
	defer m.Close() //nolint:errcheck

	_ = m.Put("k", []byte("v"))
	m.Flush()
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if m.Contains("k") {
		t.Error("entry survived Clear")
	}
}

func TestManager_RequiresDir(t *testing.T) {
	if _, err := NewManager(Config{}); err == nil {
		t.Error("expected error without a cache directory")
	}
}
