// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package articlecache

import (
	"bytes"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/spoolworks/spool/decoder"
)

func newTestCache(t *testing.T, memoryLimit int64) *Cache {
	t.Helper()
	cache, err := New(Config{
		MemoryLimit: memoryLimit,
		SpillDir:    t.TempDir(),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cache
}

func testArticle(id string) *decoder.Article {
	return decoder.NewArticle(id, decoder.NewFileSet("f"), &decoder.Server{Name: "s"})
}

func spillFiles(t *testing.T, cache *Cache) []string {
	t.Helper()
	entries, err := os.ReadDir(cache.spillDir)
	if err != nil {
		t.Fatalf("reading spill dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestCacheMemoryRoundTrip(t *testing.T) {
	cache := newTestCache(t, 1<<20)
	article := testArticle("<c1@test>")
	payload := []byte("decoded fragment bytes")

	if err := cache.SaveArticle(article, payload); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}
	if cache.Used() != int64(len(payload)) {
		t.Errorf("Used = %d, want %d", cache.Used(), len(payload))
	}

	fetched, err := cache.FetchArticle(article)
	if err != nil {
		t.Fatalf("FetchArticle: %v", err)
	}
	if !bytes.Equal(fetched, payload) {
		t.Error("fetched payload differs from saved payload")
	}
	if files := spillFiles(t, cache); len(files) != 0 {
		t.Errorf("spill files %v present under the memory budget", files)
	}
}

func TestCacheSpillsOldestFirst(t *testing.T) {
	cache := newTestCache(t, 1000)

	first := testArticle("<s1@test>")
	second := testArticle("<s2@test>")
	firstPayload := make([]byte, 600)
	secondPayload := make([]byte, 600)
	rand.New(rand.NewSource(3)).Read(firstPayload)
	rand.New(rand.NewSource(4)).Read(secondPayload)

	if err := cache.SaveArticle(first, firstPayload); err != nil {
		t.Fatalf("SaveArticle(first): %v", err)
	}
	if err := cache.SaveArticle(second, secondPayload); err != nil {
		t.Fatalf("SaveArticle(second): %v", err)
	}

	// The first payload spilled; the second stays resident.
	if cache.Used() != 600 {
		t.Errorf("Used = %d, want 600", cache.Used())
	}
	if files := spillFiles(t, cache); len(files) != 1 {
		t.Fatalf("spill files = %v, want exactly one", files)
	}

	fetched, err := cache.FetchArticle(first)
	if err != nil {
		t.Fatalf("FetchArticle(spilled): %v", err)
	}
	if !bytes.Equal(fetched, firstPayload) {
		t.Error("spilled payload did not survive the disk round trip")
	}
}

func TestCacheOversizedPayloadSpillsItself(t *testing.T) {
	cache := newTestCache(t, 100)
	article := testArticle("<big@test>")
	payload := bytes.Repeat([]byte("big payload "), 100)

	if err := cache.SaveArticle(article, payload); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}
	if cache.Used() != 0 {
		t.Errorf("Used = %d, want 0 after self-spill", cache.Used())
	}

	fetched, err := cache.FetchArticle(article)
	if err != nil {
		t.Fatalf("FetchArticle: %v", err)
	}
	if !bytes.Equal(fetched, payload) {
		t.Error("oversized payload did not survive the disk round trip")
	}
}

func TestCacheResaveReplaces(t *testing.T) {
	cache := newTestCache(t, 1<<20)
	article := testArticle("<r@test>")

	if err := cache.SaveArticle(article, []byte("first version")); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}
	if err := cache.SaveArticle(article, []byte("second")); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}

	if cache.Used() != int64(len("second")) {
		t.Errorf("Used = %d, want %d", cache.Used(), len("second"))
	}
	fetched, err := cache.FetchArticle(article)
	if err != nil {
		t.Fatalf("FetchArticle: %v", err)
	}
	if string(fetched) != "second" {
		t.Errorf("fetched %q, want the replacement payload", fetched)
	}
}

func TestCacheDiscardRemovesSpillFile(t *testing.T) {
	cache := newTestCache(t, 100)
	article := testArticle("<d@test>")
	payload := bytes.Repeat([]byte{0xEE}, 500)

	if err := cache.SaveArticle(article, payload); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}
	if files := spillFiles(t, cache); len(files) != 1 {
		t.Fatalf("spill files = %v, want one before discard", files)
	}

	cache.DiscardArticle(article)

	if files := spillFiles(t, cache); len(files) != 0 {
		t.Errorf("spill files = %v after discard, want none", files)
	}
	if _, err := cache.FetchArticle(article); err == nil {
		t.Error("FetchArticle succeeded after discard")
	}
}

func TestCacheHasReserveSpace(t *testing.T) {
	cache := newTestCache(t, 100)
	if !cache.HasReserveSpace(100) {
		t.Error("empty cache rejected a payload at the limit")
	}
	if cache.HasReserveSpace(101) {
		t.Error("empty cache accepted a payload over the limit")
	}

	if err := cache.SaveArticle(testArticle("<h@test>"), make([]byte, 60)); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}
	if !cache.HasReserveSpace(40) {
		t.Error("cache rejected a payload fitting the remaining budget")
	}
	if cache.HasReserveSpace(41) {
		t.Error("cache accepted a payload exceeding the remaining budget")
	}
}

func TestCacheFetchUnknownArticle(t *testing.T) {
	cache := newTestCache(t, 100)
	if _, err := cache.FetchArticle(testArticle("<missing@test>")); err == nil {
		t.Error("FetchArticle succeeded for an unknown article")
	}
}

func TestLoadSpillRejectsCorruption(t *testing.T) {
	cache := newTestCache(t, 100)
	article := testArticle("<x@test>")
	if err := cache.SaveArticle(article, bytes.Repeat([]byte{0xAB}, 400)); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}
	files := spillFiles(t, cache)
	if len(files) != 1 {
		t.Fatalf("spill files = %v, want one", files)
	}
	path := filepath.Join(cache.spillDir, files[0])

	record, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading spill file: %v", err)
	}
	record[len(record)-1] ^= 0xFF
	if err := os.WriteFile(path, record, 0o644); err != nil {
		t.Fatalf("writing corrupted spill file: %v", err)
	}

	if _, err := cache.FetchArticle(article); err == nil {
		t.Error("FetchArticle accepted a corrupted spill record")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{MemoryLimit: 0, SpillDir: t.TempDir()}, nil); err == nil {
		t.Error("New accepted a zero memory limit")
	}
	if _, err := New(Config{MemoryLimit: 100}, nil); err == nil {
		t.Error("New accepted an empty spill directory")
	}
}
