// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package articlecache

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spoolworks/spool/decoder"
	"github.com/spoolworks/spool/lib/codec"
)

// Config configures an article cache.
type Config struct {
	// MemoryLimit is the in-memory byte budget. Payloads past the
	// budget spill to disk, oldest first.
	MemoryLimit int64

	// SpillDir is the directory for spilled payloads. Created if it
	// does not exist.
	SpillDir string
}

// Cache is a bounded store for decoded article payloads. Safe for
// concurrent use by multiple decode workers and the assembler.
type Cache struct {
	limit    int64
	spillDir string
	logger   *slog.Logger

	mutex   sync.Mutex
	used    int64
	entries map[string]*entry
	// order lists the IDs of in-memory entries oldest first, for
	// spill eviction.
	order        []string
	spillCounter int
}

// entry is one cached payload: either resident bytes or a spill path.
type entry struct {
	data      []byte
	spillPath string
	size      int64
}

// spillHeader is the CBOR header of a spill record.
type spillHeader struct {
	ID         string `cbor:"id"`
	Size       int64  `cbor:"size"`
	StoredSize int64  `cbor:"stored_size"`
	Tag        uint8  `cbor:"tag"`
	Checksum   uint32 `cbor:"checksum"`
}

// Compile-time check: the cache is the pipeline's store collaborator.
var _ decoder.Store = (*Cache)(nil)

// New creates a cache. The spill directory is created if missing.
func New(config Config, logger *slog.Logger) (*Cache, error) {
	if config.MemoryLimit <= 0 {
		return nil, fmt.Errorf("articlecache: memory limit must be positive, got %d", config.MemoryLimit)
	}
	if config.SpillDir == "" {
		return nil, fmt.Errorf("articlecache: spill directory is required")
	}
	if err := os.MkdirAll(config.SpillDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating spill directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		limit:    config.MemoryLimit,
		spillDir: config.SpillDir,
		logger:   logger,
		entries:  make(map[string]*entry),
	}, nil
}

// SaveArticle stores one article's decoded bytes. Saving the same
// article again replaces the previous payload.
func (c *Cache) SaveArticle(article *decoder.Article, data []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.removeLocked(article.ID)

	stored := &entry{data: data, size: int64(len(data))}
	c.entries[article.ID] = stored
	c.order = append(c.order, article.ID)
	c.used += stored.size

	// Spill oldest entries until the budget holds again. The entry
	// just saved may itself spill when it alone exceeds the budget.
	for c.used > c.limit && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if err := c.spillLocked(oldest); err != nil {
			return err
		}
	}
	return nil
}

// HasReserveSpace reports whether the in-memory budget can absorb
// another payload of the given byte count.
func (c *Cache) HasReserveSpace(byteCount int) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.used+int64(byteCount) <= c.limit
}

// FetchArticle returns an article's decoded bytes, reading them back
// from disk when the payload was spilled.
func (c *Cache) FetchArticle(article *decoder.Article) ([]byte, error) {
	c.mutex.Lock()
	stored, ok := c.entries[article.ID]
	c.mutex.Unlock()

	if !ok {
		return nil, fmt.Errorf("article %s is not cached", article.ID)
	}
	if stored.data != nil {
		return stored.data, nil
	}
	return loadSpill(stored.spillPath, article.ID)
}

// DiscardArticle drops an article's payload, deleting any spill file.
// Called by the assembler once the fragment is written out.
func (c *Cache) DiscardArticle(article *decoder.Article) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.removeLocked(article.ID)
}

// Used returns the current in-memory byte usage.
func (c *Cache) Used() int64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.used
}

func (c *Cache) removeLocked(id string) {
	stored, ok := c.entries[id]
	if !ok {
		return
	}
	delete(c.entries, id)
	if stored.data != nil {
		c.used -= stored.size
		for i, queued := range c.order {
			if queued == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	if stored.spillPath != "" {
		if err := os.Remove(stored.spillPath); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("removing spill file failed", "path", stored.spillPath, "error", err)
		}
	}
}

// spillLocked moves one in-memory entry to disk.
func (c *Cache) spillLocked(id string) error {
	stored, ok := c.entries[id]
	if !ok || stored.data == nil {
		return nil
	}

	c.spillCounter++
	path := filepath.Join(c.spillDir, fmt.Sprintf("%08x-%06d.art",
		crc32.ChecksumIEEE([]byte(id)), c.spillCounter))

	if err := writeSpill(path, id, stored.data); err != nil {
		return fmt.Errorf("spilling article %s: %w", id, err)
	}

	c.used -= stored.size
	stored.spillPath = path
	stored.data = nil
	return nil
}

// writeSpill writes one spill record: a big-endian length prefix, the
// CBOR header, then the stored payload. Written to a temporary file
// and renamed so a crashed spill never leaves a truncated record
// under the final name.
func writeSpill(path, id string, data []byte) error {
	tag := chooseTag(data)
	stored, tag, err := compress(data, tag)
	if err != nil {
		return err
	}

	header, err := codec.Marshal(spillHeader{
		ID:         id,
		Size:       int64(len(data)),
		StoredSize: int64(len(stored)),
		Tag:        uint8(tag),
		Checksum:   crc32.ChecksumIEEE(data),
	})
	if err != nil {
		return fmt.Errorf("encoding spill header: %w", err)
	}

	record := make([]byte, 0, 4+len(header)+len(stored))
	record = binary.BigEndian.AppendUint32(record, uint32(len(header)))
	record = append(record, header...)
	record = append(record, stored...)

	temporary := path + ".tmp"
	if err := os.WriteFile(temporary, record, 0o644); err != nil {
		return err
	}
	return os.Rename(temporary, path)
}

// loadSpill reads a spill record back, decompresses it, and verifies
// the payload checksum.
func loadSpill(path, id string) ([]byte, error) {
	record, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spill file: %w", err)
	}
	if len(record) < 4 {
		return nil, fmt.Errorf("spill file %s: truncated length prefix", path)
	}

	headerLength := binary.BigEndian.Uint32(record[:4])
	if int(headerLength) > len(record)-4 {
		return nil, fmt.Errorf("spill file %s: truncated header", path)
	}

	var header spillHeader
	if err := codec.Unmarshal(record[4:4+headerLength], &header); err != nil {
		return nil, fmt.Errorf("spill file %s: decoding header: %w", path, err)
	}
	if header.ID != id {
		return nil, fmt.Errorf("spill file %s: holds article %s, expected %s", path, header.ID, id)
	}

	stored := record[4+headerLength:]
	if int64(len(stored)) != header.StoredSize {
		return nil, fmt.Errorf("spill file %s: payload is %d bytes, header declares %d",
			path, len(stored), header.StoredSize)
	}

	data, err := decompress(stored, CompressionTag(header.Tag), int(header.Size))
	if err != nil {
		return nil, fmt.Errorf("spill file %s: %w", path, err)
	}
	if crc32.ChecksumIEEE(data) != header.Checksum {
		return nil, fmt.Errorf("spill file %s: payload checksum mismatch", path)
	}
	return data, nil
}
