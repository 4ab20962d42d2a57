// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package articlecache

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression algorithm of a spilled
// payload. Tags are stored in spill-record headers — changing these
// values breaks existing spill files.
type CompressionTag uint8

const (
	// CompressionNone indicates an uncompressed payload. Used when
	// the content is incompressible (most decoded articles are
	// already-compressed archive data).
	CompressionNone CompressionTag = 0

	// CompressionLZ4 indicates LZ4 block compression: the fast
	// default for binary payloads.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd indicates zstd at its default level: better
	// ratios for text-like payloads.
	CompressionZstd CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// errIncompressible is returned by the compressors when the output
// would not be smaller than the input.
var errIncompressible = errors.New("data is incompressible")

// zstdEncoder and zstdDecoder are reused across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("articlecache: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("articlecache: zstd decoder initialization failed: " + err.Error())
	}
}

// chooseTag picks a compression algorithm for a payload by sampling
// its leading bytes: mostly printable content compresses well with
// zstd, anything else gets LZ4's speed. The compressors still fall
// back to CompressionNone when the payload turns out incompressible.
func chooseTag(data []byte) CompressionTag {
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}
	printable := 0
	for _, b := range sample {
		if b == '\n' || b == '\r' || b == '\t' || (b >= 0x20 && b < 0x7F) {
			printable++
		}
	}
	if len(sample) > 0 && printable*10 >= len(sample)*9 {
		return CompressionZstd
	}
	return CompressionLZ4
}

// compress compresses data with the requested algorithm. Returns the
// stored bytes and the tag that actually applies: when compression is
// not worthwhile the payload is stored raw under CompressionNone.
func compress(data []byte, tag CompressionTag) ([]byte, CompressionTag, error) {
	var stored []byte
	var err error

	switch tag {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		stored, err = compressLZ4(data)
	case CompressionZstd:
		stored, err = compressZstd(data)
	default:
		return nil, 0, fmt.Errorf("unsupported compression tag: %d", tag)
	}

	if errors.Is(err, errIncompressible) {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return stored, tag, nil
}

// decompress reverses compress. The uncompressedSize must match the
// original payload length exactly; a mismatch is an error.
func decompress(stored []byte, tag CompressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(stored) != uncompressedSize {
			return nil, fmt.Errorf("uncompressed payload: size %d does not match expected %d",
				len(stored), uncompressedSize)
		}
		return stored, nil
	case CompressionLZ4:
		return decompressLZ4(stored, uncompressedSize)
	case CompressionZstd:
		return decompressZstd(stored, uncompressedSize)
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)

	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 when it determines the data is
	// incompressible.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(stored []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(stored, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(stored []byte, uncompressedSize int) ([]byte, error) {
	destination, err := zstdDecoder.DecodeAll(stored, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(destination) != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(destination), uncompressedSize)
	}
	return destination, nil
}
