// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package yenc

import (
	"bytes"
	"hash/crc32"
)

// chunkedBackend decodes in a single pass over the raw network chunks:
// one scan finds the structure lines, decodes the payload through an
// inline escape state machine, and accumulates the CRC incrementally.
// Output and checksum are byte-identical to the reference backend.
type chunkedBackend struct{}

func (chunkedBackend) Name() string { return "chunked" }

func (chunkedBackend) Decode(payload Payload, sizeHint int64) (Result, error) {
	buffer := joinPayload(payload)
	if len(buffer) == 0 {
		return Result{Kind: Malformed}, nil
	}

	var (
		h           header
		headerFound bool
		part        *partHeader
		end         *trailer
		foreign     bool
		expectPart  bool
	)

	var decoded []byte
	if sizeHint > 0 {
		decoded = make([]byte, 0, preallocHint(sizeHint, int64(len(buffer))))
	}
	checksum := uint32(0)
	escaped := false
	leadingLines := 0
	trailerAt := trailerOffset(buffer)

	position := 0
	for position < len(buffer) {
		lineStart := position
		lineEnd := bytes.IndexByte(buffer[position:], '\n')
		var line []byte
		if lineEnd < 0 {
			line = buffer[position:]
			position = len(buffer)
		} else {
			line = buffer[position : position+lineEnd]
			position += lineEnd + 1
		}
		line = trimCR(line)
		if len(line) == 0 {
			continue
		}

		if !headerFound {
			leadingLines++
			if bytes.HasPrefix(line, markerBegin) {
				h = parseHeaderLine(line)
				headerFound = true
				expectPart = true
				if sizeHint <= 0 && h.size > 0 {
					decoded = make([]byte, 0, preallocHint(h.size, int64(len(buffer))))
				}
				continue
			}
			if bytes.HasPrefix(line, markerForeign) {
				foreign = true
			}
			if leadingLines >= headerScanWindow {
				break
			}
			continue
		}

		// A =ypart line is consumed only directly after the header.
		if expectPart {
			expectPart = false
			if bytes.HasPrefix(line, markerPart) {
				parsed := parsePartLine(line)
				part = &parsed
				continue
			}
		}

		// Only the trailer located in the tail window counts; a
		// "=yend" earlier in the body is payload data like any other
		// line.
		if lineStart == trailerAt {
			parsed := parseTrailerLine(line)
			end = &parsed
			break
		}

		// Payload line. The escape state survives line boundaries.
		mark := len(decoded)
		for _, b := range line {
			if escaped {
				decoded = append(decoded, decodeTable[b-64])
				escaped = false
				continue
			}
			if b == Escape {
				escaped = true
				continue
			}
			decoded = append(decoded, decodeTable[b])
		}
		checksum = crc32.Update(checksum, crc32.IEEETable, decoded[mark:])
	}

	if !headerFound {
		if foreign {
			return Result{Kind: Unsupported}, nil
		}
		return Result{Kind: Malformed}, nil
	}
	if end == nil {
		return Result{Kind: Malformed}, nil
	}
	return verify(h, part, *end, decoded, checksum), nil
}

// trailerOffset returns the byte offset of the "=yend" trailer line,
// searching the last trailerScanWindow non-empty lines of the buffer
// from the end. Returns -1 when no trailer sits in the window.
func trailerOffset(buffer []byte) int {
	end := len(buffer)
	seen := 0
	for end > 0 && seen < trailerScanWindow {
		start := bytes.LastIndexByte(buffer[:end], '\n') + 1
		line := trimCR(buffer[start:end])
		if len(line) > 0 {
			seen++
			if bytes.HasPrefix(line, markerEnd) {
				return start
			}
		}
		end = start - 1
	}
	return -1
}

// joinPayload flattens a payload into one contiguous buffer. Chunks
// are used as-is; when only lines are present they are rejoined with
// CRLF so both backends accept either carrier.
func joinPayload(payload Payload) []byte {
	if len(payload.Chunks) > 0 {
		total := 0
		for _, chunk := range payload.Chunks {
			total += len(chunk)
		}
		buffer := make([]byte, 0, total)
		for _, chunk := range payload.Chunks {
			buffer = append(buffer, chunk...)
		}
		return buffer
	}

	total := 0
	for _, line := range payload.Lines {
		total += len(line) + 2
	}
	buffer := make([]byte, 0, total)
	for _, line := range payload.Lines {
		buffer = append(buffer, line...)
		buffer = append(buffer, '\r', '\n')
	}
	return buffer
}
