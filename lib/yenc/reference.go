// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package yenc

import (
	"bytes"
	"fmt"
	"hash/crc32"
)

// decodeTable maps every encoded byte to its decoded value: -42 modulo
// 256. Escape bytes are not represented here — the decode loops handle
// them by lookahead, applying the additional -64 before the table
// offset. Computed once; read-only afterwards.
var decodeTable = buildDecodeTable()

func buildDecodeTable() (table [256]byte) {
	for i := range table {
		table[i] = byte((i + 256 - 42) % 256)
	}
	return table
}

// referenceBackend is the table-driven line-at-a-time decoder. It is
// the semantic reference: the chunked backend must produce identical
// bytes and checksum for every input.
type referenceBackend struct{}

func (referenceBackend) Name() string { return "reference" }

func (referenceBackend) Decode(payload Payload, sizeHint int64) (Result, error) {
	lines := payload.Lines
	if len(lines) == 0 {
		lines = SplitLines(payload.Chunks)
	}

	// Drop empty lines. Blank separators between headers and body are
	// not payload. Copied, not filtered in place — the caller may still
	// scan the original lines after a failed decode.
	kept := make([][]byte, 0, len(lines))
	for _, line := range lines {
		if len(line) > 0 {
			kept = append(kept, line)
		}
	}
	lines = kept

	if len(lines) == 0 {
		return Result{Kind: Malformed}, nil
	}

	h, part, trailer, body, ok := locate(lines)
	if !ok {
		if foreignEncoding(lines) {
			return Result{Kind: Unsupported}, nil
		}
		return Result{Kind: Malformed}, nil
	}
	if trailer == nil {
		return Result{Kind: Malformed}, nil
	}

	if sizeHint <= 0 {
		sizeHint = h.size
	}
	bodyBytes := int64(0)
	for _, line := range body {
		bodyBytes += int64(len(line))
	}
	decoded := make([]byte, 0, preallocHint(sizeHint, bodyBytes))

	// The escape state survives line boundaries: an '=' as the last
	// byte of a line escapes the first byte of the next.
	escaped := false
	for _, line := range body {
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
	}

	return verify(h, part, *trailer, decoded, crc32.ChecksumIEEE(decoded)), nil
}

// verify assembles the final Result from the parsed structure, the
// decoded bytes, and their checksum. Shared by both backends so the
// checksum comparison rules cannot drift apart.
func verify(h header, part *partHeader, t trailer, decoded []byte, checksum uint32) Result {
	multipart := h.part > 0 || part != nil

	result := Result{
		Kind:      Decoded,
		Data:      decoded,
		Filename:  h.name,
		Multipart: multipart,
		ActualCRC: fmt.Sprintf("%08X", checksum),
	}

	result.ExpectedCRC = declaredCRC(t, multipart)
	if result.ExpectedCRC == "" {
		// Trailer lacks a usable checksum field. Deliberately not an
		// error: the decode proceeds unverified and the caller records
		// the anomaly.
		return result
	}
	if result.ExpectedCRC != result.ActualCRC {
		result.Kind = CRCMismatch
	}
	return result
}

// SplitLines splits raw network chunks into lines with their line
// endings stripped. Lines may span chunk boundaries. Used by the
// reference backend and by callers that need to inspect a raw payload
// line by line (e.g. the outcome classifier).
func SplitLines(chunks [][]byte) [][]byte {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	joined := make([]byte, 0, total)
	for _, chunk := range chunks {
		joined = append(joined, chunk...)
	}

	var lines [][]byte
	for len(joined) > 0 {
		end := bytes.IndexByte(joined, '\n')
		if end < 0 {
			lines = append(lines, trimCR(joined))
			break
		}
		lines = append(lines, trimCR(joined[:end]))
		joined = joined[end+1:]
	}
	return lines
}

func trimCR(line []byte) []byte {
	if len(line) > 0 && line[len(line)-1] == '\r' {
		return line[:len(line)-1]
	}
	return line
}
