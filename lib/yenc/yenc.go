// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package yenc

import (
	"errors"
	"fmt"
)

// Escape is the yEnc escape marker byte. The byte following it is
// offset by an additional 64 before the standard -42 is applied.
const Escape = '='

// headerScanWindow is how many leading lines are searched for the
// "=ybegin" header (and for a foreign "begin " marker).
const headerScanWindow = 40

// trailerScanWindow is how many trailing lines, scanning from the end,
// are searched for the "=yend" trailer.
const trailerScanWindow = 10

// preallocHint bounds an output preallocation to the encoded input
// length. Decoding maps at most one output byte per input byte, so
// encodedBytes is a hard ceiling — the header's declared size and the
// caller's expected size are both untrusted and must never drive the
// allocation on their own.
func preallocHint(hint, encodedBytes int64) int {
	if hint <= 0 || hint > encodedBytes {
		hint = encodedBytes
	}
	return int(hint)
}

// ErrSystem marks decode failures caused by resource exhaustion or I/O
// faults rather than by malformed input. The worker pauses the fetch
// layer and leaves the article for re-fetch when a decode error wraps
// this sentinel.
var ErrSystem = errors.New("system fault during decode")

// Kind classifies the outcome of one decode attempt.
type Kind int

const (
	// Decoded means the payload decoded cleanly. When the trailer
	// carried no usable checksum, Result.ExpectedCRC is empty and no
	// verification happened — the bytes are still delivered.
	Decoded Kind = iota

	// CRCMismatch means the payload decoded but its CRC-32 does not
	// match the trailer's declared value. Result.Data still carries
	// the decoded bytes; callers decide whether to keep them.
	CRCMismatch

	// Malformed means no usable yEnc structure was found: no header,
	// a header without a trailer, or an empty payload.
	Malformed

	// Unsupported means the payload is uuencoded ("begin " marker)
	// rather than yEnc. No bytes are produced; the owning file must
	// be paused, since every one of its articles will fail the same
	// way.
	Unsupported
)

// String returns the outcome name for logs.
func (k Kind) String() string {
	switch k {
	case Decoded:
		return "decoded"
	case CRCMismatch:
		return "crc-mismatch"
	case Malformed:
		return "malformed"
	case Unsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Result is the tagged outcome of one decode attempt. It exists only
// for the duration of one worker dispatch and is never persisted.
type Result struct {
	Kind Kind

	// Data holds the decoded payload bytes. Populated for Decoded and
	// CRCMismatch; nil otherwise.
	Data []byte

	// Filename is the name= value from the header, verbatim. Empty
	// when the header carried no name.
	Filename string

	// Multipart reports whether the message declared itself one part
	// of a multi-part file (part= in the header or a =ypart line).
	// Multipart messages declare their checksum as pcrc32, single-part
	// messages as crc32.
	Multipart bool

	// ExpectedCRC is the trailer's declared checksum, left-zero-padded
	// to 8 uppercase hex digits. Empty when the trailer omitted the
	// field that matches Multipart — decode then proceeds without
	// verification.
	ExpectedCRC string

	// ActualCRC is the CRC-32 of Data, 8 uppercase hex digits.
	ActualCRC string
}

// Payload carries one article's raw payload into a decode call. At
// most one of the two carriers is populated: Lines holds text lines
// with line endings stripped, Chunks holds raw byte chunks exactly as
// received from the network, line endings included.
type Payload struct {
	Lines  [][]byte
	Chunks [][]byte
}

// Empty reports whether the payload carries no data at all. Both
// carriers must be empty — a payload with zero-length lines still
// counts as present.
func (p Payload) Empty() bool {
	return len(p.Lines) == 0 && len(p.Chunks) == 0
}

// Size returns the total raw byte count across both carriers. Used for
// cache reserve-space accounting, not for decoding.
func (p Payload) Size() int {
	total := 0
	for _, line := range p.Lines {
		total += len(line)
	}
	for _, chunk := range p.Chunks {
		total += len(chunk)
	}
	return total
}

// Backend decodes one article's payload. Implementations must be safe
// for concurrent use by multiple decode workers.
//
// The sizeHint is the article's expected decoded size in bytes, used
// only for output preallocation; zero is valid. Errors are reserved
// for system-level faults — every structural problem with the input is
// reported through Result.Kind instead.
type Backend interface {
	// Name identifies the backend in logs and config.
	Name() string

	// Decode decodes the payload and verifies its checksum.
	Decode(payload Payload, sizeHint int64) (Result, error)
}

// NewBackend returns the backend with the given configured name:
// "reference" or "chunked".
func NewBackend(name string) (Backend, error) {
	switch name {
	case "reference":
		return referenceBackend{}, nil
	case "chunked":
		return chunkedBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown yenc backend %q", name)
	}
}
