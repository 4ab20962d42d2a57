// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package yenc decodes yEnc-encoded article payloads.
//
// yEnc is a line-oriented binary-to-text encoding used on Usenet. Each
// payload byte is offset by +42 modulo 256 on encode; bytes that would
// collide with control characters or the escape marker are written as
// an escape pair: '=' followed by the byte offset by a further +64.
// A message carries a "=ybegin" header line (line length, file size,
// optional part number and filename), an optional "=ypart" line with
// per-part offsets, the encoded payload, and a "=yend" trailer with a
// declared CRC-32 — "pcrc32" for one part of a multi-part file,
// "crc32" for a single-part file.
//
// Two Backend implementations produce byte-identical output: the
// reference backend decodes line by line through a lookup table, the
// chunked backend makes a single pass over raw network chunks with an
// inline escape state machine. The backend is selected once at startup
// and injected into the decode workers.
package yenc
