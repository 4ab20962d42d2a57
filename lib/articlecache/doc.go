// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package articlecache stores decoded article payloads between the
// decode pipeline and the assembler.
//
// Payloads live in memory under a byte budget; when the budget is
// exceeded the oldest payloads spill to disk, compressed when
// worthwhile. A spill file is a length-prefixed CBOR header (article
// ID, sizes, compression tag, checksum) followed by the stored
// payload, so a cache directory is self-describing and each record is
// verified on load.
//
// The cache implements decoder.Store: it persists decoded bytes and
// answers the reserve-space query the decode workers use for
// backpressure.
package articlecache
