// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides CBOR encoding for Spool's on-disk records.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. The same
// logical record always produces identical bytes, which keeps spill
// files comparable and checksummable.
package codec
