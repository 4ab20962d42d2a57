// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package decoder is the article decode pipeline: a pool of workers
// that consumes fetched-article jobs from a bounded queue, decodes
// their yEnc payloads, verifies per-part checksums, and classifies
// failures precisely enough to decide between accepting an article,
// retrying it on another server, and discarding it as corrupt or
// removed.
//
// The queue is the only synchronization point with the fetch layer.
// Everything else the pipeline touches — the article store, queue
// bookkeeping, fetch throttling, filename verification — is reached
// through the collaborator interfaces in this package, which the
// embedding application implements. The worker exerts backpressure by
// resuming a delayed fetch layer only while the queue is shallow or
// the store has reserve space.
package decoder
