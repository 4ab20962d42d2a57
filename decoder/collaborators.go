// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package decoder

// Store persists decoded article bytes and answers the worker's
// reserve-space query for backpressure. Implementations must be safe
// for concurrent use; lib/articlecache provides the standard one.
type Store interface {
	// SaveArticle stores the decoded bytes of one article.
	SaveArticle(article *Article, data []byte) error

	// HasReserveSpace reports whether the store can absorb another
	// payload of roughly the given byte count without saturating.
	HasReserveSpace(byteCount int) bool
}

// Registrar is the queue-bookkeeping collaborator. It owns article
// lifecycle beyond this pipeline: registering final outcomes and
// propagating try-state resets to sibling articles.
type Registrar interface {
	// RegisterArticle records an article's final disposition. found
	// is true when a proper article was obtained (even with a
	// checksum mismatch). Not called when a retry was requested —
	// the article stays live for re-fetch.
	RegisterArticle(article *Article, found bool)

	// ResetTryState resets try-lists so articles can be attempted
	// against servers they had exhausted. With full=false, the reset
	// applies to the article's siblings but not the article itself
	// (it keeps its own exclusions while they get a fresh cycle).
	// With full=true, the article's own try-state is cleared too.
	ResetTryState(article *Article, full bool)
}

// FetchControl throttles the upstream fetch layer.
type FetchControl interface {
	// Pause stops the fetch layer, e.g. after a system fault.
	Pause()

	// Resume un-delays a throttled fetch layer.
	Resume()

	// Delayed reports whether the fetch layer is currently throttled
	// and waiting for a Resume.
	Delayed() bool
}

// Renamer is the filename-verification collaborator. It owns the
// accept/reject decision for decoded filenames (a candidate may be
// rejected as obfuscated); the pipeline only gates when the call
// happens.
type Renamer interface {
	// VerifyFilename offers a candidate filename decoded from one of
	// the file's fragments.
	VerifyFilename(file *FileSet, candidate string)
}
