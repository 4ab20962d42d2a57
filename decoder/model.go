// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package decoder

import (
	"sync"
	"sync/atomic"
)

// Server is one news server an article may be fetched from.
type Server struct {
	// Name identifies the server in logs.
	Name string

	// Priority orders servers for failover. A retry only considers
	// servers whose priority is >= the failing server's priority.
	Priority int

	// Active marks the server as usable. Inactive servers are never
	// selected for retry.
	Active bool
}

// EncodingType is the payload encoding discovered for a file so far.
type EncodingType int32

const (
	// EncodingUnknown means no article of the file has decoded yet.
	EncodingUnknown EncodingType = iota
	// EncodingYEnc means at least one article parsed as yEnc.
	EncodingYEnc
	// EncodingUnsupported means a foreign encoding (uuencode) was
	// detected. The file is paused — every article would fail the
	// same way.
	EncodingUnsupported
)

// BadArticleCategory labels why an article was counted against its
// file.
type BadArticleCategory int

const (
	// CategoryKilled counts articles removed by the server (takedown
	// keywords in the response).
	CategoryKilled BadArticleCategory = iota
	// CategoryBad counts malformed articles: present but undecodable.
	CategoryBad
	// CategoryMissing counts articles absent from every known server.
	CategoryMissing
)

// Article is one network-addressable unit of work: a single message
// holding one encoded fragment of a file. Created by the queue layer
// before fetching; the decode pipeline mutates only its try-state.
//
// The try-state is mutex-protected because sibling try-list resets may
// arrive from other workers while this article's worker is appending.
type Article struct {
	// ID is the message identifier, used in logs.
	ID string

	// ExpectedSize is the expected decoded byte size, used for output
	// preallocation. Zero when unknown.
	ExpectedSize int64

	// LowestPart marks the lowest-numbered part of the file. Only
	// this part feeds the content fingerprint.
	LowestPart bool

	// File is the owning fragment set. Never nil for articles the
	// fetch layer enqueues.
	File *FileSet

	mutex   sync.Mutex
	fetcher *Server
	tries   int
	tryList []*Server
}

// NewArticle creates an article owned by the given file, fetched from
// the given server.
func NewArticle(id string, file *FileSet, fetcher *Server) *Article {
	return &Article{ID: id, File: file, fetcher: fetcher}
}

// Fetcher returns the server the article was last fetched from.
func (a *Article) Fetcher() *Server {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.fetcher
}

// SetFetcher records the server for the next fetch attempt.
func (a *Article) SetFetcher(server *Server) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.fetcher = server
}

// AddToTryList appends a server to the try-list. Idempotent: a server
// appears at most once per attempt cycle.
func (a *Article) AddToTryList(server *Server) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	for _, tried := range a.tryList {
		if tried == server {
			return
		}
	}
	a.tryList = append(a.tryList, server)
}

// InTryList reports whether a server has already been attempted in the
// current cycle.
func (a *Article) InTryList(server *Server) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	for _, tried := range a.tryList {
		if tried == server {
			return true
		}
	}
	return false
}

// Tries returns the retry count.
func (a *Article) Tries() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.tries
}

// IncrementTries bumps the retry count. Called by the fetch layer on
// each attempt.
func (a *Article) IncrementTries() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.tries++
}

// ResetTries zeroes the retry count without touching the try-list.
// Called when a new server is selected: the article starts fresh
// against it, but servers already exhausted stay excluded.
func (a *Article) ResetTries() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.tries = 0
}

// ResetTryState clears the try-list, and with it the retry count.
// This is the full reset used after transient system faults, when the
// article is left for a complete re-fetch.
func (a *Article) ResetTryState() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.tryList = a.tryList[:0]
	a.tries = 0
}

// TryListLength returns the number of servers attempted this cycle.
func (a *Article) TryListLength() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return len(a.tryList)
}

// FileSet is the output file an article belongs to: the fragment set
// being reassembled. Owned by the queue layer for its full lifetime;
// the decode pipeline mutates its counters, encoding state,
// fingerprint, and pause flag. All mutators are safe for concurrent
// use by multiple workers decoding sibling articles.
type FileSet struct {
	// Name is the file's current name, from the download manifest
	// until a decoded filename is verified.
	Name string

	// Precheck marks headers-only validation: article presence is
	// confirmed without decoding payload bytes.
	Precheck bool

	encoding       atomic.Int32
	paused         atomic.Bool
	filenameLocked atomic.Bool
	fragments      atomic.Int64

	fingerprintMutex sync.Mutex
	fingerprint      []byte

	killed  atomic.Int64
	bad     atomic.Int64
	missing atomic.Int64
}

// NewFileSet creates an empty fragment set.
func NewFileSet(name string) *FileSet {
	return &FileSet{Name: name}
}

// Encoding returns the encoding discovered for this file so far.
func (f *FileSet) Encoding() EncodingType {
	return EncodingType(f.encoding.Load())
}

// SetEncoding records the discovered encoding.
func (f *FileSet) SetEncoding(encoding EncodingType) {
	f.encoding.Store(int32(encoding))
}

// Paused reports whether processing of this file is paused.
func (f *FileSet) Paused() bool { return f.paused.Load() }

// Pause stops further processing of this file. Returns false when the
// file was already paused, so the caller warns the user only once.
func (f *FileSet) Pause() bool {
	return f.paused.CompareAndSwap(false, true)
}

// FragmentCount returns the number of successfully decoded fragments.
func (f *FileSet) FragmentCount() int64 { return f.fragments.Load() }

// IncrementFragments counts one successfully decoded fragment.
func (f *FileSet) IncrementFragments() { f.fragments.Add(1) }

// FilenameLocked reports whether a verified filename is already in
// place.
func (f *FileSet) FilenameLocked() bool { return f.filenameLocked.Load() }

// LockFilename marks the filename as verified. Called by the rename
// collaborator once it accepts a candidate; locked at most once.
func (f *FileSet) LockFilename() bool {
	return f.filenameLocked.CompareAndSwap(false, true)
}

// Fingerprint returns the content fingerprint and whether it has been
// computed.
func (f *FileSet) Fingerprint() ([]byte, bool) {
	f.fingerprintMutex.Lock()
	defer f.fingerprintMutex.Unlock()
	if f.fingerprint == nil {
		return nil, false
	}
	return f.fingerprint, true
}

// SetFingerprint stores the content fingerprint. Computed at most
// once, only from the file's lowest-numbered fragment; later calls are
// ignored and return false.
func (f *FileSet) SetFingerprint(fingerprint []byte) bool {
	f.fingerprintMutex.Lock()
	defer f.fingerprintMutex.Unlock()
	if f.fingerprint != nil {
		return false
	}
	f.fingerprint = fingerprint
	return true
}

// IncreaseBadArticles counts one bad article in the given category.
func (f *FileSet) IncreaseBadArticles(category BadArticleCategory) {
	switch category {
	case CategoryKilled:
		f.killed.Add(1)
	case CategoryBad:
		f.bad.Add(1)
	case CategoryMissing:
		f.missing.Add(1)
	}
}

// BadArticles returns the count for one category.
func (f *FileSet) BadArticles(category BadArticleCategory) int64 {
	switch category {
	case CategoryKilled:
		return f.killed.Load()
	case CategoryBad:
		return f.bad.Load()
	case CategoryMissing:
		return f.missing.Load()
	default:
		return 0
	}
}
