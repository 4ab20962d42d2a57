// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package decoder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spoolworks/spool/lib/clock"
	"github.com/spoolworks/spool/lib/yenc"
)

// decodeYield is the fixed pause at the top of each worker iteration.
// It keeps latency fair between the decode workers and the assembler
// draining the article store.
const decodeYield = 100 * time.Microsecond

// Default queue thresholds for the backpressure check.
const (
	// DefaultSoftQueueLimit is the depth below which a delayed fetch
	// layer is resumed regardless of store pressure.
	DefaultSoftQueueLimit = 10

	// DefaultHardQueueLimit is the depth at or above which the fetch
	// layer is never resumed, even with store reserve space.
	DefaultHardQueueLimit = 100
)

// Options configures a Pool. Queue, Backend, Store, Registrar, Fetch,
// and Renamer are required.
type Options struct {
	// Queue is the shared bounded job queue.
	Queue *Queue

	// Servers lists the known news servers in configured priority
	// order, for the failover policy.
	Servers []*Server

	// Backend is the yEnc decode implementation, selected once at
	// startup.
	Backend yenc.Backend

	// Store receives decoded article bytes.
	Store Store

	// Registrar is the queue-bookkeeping collaborator.
	Registrar Registrar

	// Fetch throttles the upstream fetch layer.
	Fetch FetchControl

	// Renamer verifies decoded filenames.
	Renamer Renamer

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// SoftQueueLimit and HardQueueLimit default to
	// DefaultSoftQueueLimit and DefaultHardQueueLimit.
	SoftQueueLimit int
	HardQueueLimit int

	// LogDecoding enables a debug log line per decoded article.
	LogDecoding bool
}

// Pool runs the decode workers. Workers share the queue and the
// collaborators; no article or file is processed by two workers at
// once because each job names exactly one article.
type Pool struct {
	queue     *Queue
	servers   []*Server
	backend   yenc.Backend
	store     Store
	registrar Registrar
	fetch     FetchControl
	renamer   Renamer
	clk       clock.Clock
	logger    *slog.Logger

	softLimit   int
	hardLimit   int
	logDecoding bool

	mu      sync.Mutex
	started int
	wg      sync.WaitGroup
}

// NewPool creates a worker pool. Workers are not running until Start.
func NewPool(options Options) (*Pool, error) {
	switch {
	case options.Queue == nil:
		return nil, errors.New("decoder: Options.Queue is required")
	case options.Backend == nil:
		return nil, errors.New("decoder: Options.Backend is required")
	case options.Store == nil:
		return nil, errors.New("decoder: Options.Store is required")
	case options.Registrar == nil:
		return nil, errors.New("decoder: Options.Registrar is required")
	case options.Fetch == nil:
		return nil, errors.New("decoder: Options.Fetch is required")
	case options.Renamer == nil:
		return nil, errors.New("decoder: Options.Renamer is required")
	}

	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.SoftQueueLimit == 0 {
		options.SoftQueueLimit = DefaultSoftQueueLimit
	}
	if options.HardQueueLimit == 0 {
		options.HardQueueLimit = DefaultHardQueueLimit
	}
	if options.SoftQueueLimit >= options.HardQueueLimit {
		return nil, fmt.Errorf("decoder: soft queue limit %d must be below hard limit %d",
			options.SoftQueueLimit, options.HardQueueLimit)
	}

	return &Pool{
		queue:       options.Queue,
		servers:     options.Servers,
		backend:     options.Backend,
		store:       options.Store,
		registrar:   options.Registrar,
		fetch:       options.Fetch,
		renamer:     options.Renamer,
		clk:         options.Clock,
		logger:      options.Logger,
		softLimit:   options.SoftQueueLimit,
		hardLimit:   options.HardQueueLimit,
		logDecoding: options.LogDecoding,
	}, nil
}

// Start launches workers worker goroutines.
func (p *Pool) Start(workers int) {
	p.mu.Lock()
	p.started += workers
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// Stop shuts the pool down by enqueuing exactly one stop sentinel per
// running worker, then waits for all of them to exit. A worker that
// receives a sentinel exits immediately without consuming further
// jobs, so fewer sentinels than workers would leave workers running.
func (p *Pool) Stop() {
	p.mu.Lock()
	running := p.started
	p.started = 0
	p.mu.Unlock()

	for i := 0; i < running; i++ {
		p.queue.Push(Job{})
	}
	p.wg.Wait()
}

// run is one worker: pop, backpressure check, dispatch, repeat until a
// stop sentinel arrives. A dequeued job always runs to completion —
// there is no mid-job cancellation.
func (p *Pool) run() {
	defer p.wg.Done()
	for {
		p.clk.Sleep(decodeYield)

		job := p.queue.Pop()

		// The slot this job occupied is free now; maybe the fetch
		// layer can continue. Checked for every dequeued item, stop
		// sentinels included.
		p.maybeResumeFetch(job.Size())

		if job.Sentinel() {
			return
		}
		p.process(job)
	}
}

// maybeResumeFetch resumes a delayed fetch layer when the queue has
// drained below the soft threshold, or the store has reserve space for
// a payload of the given size — provided the queue is below the hard
// ceiling either way.
func (p *Pool) maybeResumeFetch(jobSize int) {
	depth := p.queue.Depth()
	if (depth < p.softLimit || p.store.HasReserveSpace(jobSize)) &&
		depth < p.hardLimit && p.fetch.Delayed() {
		p.fetch.Resume()
	}
}

// process handles one article job end to end: decode, classify,
// decide disposition, store bytes, register the outcome.
func (p *Pool) process(job Job) {
	article := job.Article
	file := article.File

	var (
		data     []byte
		found    bool
		killed   bool
		register = true

		// badNote is set while the article should count against its
		// file (killed or bad); cleared when a retry supersedes the
		// verdict.
		badNote bool
	)

	if !job.HasData() {
		// Starve: the fetch produced nothing for this article. No
		// classification possible — go straight to the failover
		// policy. Registration as not-found only when no server is
		// left to try.
		if p.searchNewServer(article) {
			register = false
		}
		if register {
			p.registrar.RegisterArticle(article, false)
		}
		return
	}

	var result yenc.Result
	var err error

	if file.Precheck {
		// Headers-only validation: skip the codec and let the
		// classifier decide from the status line and headers.
		result = yenc.Result{Kind: yenc.Malformed}
	} else {
		if p.logDecoding {
			p.logger.Debug("decoding article", "article", article.ID)
		}
		result, err = p.backend.Decode(job.payload(), article.ExpectedSize)
	}

	switch {
	case err != nil && errors.Is(err, yenc.ErrSystem):
		// Transient fault: the article is fine, the process is not.
		// Pause fetching, give the article a clean slate, and leave it
		// unregistered for re-fetch.
		p.logger.Warn("decoding failed, pausing fetch layer",
			"article", article.ID, "error", err)
		p.fetch.Pause()
		p.registrar.ResetTryState(article, true)
		register = false
		badNote = true

	case err != nil:
		// Unclassified failure: treated conservatively as a retry
		// trigger.
		p.logger.Info("unknown error while decoding",
			"article", article.ID, "error", err)
		badNote = true
		if p.searchNewServer(article) {
			register = false
			badNote = false
		}

	case result.Kind == yenc.Decoded:
		file.SetEncoding(EncodingYEnc)
		file.IncrementFragments()
		found = true
		data = result.Data
		if result.ExpectedCRC == "" {
			p.logger.Debug("trailer carried no usable checksum, article accepted unverified",
				"article", article.ID)
		}
		p.verifyFilename(article, result.Data, result.Filename)

	case result.Kind == yenc.CRCMismatch:
		// The bytes are delivered anyway; downstream repair can often
		// absorb a corrupt fragment cheaper than another fetch.
		file.SetEncoding(EncodingYEnc)
		p.logger.Info("crc mismatch, keeping article data", "article", article.ID,
			"expected", result.ExpectedCRC, "actual", result.ActualCRC)
		data = result.Data
		found = true
		badNote = true

	case result.Kind == yenc.Unsupported:
		file.SetEncoding(EncodingUnsupported)
		if file.Pause() {
			p.logger.Warn("uuencode detected, only yEnc encoding is supported",
				"file", file.Name)
		}
		found = true

	default: // yenc.Malformed, and the precheck path
		found, killed = classify(job, file.Precheck)
		if killed {
			p.logger.Info("article removed from server", "article", article.ID)
			badNote = true
		}
		if file.Precheck {
			if found && !killed {
				p.logger.Debug("server has article",
					"server", article.Fetcher().Name, "article", article.ID)
			}
		} else if !killed && !found {
			p.logger.Info("badly formed yEnc article", "article", article.ID)
			badNote = true
		}
		if !found || killed {
			if p.searchNewServer(article) {
				register = false
				badNote = false
			}
		}
	}

	if badNote {
		if killed {
			file.IncreaseBadArticles(CategoryKilled)
		} else {
			file.IncreaseBadArticles(CategoryBad)
		}
	}

	if len(data) > 0 {
		if err := p.store.SaveArticle(article, data); err != nil {
			p.logger.Warn("storing decoded article failed",
				"article", article.ID, "error", err)
		}
	}

	if register {
		p.registrar.RegisterArticle(article, found)
	}
}
