// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// spool-decoder runs the decode pipeline over a directory of raw
// article dumps: each file is one article as fetched from a news
// server. Decoded fragments land in the output directory. This is the
// offline harness for the pipeline — the same pool, queue, cache, and
// codec backends the download path uses, minus the network.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spoolworks/spool/decoder"
	"github.com/spoolworks/spool/lib/articlecache"
	"github.com/spoolworks/spool/lib/config"
	"github.com/spoolworks/spool/lib/version"
	"github.com/spoolworks/spool/lib/yenc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "",
		"path to the spool.yaml config file (default: $SPOOL_CONFIG, else built-in defaults)")
	inputDir := flag.String("input", "",
		"directory of raw article dumps, one article per file (required)")
	outputDir := flag.String("output", "",
		"directory for decoded fragments (required)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, or error")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("spool-decoder %s\n", version.String())
		return nil
	}
	if *inputDir == "" {
		return fmt.Errorf("--input is required")
	}
	if *outputDir == "" {
		return fmt.Errorf("--output is required")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", *logLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	spillDir := cfg.Cache.SpillDir
	if spillDir == "" {
		spillDir = filepath.Join(*outputDir, ".spill")
	}

	cache, err := articlecache.New(articlecache.Config{
		MemoryLimit: cfg.Cache.MemoryLimit,
		SpillDir:    spillDir,
	}, logger)
	if err != nil {
		return err
	}

	backend, err := yenc.NewBackend(cfg.Decoder.Backend)
	if err != nil {
		return err
	}

	servers := make([]*decoder.Server, 0, len(cfg.Servers))
	for _, server := range cfg.Servers {
		servers = append(servers, &decoder.Server{
			Name:     server.Name,
			Priority: server.Priority,
			Active:   server.Active,
		})
	}
	// Offline there is no fetch layer to retry against; articles are
	// attributed to a synthetic server so the failover policy runs its
	// normal exhaustion path.
	local := &decoder.Server{Name: "local", Active: true}

	outcomes := &outcomeLog{}
	renamer := &recordingRenamer{names: make(map[*decoder.FileSet]string)}

	queue := decoder.NewQueue(cfg.Decoder.QueueSize)
	pool, err := decoder.NewPool(decoder.Options{
		Queue:          queue,
		Servers:        servers,
		Backend:        backend,
		Store:          cache,
		Registrar:      outcomes,
		Fetch:          &fetchState{},
		Renamer:        renamer,
		Logger:         logger,
		SoftQueueLimit: cfg.Decoder.SoftQueueLimit,
		HardQueueLimit: cfg.Decoder.HardQueueLimit,
		LogDecoding:    cfg.Decoder.LogDecoding,
	})
	if err != nil {
		return err
	}

	// Workers start before enqueueing: the queue is bounded, and a
	// directory larger than its capacity must drain as it fills.
	pool.Start(cfg.Decoder.Workers)
	articles, err := enqueueArticles(queue, *inputDir, local)
	if err != nil {
		pool.Stop()
		return err
	}
	pool.Stop()

	decoded, failed := 0, 0
	for _, article := range articles {
		if !outcomes.wasFound(article) {
			failed++
			continue
		}
		if err := writeFragment(cache, renamer, article, *outputDir); err != nil {
			logger.Warn("writing fragment failed", "article", article.ID, "error", err)
			failed++
			continue
		}
		decoded++
	}

	logger.Info("run complete", "articles", len(articles), "decoded", decoded, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d articles failed to decode", failed, len(articles))
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("SPOOL_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// enqueueArticles pushes one job per input file, in name order. Each
// file gets its own fragment set: the harness decodes articles
// independently rather than reassembling a download.
func enqueueArticles(queue *decoder.Queue, inputDir string, server *decoder.Server) ([]*decoder.Article, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var articles []*decoder.Article
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(inputDir, name))
		if err != nil {
			return nil, fmt.Errorf("reading article %s: %w", name, err)
		}
		file := decoder.NewFileSet(name)
		article := decoder.NewArticle(name, file, server)
		article.LowestPart = true
		articles = append(articles, article)
		queue.Push(decoder.Job{Article: article, Raw: [][]byte{raw}})
	}
	return articles, nil
}

// writeFragment copies one decoded payload out of the cache, naming
// the output after the verified filename when one was decoded.
func writeFragment(cache *articlecache.Cache, renamer *recordingRenamer,
	article *decoder.Article, outputDir string) error {
	data, err := cache.FetchArticle(article)
	if err != nil {
		return err
	}

	name := article.File.Name
	if verified, ok := renamer.nameOf(article.File); ok {
		name = verified
	}
	path := filepath.Join(outputDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	cache.DiscardArticle(article)
	return nil
}

// outcomeLog is the harness registrar: it records each article's final
// disposition so the main loop knows which payloads to collect.
type outcomeLog struct {
	mutex sync.Mutex
	found map[*decoder.Article]bool
}

func (o *outcomeLog) RegisterArticle(article *decoder.Article, found bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.found == nil {
		o.found = make(map[*decoder.Article]bool)
	}
	o.found[article] = found
}

func (o *outcomeLog) ResetTryState(article *decoder.Article, full bool) {
	// No sibling articles in the harness; only the article's own
	// full reset applies.
	if full {
		article.ResetTryState()
	}
}

func (o *outcomeLog) wasFound(article *decoder.Article) bool {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.found[article]
}

// fetchState stands in for the download throttle. The harness
// enqueues everything up front, so Pause and Resume only track state.
type fetchState struct {
	mutex   sync.Mutex
	delayed bool
}

func (f *fetchState) Pause() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.delayed = true
}

func (f *fetchState) Resume() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.delayed = false
}

func (f *fetchState) Delayed() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.delayed
}

// recordingRenamer accepts the first candidate filename per fragment
// set.
type recordingRenamer struct {
	mutex sync.Mutex
	names map[*decoder.FileSet]string
}

func (r *recordingRenamer) VerifyFilename(file *decoder.FileSet, candidate string) {
	if !file.LockFilename() {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.names[file] = candidate
}

func (r *recordingRenamer) nameOf(file *decoder.FileSet) (string, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	name, ok := r.names[file]
	return name, ok
}
