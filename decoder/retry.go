// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package decoder

// searchNewServer decides whether an article that failed on its
// current server should be retried on another.
//
// The current server joins the article's try-list first, so it is
// excluded along with every server already attempted this cycle.
// Candidates are considered in configured order; the first active
// server not in the try-list whose priority is at least the current
// server's wins. A lower-priority server is never selected — the
// download would otherwise silently degrade to servers the user
// ranked below the one that failed.
//
// On success the article's retry count is reset and its siblings get
// a partial try-state reset (they may retry servers they had
// exhausted; this article keeps its own exclusions). On exhaustion
// the file's missing counter is bumped and the article is discarded.
func (p *Pool) searchNewServer(article *Article) bool {
	current := article.Fetcher()
	article.AddToTryList(current)

	for _, server := range p.servers {
		if !server.Active || article.InTryList(server) {
			continue
		}
		if server.Priority >= current.Priority {
			article.ResetTries()
			p.registrar.ResetTryState(article, false)
			return true
		}
	}

	p.logger.Info("article missing from all servers, discarding",
		"article", article.ID, "file", article.File.Name)
	article.File.IncreaseBadArticles(CategoryMissing)
	return false
}
