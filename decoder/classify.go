// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package decoder

import (
	"bytes"
	"strings"

	"github.com/spoolworks/spool/lib/yenc"
)

// removalKeywords are the takedown clues servers leave in place of a
// removed article. Matched case-insensitively as substrings.
var removalKeywords = []string{"dmca", "removed", "cancel", "blocked"}

// extensionHeaderPrefix marks X- extension headers, which are exempt
// from removal-keyword matching (an "X-Removed-By" style header about
// some other article must not kill this one).
var extensionHeaderPrefix = []byte("X-")

// statusOnlyPrefix is the bare status line a server returns for a
// presence check that carried no body.
var statusOnlyPrefix = []byte("223 ")

// classify decides what a failed or skipped decode actually means,
// from the raw artifacts available.
//
// found means the article genuinely exists on the server: either a
// bare "223 " status line during a presence precheck, or a message-id
// header anywhere in the response. killed means the server removed the
// article — any non-extension-header line matching a removal keyword.
// killed takes precedence over found. Neither set means the article is
// badly formed.
func classify(job Job, precheck bool) (found, killed bool) {
	lines := job.Lines
	if len(lines) == 0 {
		lines = yenc.SplitLines(job.Raw)
	}
	if len(lines) == 0 {
		return false, false
	}

	if precheck && bytes.HasPrefix(lines[0], statusOnlyPrefix) {
		return true, false
	}

	for _, line := range lines {
		lowered := strings.ToLower(string(line))
		if strings.Contains(lowered, "message-id:") {
			found = true
		}
		if !bytes.HasPrefix(line, extensionHeaderPrefix) && containsAny(lowered, removalKeywords) {
			killed = true
			break
		}
	}
	return found, killed
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}
