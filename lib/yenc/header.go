// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package yenc

import (
	"bytes"
	"strconv"
	"strings"
)

// Marker keywords. These are wire-format constants.
var (
	markerBegin   = []byte("=ybegin ")
	markerPart    = []byte("=ypart ")
	markerEnd     = []byte("=yend ")
	markerForeign = []byte("begin ")
)

// header holds the parsed =ybegin fields.
type header struct {
	// lineLength is the declared encoded line length. The field is
	// recovered positionally when the line carries a bare leading
	// number, or from line= otherwise.
	lineLength int

	// size is the declared file size in bytes (size=).
	size int64

	// part and total are the part number and part count for
	// multi-part files. Zero when absent.
	part  int
	total int

	// name is the embedded filename, verbatim — it may contain spaces
	// and '=' characters. Empty when absent.
	name string
}

// partHeader holds the parsed =ypart fields: the 1-based byte range of
// this part within the whole file.
type partHeader struct {
	begin int64
	end   int64
}

// trailer holds the parsed =yend fields. The checksum values are kept
// as declared — selection between crc32 and pcrc32 and padding happen
// in declaredCRC.
type trailer struct {
	size   int64
	crc32  string
	pcrc32 string
}

// parseFields parses a yEnc "key=value key=value" sequence. A key is a
// run of ASCII alphanumerics immediately followed by '='. When
// nameTakesRest is set, the value of the "name" key is the remainder
// of the input verbatim (minus surrounding whitespace) — filenames may
// contain spaces and '=' characters, so the parser must not split on
// separators inside them. Tokens that are not key=value pairs are
// skipped.
func parseFields(s string, nameTakesRest bool) map[string]string {
	fields := make(map[string]string, 5)

	i := 0
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i >= len(s) {
			break
		}

		keyEnd := i
		for keyEnd < len(s) && isAlphanumeric(s[keyEnd]) {
			keyEnd++
		}
		if keyEnd == i || keyEnd >= len(s) || s[keyEnd] != '=' {
			// Not a key=value token; skip to the next space.
			for i < len(s) && s[i] != ' ' {
				i++
			}
			continue
		}

		key := strings.ToLower(s[i:keyEnd])
		if nameTakesRest && key == "name" {
			fields[key] = strings.TrimSpace(s[keyEnd+1:])
			break
		}

		valueEnd := keyEnd + 1
		for valueEnd < len(s) && s[valueEnd] != ' ' {
			valueEnd++
		}
		fields[key] = strings.TrimSpace(s[keyEnd+1 : valueEnd])
		i = valueEnd
	}
	return fields
}

func isAlphanumeric(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// parseHeaderLine parses a "=ybegin ..." line. The line length may
// appear as a bare leading number (positional form) or as line=.
// Missing or unparseable fields are left at their zero values — the
// decode proceeds without them and the caller records the anomaly.
func parseHeaderLine(line []byte) header {
	rest := string(line[len(markerBegin):])

	var h header

	// Positional form: a bare number directly after the marker is the
	// encoded line length.
	trimmed := strings.TrimLeft(rest, " ")
	firstToken := trimmed
	if end := strings.IndexByte(trimmed, ' '); end >= 0 {
		firstToken = trimmed[:end]
	}
	if firstToken != "" && !strings.ContainsRune(firstToken, '=') {
		if n, err := strconv.Atoi(firstToken); err == nil {
			h.lineLength = n
			trimmed = trimmed[len(firstToken):]
		}
	}

	fields := parseFields(trimmed, true)
	if v, ok := fields["line"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			h.lineLength = n
		}
	}
	if v, ok := fields["size"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			h.size = n
		}
	}
	if v, ok := fields["part"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			h.part = n
		}
	}
	if v, ok := fields["total"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			h.total = n
		}
	}
	h.name = fields["name"]
	return h
}

// parsePartLine parses a "=ypart ..." line.
func parsePartLine(line []byte) partHeader {
	fields := parseFields(string(line[len(markerPart):]), false)

	var p partHeader
	if v, ok := fields["begin"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.begin = n
		}
	}
	if v, ok := fields["end"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.end = n
		}
	}
	return p
}

// parseTrailerLine parses a "=yend ..." line.
func parseTrailerLine(line []byte) trailer {
	fields := parseFields(string(line[len(markerEnd):]), false)

	var t trailer
	if v, ok := fields["size"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			t.size = n
		}
	}
	t.crc32 = fields["crc32"]
	t.pcrc32 = fields["pcrc32"]
	return t
}

// declaredCRC selects and normalizes the trailer's checksum for the
// message's part mode: pcrc32 for one part of a multi-part file,
// crc32 for a whole single-part file. The wrong field is never
// accepted as a substitute. Declared values may be shorter than 8 hex
// digits and are left-zero-padded to 8 and uppercased for comparison.
// Returns "" when the matching field is absent.
func declaredCRC(t trailer, multipart bool) string {
	declared := t.crc32
	if multipart {
		declared = t.pcrc32
	}
	if declared == "" {
		return ""
	}
	if len(declared) < 8 {
		declared = strings.Repeat("0", 8-len(declared)) + declared
	}
	return strings.ToUpper(declared)
}

// locate finds the header, optional part header, and trailer among the
// payload lines, returning the lines between them.
//
// The header is searched in the first 40 lines; when the line after
// the header is a =ypart line it is consumed as well. The trailer is
// searched in the last 10 lines, scanning from the end. A nil trailer
// with ok=true means the header was found but no trailer — the caller
// treats that as malformed.
func locate(lines [][]byte) (h header, part *partHeader, t *trailer, payload [][]byte, ok bool) {
	window := len(lines)
	if window > headerScanWindow {
		window = headerScanWindow
	}

	headerAt := -1
	for i := 0; i < window; i++ {
		if bytes.HasPrefix(lines[i], markerBegin) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return header{}, nil, nil, nil, false
	}

	h = parseHeaderLine(lines[headerAt])
	payload = lines[headerAt+1:]
	if len(payload) > 0 && bytes.HasPrefix(payload[0], markerPart) {
		parsed := parsePartLine(payload[0])
		part = &parsed
		payload = payload[1:]
	}

	for i := 1; i <= trailerScanWindow && i <= len(payload); i++ {
		candidate := payload[len(payload)-i]
		if bytes.HasPrefix(candidate, markerEnd) {
			parsed := parseTrailerLine(candidate)
			t = &parsed
			payload = payload[:len(payload)-i]
			break
		}
	}
	return h, part, t, payload, true
}

// foreignEncoding reports whether the leading lines carry a uuencode
// "begin " marker. Checked only after the yEnc header search fails.
func foreignEncoding(lines [][]byte) bool {
	window := len(lines)
	if window > headerScanWindow {
		window = headerScanWindow
	}
	for i := 0; i < window; i++ {
		if bytes.HasPrefix(lines[i], markerForeign) {
			return true
		}
	}
	return false
}
