// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package yenc

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"math/rand"
	"testing"
)

// encodeMessage builds a complete yEnc message from raw bytes: header,
// optional part line, escaped payload split into lines, and a trailer
// declaring the matching checksum field. Returns the message as
// stripped lines.
func encodeMessage(data []byte, lineLength, part int, name string) [][]byte {
	var lines [][]byte

	if part > 0 {
		lines = append(lines, []byte(fmt.Sprintf(
			"=ybegin part=%d line=%d size=%d name=%s", part, lineLength, len(data), name)))
		lines = append(lines, []byte(fmt.Sprintf("=ypart begin=1 end=%d", len(data))))
	} else {
		lines = append(lines, []byte(fmt.Sprintf(
			"=ybegin line=%d size=%d name=%s", lineLength, len(data), name)))
	}

	current := make([]byte, 0, lineLength+2)
	for _, b := range data {
		encoded := b + 42
		switch encoded {
		case 0x00, '\n', '\r', Escape:
			current = append(current, Escape, encoded+64)
		default:
			current = append(current, encoded)
		}
		if len(current) >= lineLength {
			lines = append(lines, current)
			current = make([]byte, 0, lineLength+2)
		}
	}
	if len(current) > 0 {
		lines = append(lines, current)
	}

	checksum := crc32.ChecksumIEEE(data)
	if part > 0 {
		lines = append(lines, []byte(fmt.Sprintf(
			"=yend size=%d part=%d pcrc32=%08x", len(data), part, checksum)))
	} else {
		lines = append(lines, []byte(fmt.Sprintf("=yend size=%d crc32=%08x", len(data), checksum)))
	}
	return lines
}

// testData covers every byte value, so both the plain and the escape
// decode paths are exercised.
func testData(length int) []byte {
	rng := rand.New(rand.NewSource(42))
	data := make([]byte, length)
	for i := 0; i < 256 && i < length; i++ {
		data[i] = byte(i)
	}
	for i := 256; i < length; i++ {
		data[i] = byte(rng.Intn(256))
	}
	return data
}

func backends(t *testing.T) []Backend {
	t.Helper()
	var result []Backend
	for _, name := range []string{"reference", "chunked"} {
		backend, err := NewBackend(name)
		if err != nil {
			t.Fatalf("NewBackend(%q): %v", name, err)
		}
		result = append(result, backend)
	}
	return result
}

func TestRoundTrip(t *testing.T) {
	data := testData(5000)
	lines := encodeMessage(data, 128, 1, "segment.bin")

	for _, backend := range backends(t) {
		t.Run(backend.Name(), func(t *testing.T) {
			result, err := backend.Decode(Payload{Lines: lines}, int64(len(data)))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if result.Kind != Decoded {
				t.Fatalf("Kind = %v (expected %q, actual %q)", result.Kind, result.ExpectedCRC, result.ActualCRC)
			}
			if !bytes.Equal(result.Data, data) {
				t.Fatal("decoded bytes differ from the original")
			}
			if result.Filename != "segment.bin" {
				t.Errorf("Filename = %q", result.Filename)
			}
			if !result.Multipart {
				t.Error("Multipart = false for a part=1 message")
			}
			if result.ExpectedCRC != result.ActualCRC {
				t.Errorf("ExpectedCRC %q != ActualCRC %q", result.ExpectedCRC, result.ActualCRC)
			}
		})
	}
}

func TestRoundTripSinglePart(t *testing.T) {
	data := testData(700)
	lines := encodeMessage(data, 64, 0, "whole.dat")

	for _, backend := range backends(t) {
		result, err := backend.Decode(Payload{Lines: lines}, 0)
		if err != nil {
			t.Fatalf("%s: Decode: %v", backend.Name(), err)
		}
		if result.Kind != Decoded || result.Multipart {
			t.Errorf("%s: Kind = %v, Multipart = %v", backend.Name(), result.Kind, result.Multipart)
		}
		if !bytes.Equal(result.Data, data) {
			t.Errorf("%s: decoded bytes differ", backend.Name())
		}
	}
}

func TestBackendsProduceIdenticalOutput(t *testing.T) {
	reference, chunked := backends(t)[0], backends(t)[1]

	for _, length := range []int{1, 127, 128, 129, 4096, 70000} {
		data := testData(length)
		lines := encodeMessage(data, 128, 2, "equal.bin")

		fromReference, err := reference.Decode(Payload{Lines: lines}, 0)
		if err != nil {
			t.Fatalf("reference: %v", err)
		}
		fromChunked, err := chunked.Decode(Payload{Lines: lines}, 0)
		if err != nil {
			t.Fatalf("chunked: %v", err)
		}

		if !bytes.Equal(fromReference.Data, fromChunked.Data) {
			t.Errorf("length %d: backends decoded different bytes", length)
		}
		if fromReference.ActualCRC != fromChunked.ActualCRC {
			t.Errorf("length %d: CRC %q vs %q", length, fromReference.ActualCRC, fromChunked.ActualCRC)
		}
		if fromReference.Kind != fromChunked.Kind {
			t.Errorf("length %d: Kind %v vs %v", length, fromReference.Kind, fromChunked.Kind)
		}
	}
}

func TestDecodeFromRawChunks(t *testing.T) {
	data := testData(3000)
	lines := encodeMessage(data, 128, 1, "chunky.bin")

	// Rebuild the raw wire form (CRLF line endings) and slice it into
	// awkwardly sized chunks that split lines and escape pairs.
	var wire []byte
	for _, line := range lines {
		wire = append(wire, line...)
		wire = append(wire, '\r', '\n')
	}
	var chunks [][]byte
	for start := 0; start < len(wire); start += 7 {
		end := start + 7
		if end > len(wire) {
			end = len(wire)
		}
		chunks = append(chunks, wire[start:end])
	}

	for _, backend := range backends(t) {
		result, err := backend.Decode(Payload{Chunks: chunks}, 0)
		if err != nil {
			t.Fatalf("%s: Decode: %v", backend.Name(), err)
		}
		if result.Kind != Decoded {
			t.Fatalf("%s: Kind = %v", backend.Name(), result.Kind)
		}
		if !bytes.Equal(result.Data, data) {
			t.Errorf("%s: decoded bytes differ", backend.Name())
		}
	}
}

func TestCorruptPayloadYieldsCRCMismatch(t *testing.T) {
	data := testData(2000)
	lines := encodeMessage(data, 128, 1, "corrupt.bin")

	// Corrupt one payload byte. Pick a plain (non-escape) encoded byte
	// and replace it with a different plain byte.
	corrupted := false
	for _, line := range lines[2 : len(lines)-1] {
		for i, b := range line {
			if b != Escape && b != 'A' && b != '\r' {
				line[i] = 'A'
				corrupted = true
				break
			}
		}
		if corrupted {
			break
		}
	}
	if !corrupted {
		t.Fatal("found no byte to corrupt")
	}

	for _, backend := range backends(t) {
		result, err := backend.Decode(Payload{Lines: lines}, 0)
		if err != nil {
			t.Fatalf("%s: Decode: %v", backend.Name(), err)
		}
		if result.Kind != CRCMismatch {
			t.Fatalf("%s: Kind = %v, want CRCMismatch", backend.Name(), result.Kind)
		}
		if result.Data == nil {
			t.Errorf("%s: mismatch result dropped the decoded bytes", backend.Name())
		}
		if result.ExpectedCRC == "" || result.ActualCRC == "" || result.ExpectedCRC == result.ActualCRC {
			t.Errorf("%s: ExpectedCRC %q, ActualCRC %q", backend.Name(), result.ExpectedCRC, result.ActualCRC)
		}
	}
}

func TestMissingChecksumDecodesUnverified(t *testing.T) {
	data := testData(500)
	lines := encodeMessage(data, 128, 1, "nochecksum.bin")

	// Replace the trailer with one that declares the wrong field for a
	// multi-part message: crc32 instead of pcrc32.
	lines[len(lines)-1] = []byte(fmt.Sprintf("=yend size=%d crc32=%08x", len(data), crc32.ChecksumIEEE(data)))

	for _, backend := range backends(t) {
		result, err := backend.Decode(Payload{Lines: lines}, 0)
		if err != nil {
			t.Fatalf("%s: Decode: %v", backend.Name(), err)
		}
		if result.Kind != Decoded {
			t.Fatalf("%s: Kind = %v, want Decoded", backend.Name(), result.Kind)
		}
		if result.ExpectedCRC != "" {
			t.Errorf("%s: ExpectedCRC = %q, want empty (wrong checksum field must not be accepted)",
				backend.Name(), result.ExpectedCRC)
		}
		if !bytes.Equal(result.Data, data) {
			t.Errorf("%s: decoded bytes differ", backend.Name())
		}
	}
}

func TestMalformedInputs(t *testing.T) {
	tests := []struct {
		name  string
		lines [][]byte
		want  Kind
	}{
		{
			name:  "no header",
			lines: [][]byte{[]byte("just some text"), []byte("more text")},
			want:  Malformed,
		},
		{
			name: "header without trailer",
			lines: [][]byte{
				[]byte("=ybegin line=128 size=4 name=x"),
				[]byte("abcd"),
			},
			want: Malformed,
		},
		{
			name: "uuencode marker",
			lines: [][]byte{
				[]byte("begin 644 other.tar"),
				[]byte("M<5&5S=&EN9P``"),
			},
			want: Unsupported,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			for _, backend := range backends(t) {
				result, err := backend.Decode(Payload{Lines: test.lines}, 0)
				if err != nil {
					t.Fatalf("%s: Decode: %v", backend.Name(), err)
				}
				if result.Kind != test.want {
					t.Errorf("%s: Kind = %v, want %v", backend.Name(), result.Kind, test.want)
				}
				if result.Data != nil {
					t.Errorf("%s: %v result carries data", backend.Name(), test.want)
				}
			}
		})
	}
}

func TestEscapeAcrossLineBoundary(t *testing.T) {
	// An escape marker as the last byte of a line escapes the first
	// byte of the next line.
	data := []byte{256 - 42} // encodes to 0x00, which must be escaped
	header := []byte("=ybegin line=128 size=1 name=split.bin")
	end := []byte(fmt.Sprintf("=yend size=1 crc32=%08x", crc32.ChecksumIEEE(data)))
	lines := [][]byte{header, {Escape}, {0x00 + 64}, end}

	for _, backend := range backends(t) {
		result, err := backend.Decode(Payload{Lines: lines}, 0)
		if err != nil {
			t.Fatalf("%s: Decode: %v", backend.Name(), err)
		}
		if result.Kind != Decoded {
			t.Fatalf("%s: Kind = %v (expected %q actual %q)",
				backend.Name(), result.Kind, result.ExpectedCRC, result.ActualCRC)
		}
		if !bytes.Equal(result.Data, data) {
			t.Errorf("%s: Data = %v, want %v", backend.Name(), result.Data, data)
		}
	}
}

func TestNewBackendUnknown(t *testing.T) {
	if _, err := NewBackend("turbo"); err == nil {
		t.Fatal("NewBackend accepted an unknown name")
	}
}

func TestDeclaredSizeIsNotTrusted(t *testing.T) {
	// The header's size field only hints the output preallocation; a
	// hostile declaration must neither be allocated nor abort the
	// decode. Same for the caller's size hint.
	data := []byte{0x01, 0x02}
	lines := encodeMessage(data, 128, 0, "tiny.bin")
	lines[0] = []byte(fmt.Sprintf("=ybegin line=128 size=%d name=tiny.bin", int64(1)<<62))

	for _, backend := range backends(t) {
		for _, hint := range []int64{0, -1, int64(1) << 62} {
			result, err := backend.Decode(Payload{Lines: lines}, hint)
			if err != nil {
				t.Fatalf("%s: Decode with hint %d: %v", backend.Name(), hint, err)
			}
			if result.Kind != Decoded {
				t.Errorf("%s: Kind = %v with hint %d", backend.Name(), result.Kind, hint)
			}
			if !bytes.Equal(result.Data, data) {
				t.Errorf("%s: decoded bytes differ with hint %d", backend.Name(), hint)
			}
		}
	}
}

func TestTrailerOnlyFoundInTailWindow(t *testing.T) {
	data := testData(300)
	message := encodeMessage(data, 128, 0, "tail.bin")

	withTrailing := func(count int) [][]byte {
		lines := append([][]byte{}, message...)
		for i := 0; i < count; i++ {
			lines = append(lines, []byte(fmt.Sprintf("trailing junk %d", i)))
		}
		return lines
	}

	for _, backend := range backends(t) {
		// Trailer still within the last ten lines: junk after it is
		// ignored.
		result, err := backend.Decode(Payload{Lines: withTrailing(5)}, 0)
		if err != nil {
			t.Fatalf("%s: Decode: %v", backend.Name(), err)
		}
		if result.Kind != Decoded || !bytes.Equal(result.Data, data) {
			t.Errorf("%s: Kind = %v with trailer inside the window", backend.Name(), result.Kind)
		}

		// Trailer pushed past the window: no usable structure.
		result, err = backend.Decode(Payload{Lines: withTrailing(12)}, 0)
		if err != nil {
			t.Fatalf("%s: Decode: %v", backend.Name(), err)
		}
		if result.Kind != Malformed {
			t.Errorf("%s: Kind = %v, want %v for a trailer beyond the window",
				backend.Name(), result.Kind, Malformed)
		}
	}
}
