// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package decoder

import (
	"bytes"
	"testing"
)

func TestFingerprint(t *testing.T) {
	data := bytes.Repeat([]byte("fingerprint input "), 100)

	first := Fingerprint(data)
	if len(first) != 32 {
		t.Fatalf("fingerprint length = %d, want 32", len(first))
	}
	if !bytes.Equal(first, Fingerprint(data)) {
		t.Error("fingerprint is not deterministic")
	}
	if bytes.Equal(first, Fingerprint(data[:len(data)-1])) {
		t.Error("fingerprints collide for different inputs")
	}
}

func TestFingerprintCoversLeadingBytesOnly(t *testing.T) {
	head := bytes.Repeat([]byte{0xA5}, FingerprintLength)
	extended := append(append([]byte(nil), head...), []byte("trailing bytes beyond the window")...)

	if !bytes.Equal(Fingerprint(head), Fingerprint(extended)) {
		t.Error("bytes beyond the fingerprint window changed the digest")
	}
}

func TestVerifyFilename(t *testing.T) {
	t.Run("lowest part sets fingerprint", func(t *testing.T) {
		tp := newTestPool(t, nil)
		file := NewFileSet("placeholder")
		article := NewArticle("<v1@test>", file, &Server{Name: "s"})
		article.LowestPart = true

		tp.pool.verifyFilename(article, []byte("fragment bytes"), "real-name.bin")

		if _, ok := file.Fingerprint(); !ok {
			t.Error("fingerprint was not recorded for the lowest part")
		}
		if offered := tp.renamer.offered(); len(offered) != 1 || offered[0] != "real-name.bin" {
			t.Errorf("renamer offered %v, want [real-name.bin]", offered)
		}
	})

	t.Run("other parts leave fingerprint unset", func(t *testing.T) {
		tp := newTestPool(t, nil)
		file := NewFileSet("placeholder")
		article := NewArticle("<v2@test>", file, &Server{Name: "s"})

		tp.pool.verifyFilename(article, []byte("fragment bytes"), "real-name.bin")

		if _, ok := file.Fingerprint(); ok {
			t.Error("fingerprint recorded for a non-lowest part")
		}
		if len(tp.renamer.offered()) != 1 {
			t.Error("candidate was not offered")
		}
	})

	t.Run("locked filename is a no-op", func(t *testing.T) {
		tp := newTestPool(t, nil)
		file := NewFileSet("verified.bin")
		file.LockFilename()
		article := NewArticle("<v3@test>", file, &Server{Name: "s"})
		article.LowestPart = true

		tp.pool.verifyFilename(article, []byte("fragment bytes"), "other-name.bin")

		if len(tp.renamer.offered()) != 0 {
			t.Error("candidate offered after the filename was locked")
		}
		if _, ok := file.Fingerprint(); ok {
			t.Error("fingerprint recorded after the filename was locked")
		}
	})

	t.Run("empty candidate is a no-op", func(t *testing.T) {
		tp := newTestPool(t, nil)
		article := NewArticle("<v4@test>", NewFileSet("placeholder"), &Server{Name: "s"})

		tp.pool.verifyFilename(article, []byte("fragment bytes"), "")

		if len(tp.renamer.offered()) != 0 {
			t.Error("empty candidate was offered")
		}
	})
}
