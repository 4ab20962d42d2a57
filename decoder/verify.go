// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package decoder

import (
	"github.com/zeebo/blake3"
)

// FingerprintLength is how many leading bytes of a file's first
// fragment feed the content fingerprint. 16 KiB is enough to
// corroborate the filename against an independent manifest without
// hashing the whole fragment.
const FingerprintLength = 16384

// fingerprintKey is the BLAKE3 domain-separation key for content
// fingerprints: the ASCII domain name zero-padded to 32 bytes.
// A fixed constant — changing it invalidates all stored fingerprints.
var fingerprintKey = [32]byte{
	's', 'p', 'o', 'o', 'l', '.', 'f', 'i', 'l', 'e', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't',
}

// Fingerprint computes the keyed BLAKE3 digest of the first 16 KiB of
// a fragment.
func Fingerprint(data []byte) []byte {
	if len(data) > FingerprintLength {
		data = data[:FingerprintLength]
	}
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("decoder: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return hasher.Sum(nil)
}

// verifyFilename forwards a decoded filename to the rename
// collaborator, and fingerprints the file when this fragment is its
// lowest-numbered part.
//
// No-op when the file's name is already verified or the fragment
// carried no filename. The collaborator owns the accept/reject
// decision; this only gates when the call happens.
func (p *Pool) verifyFilename(article *Article, data []byte, filename string) {
	file := article.File
	if file.FilenameLocked() || filename == "" {
		return
	}

	if article.LowestPart {
		file.SetFingerprint(Fingerprint(data))
	}

	p.renamer.VerifyFilename(file, filename)
}
