// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest provides the 32-byte BLAKE3 keyed digests used
// throughout warden: journal chain links, token fingerprints, and
// profile hashes. Every digest is computed in keyed mode under a
// domain key, so the same input bytes produce unrelated digests in
// different contexts.
package digest

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Size is the byte length of every warden digest.
const Size = 32

// Digest is a 32-byte BLAKE3 keyed digest. The zero value means
// "no digest"; use IsZero to check.
type Digest [Size]byte

// Key is a 32-byte key for BLAKE3 keyed hashing. Domain separation
// ensures the same input bytes produce different digests in different
// contexts, ruling out cross-domain collisions.
type Key [Size]byte

// MustKey builds a domain key from an ASCII name, zero-padded to 32
// bytes. Readable ASCII makes keys inspectable in hex dumps without
// sacrificing any cryptographic property — BLAKE3 keyed mode treats
// the key as an opaque 32-byte value. Keys are fixed constants;
// changing one invalidates every digest in its domain.
//
// Panics if the name exceeds 32 bytes. Call only from package-level
// var initialization.
func MustKey(name string) Key {
	if len(name) > Size {
		panic(fmt.Sprintf("digest.MustKey: domain name %q exceeds %d bytes", name, Size))
	}
	var key Key
	copy(key[:], name)
	return key
}

// Sum computes the BLAKE3 keyed digest of data under the given domain
// key.
func Sum(key Key, data []byte) Digest {
	// NewKeyed requires exactly 32 bytes, which Key guarantees. The
	// error is only returned for wrong key length, so this cannot
	// fail with our fixed-size type.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("digest: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d
}

// SumParts computes the keyed digest of the concatenation of parts
// without building the concatenation in memory.
func SumParts(key Key, parts ...[]byte) Digest {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("digest: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	for _, part := range parts {
		hasher.Write(part)
	}
	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d
}

// IsZero reports whether the digest is the zero value.
func (d Digest) IsZero() bool { return d == Digest{} }

// String returns the 64-character hex encoding. This is the canonical
// format used in journal records, SQL archives, and CLI output.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters, for logs and receipts
// where the full digest would be noise.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:6])
}

// Parse parses a 64-character hex string into a Digest.
func Parse(hexString string) (Digest, error) {
	var d Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return d, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != Size {
		return d, fmt.Errorf("digest is %d bytes, want %d", len(decoded), Size)
	}
	copy(d[:], decoded)
	return d, nil
}

// MarshalText implements encoding.TextMarshaler. Digests serialize as
// hex in both JSON and CBOR; the zero digest serializes as empty.
func (d Digest) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return nil, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input
// produces the zero digest.
func (d *Digest) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Digest{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
