// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package token implements capability tokens: the bearer credentials
// that authorize every guarded kernel operation. A token binds an
// autonomy level, a resource allocation, and a profile hash to
// exactly one node for a bounded time window.
//
// # Wire format
//
// A token's wire form is its CBOR-encoded payload followed by a
// 64-byte Ed25519 signature over those payload bytes. The payload
// uses Core Deterministic Encoding, so the same logical token always
// produces the same bytes and therefore the same signature and
// fingerprint. The format is opaque to holders: possession does not
// imply the ability to mint or alter.
//
// # Fingerprints
//
// The fingerprint of a token is the keyed BLAKE3 digest of its entire
// wire form. Receipts and journal events reference tokens by
// fingerprint ("cap-" plus twelve hex characters in display form)
// rather than by carrying token bytes into the audit trail.
//
// # The engine
//
// [Engine] owns the signing keypair and performs all mint-side
// operations: issuance under ceiling and cap policy, validation with
// a structured check trace, and downgrade — deriving a token of equal
// or lower level, never longer validity, with lineage recorded via
// the parent fingerprint.
package token
