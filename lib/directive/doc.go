// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package directive compiles authored policy documents into the
// execution profiles that capability tokens bind to.
//
// A directive set is a JSONC file (JSON with comments and trailing
// commas) holding an ordered list of allow/deny rules over action and
// resource patterns. Compilation validates the set, normalizes it into
// a canonical [ExecutionProfile], and hashes the deterministic CBOR
// encoding of that profile with a domain-separated BLAKE3 key. The
// hash — not the profile — is what flows through token issuance and
// the journal: the kernel treats it as an opaque commitment and never
// interprets rules itself.
//
// Because the hash is taken over the normalized form, cosmetic edits
// to the source file (comments, whitespace, effect casing, an explicit
// "*" resource) do not change it, while any semantic change does.
// Rule order is semantic: evaluation is first-match-wins with a
// default of deny.
package directive
