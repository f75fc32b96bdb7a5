// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identifiers for the
// entities the warden kernel tracks: execution graphs, nodes, and
// schedule admissions.
//
// Each identifier is a validated value type wrapping its canonical
// string form — a fixed prefix followed by twelve lowercase hex
// characters ("graph-3f9ac2d4e8b1"). The hex suffix is drawn from
// crypto/rand at creation time; identifiers are unique by construction
// and carry no embedded meaning.
//
// All constructors validate their inputs and return errors for invalid
// strings. Once constructed, a ref is immutable. The zero value of
// every type is "unset" — use IsZero to check before trusting one.
//
// JSON and CBOR marshaling use the canonical string form via
// encoding.TextMarshaler.
package ref
