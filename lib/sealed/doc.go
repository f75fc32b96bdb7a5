// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts journal exports for off-box archival. It
// wraps filippo.io/age for the operations warden needs: generate
// x25519 identities, seal a stream to one or more operator
// recipients, and unseal it with a held identity.
//
// Sealing is stream-oriented: [Seal] wraps an io.Writer and [Unseal]
// an io.Reader, so exports of any size pass through without
// buffering. A sealed file starts with the age format intro line;
// [IsSealed] sniffs it so tools can accept sealed and plain exports
// through the same flag.
//
// Key exports:
//
//   - [GenerateIdentity] -- new x25519 identity and recipient strings
//   - [Seal] / [Unseal] -- streaming encrypt and decrypt
//   - [ReadIdentityFile] / [WriteIdentityFile] -- operator key files
//   - [ValidateRecipient] -- recipient validation before sealing
//
// Used by warden-verify (unseal and verify archived exports) and any
// embedder shipping audit trails off the box.
package sealed
