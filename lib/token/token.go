// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"crypto/ed25519"

	"github.com/bureau-foundation/warden/lib/codec"
	"github.com/bureau-foundation/warden/lib/digest"
	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/resource"
)

// fingerprintKey domain-separates token fingerprints from every other
// keyed hash in the kernel.
var fingerprintKey = digest.MustKey("warden.token.fingerprint")

// Token is the signed payload of a capability token. Field numbers
// are part of the wire format; never renumber them.
type Token struct {
	// Node is the single node this token is bound to. Presenting the
	// token for any other node fails validation.
	Node ref.NodeID `cbor:"1,keyasint"`
	// Level is the autonomy level the token grants.
	Level Level `cbor:"2,keyasint"`
	// Ceiling is the policy ceiling that applied at issuance. It is
	// embedded so that audit can reconstruct the issuance decision
	// without the policy state of the time.
	Ceiling Level `cbor:"3,keyasint"`
	// Caps is the resource allocation granted to the holder.
	Caps resource.Caps `cbor:"4,keyasint"`
	// ProfileHash pins the compiled directive profile the node was
	// admitted under.
	ProfileHash digest.Digest `cbor:"5,keyasint"`
	// Serial is the engine-local issuance counter. It makes every
	// minted token unique even when all other fields coincide.
	Serial uint64 `cbor:"6,keyasint"`
	// IssuedAt and ExpiresAt are Unix seconds. A token is expired
	// once the current time reaches ExpiresAt.
	IssuedAt  int64 `cbor:"7,keyasint"`
	ExpiresAt int64 `cbor:"8,keyasint"`
	// Parent is the fingerprint of the token this one was downgraded
	// from, or zero for tokens minted directly by the engine.
	Parent digest.Digest `cbor:"9,keyasint"`
}

// Fingerprint computes the keyed digest of a token's full wire form.
// It does not validate the token.
func Fingerprint(wire []byte) digest.Digest {
	return digest.Sum(fingerprintKey, wire)
}

// FormatFingerprint renders a fingerprint in display form:
// "cap-" followed by the first twelve hex characters.
func FormatFingerprint(fp digest.Digest) string {
	return "cap-" + fp.Short()
}

// sign encodes the payload and appends the Ed25519 signature.
func sign(private ed25519.PrivateKey, payload Token) ([]byte, error) {
	body, err := codec.Marshal(payload)
	if err != nil {
		return nil, fault.New(fault.IntegrityViolation, "encode token payload: %v", err)
	}
	sig := ed25519.Sign(private, body)
	wire := make([]byte, 0, len(body)+len(sig))
	wire = append(wire, body...)
	wire = append(wire, sig...)
	return wire, nil
}

// open verifies the signature on a wire-form token and decodes the
// payload. It performs no expiry or binding checks.
func open(public ed25519.PublicKey, wire []byte) (Token, error) {
	if len(wire) <= ed25519.SignatureSize {
		return Token{}, fault.New(fault.InvalidSignature, "token too short: %d bytes", len(wire))
	}
	body := wire[:len(wire)-ed25519.SignatureSize]
	sig := wire[len(wire)-ed25519.SignatureSize:]
	if !ed25519.Verify(public, body, sig) {
		return Token{}, fault.New(fault.InvalidSignature, "signature verification failed")
	}
	var payload Token
	if err := codec.Unmarshal(body, &payload); err != nil {
		return Token{}, fault.New(fault.InvalidSignature, "decode token payload: %v", err)
	}
	return payload, nil
}
