// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"crypto/ed25519"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/warden/lib/clock"
	"github.com/bureau-foundation/warden/lib/digest"
	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/resource"
)

// DefaultTTL is the validity window applied when an issuance request
// does not carry its own.
const DefaultTTL = 1 * time.Hour

// EngineConfig carries the dependencies of an Engine.
type EngineConfig struct {
	// Public and Private are the engine's Ed25519 signing keypair.
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
	// Clock supplies issuance and validation time. Defaults to the
	// real clock.
	Clock clock.Clock
	// MaxCaps bounds the resource allocation of any single token.
	// Zero fields are unbounded.
	MaxCaps resource.Caps
	// TTL is the default validity window. Defaults to DefaultTTL.
	TTL time.Duration
}

// Engine mints, validates, and downgrades capability tokens. It is
// safe for concurrent use.
type Engine struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
	clock   clock.Clock
	maxCaps resource.Caps
	ttl     time.Duration
	serial  atomic.Uint64
}

// NewEngine validates the keypair and builds an engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if len(cfg.Public) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(cfg.Public))
	}
	if len(cfg.Private) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(cfg.Private))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Engine{
		public:  cfg.Public,
		private: cfg.Private,
		clock:   cfg.Clock,
		maxCaps: cfg.MaxCaps,
		ttl:     cfg.TTL,
	}, nil
}

// PublicKey returns the verification key for the engine's tokens.
func (e *Engine) PublicKey() ed25519.PublicKey {
	return e.public
}

// IssueRequest describes a token to mint.
type IssueRequest struct {
	Node        ref.NodeID
	Level       Level
	Ceiling     Level
	Caps        resource.Caps
	ProfileHash digest.Digest
	// TTL overrides the engine default when positive.
	TTL time.Duration
}

// Issued is a freshly minted or downgraded token: its wire form plus
// the decoded payload and fingerprint.
type Issued struct {
	Wire        []byte
	Token       Token
	Fingerprint digest.Digest
}

// Issue mints a token. The requested level must not exceed the
// ceiling, and the requested caps must fit within the engine's
// per-token maxima.
func (e *Engine) Issue(req IssueRequest) (Issued, error) {
	if req.Node.IsZero() {
		return Issued{}, fault.New(fault.TokenRequired, "token must be bound to a node")
	}
	if !req.Level.Valid() {
		return Issued{}, fault.New(fault.PolicyViolation, "unknown autonomy level %d", uint8(req.Level))
	}
	if !req.Ceiling.Valid() {
		return Issued{}, fault.New(fault.PolicyViolation, "unknown ceiling level %d", uint8(req.Ceiling))
	}
	if req.Level > req.Ceiling {
		return Issued{}, fault.New(fault.CeilingExceeded, "level %s exceeds ceiling %s", req.Level, req.Ceiling)
	}
	if !req.Caps.Within(e.maxCaps) {
		return Issued{}, fault.New(fault.LimitExceeded, "requested caps %s exceed per-token maximum %s", req.Caps, e.maxCaps)
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = e.ttl
	}
	now := e.clock.Now()
	payload := Token{
		Node:        req.Node,
		Level:       req.Level,
		Ceiling:     req.Ceiling,
		Caps:        req.Caps,
		ProfileHash: req.ProfileHash,
		Serial:      e.serial.Add(1),
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(ttl).Unix(),
	}
	return e.finish(payload)
}

func (e *Engine) finish(payload Token) (Issued, error) {
	wire, err := sign(e.private, payload)
	if err != nil {
		return Issued{}, err
	}
	return Issued{
		Wire:        wire,
		Token:       payload,
		Fingerprint: Fingerprint(wire),
	}, nil
}

// Checked is the result of a successful verification.
type Checked struct {
	Token       Token
	Fingerprint digest.Digest
}

// Verify checks signature, payload integrity, node binding, and
// expiry against the engine clock. A zero bound skips the binding
// check; that form is only for operations acting on the token's own
// node, such as downgrade.
func (e *Engine) Verify(wire []byte, bound ref.NodeID) (Checked, error) {
	return e.VerifyAt(wire, bound, e.clock.Now())
}

// VerifyAt is Verify with an explicit validation time.
func (e *Engine) VerifyAt(wire []byte, bound ref.NodeID, now time.Time) (Checked, error) {
	payload, err := open(e.public, wire)
	if err != nil {
		return Checked{}, err
	}
	if !bound.IsZero() && payload.Node != bound {
		return Checked{}, fault.New(fault.TokenMismatch, "token bound to %s, presented for %s", payload.Node, bound)
	}
	if now.Unix() >= payload.ExpiresAt {
		return Checked{}, fault.New(fault.TokenExpired, "token expired at %s", time.Unix(payload.ExpiresAt, 0).UTC().Format(time.RFC3339))
	}
	return Checked{Token: payload, Fingerprint: Fingerprint(wire)}, nil
}

// Downgrade derives a token of equal or lower level from an existing
// valid token. The derived token keeps the original's node, caps,
// ceiling, and profile hash, records the original's fingerprint as
// its parent, and never outlives the original.
func (e *Engine) Downgrade(wire []byte, level Level) (Issued, error) {
	checked, err := e.Verify(wire, ref.NodeID{})
	if err != nil {
		return Issued{}, err
	}
	if !level.Valid() {
		return Issued{}, fault.New(fault.PolicyViolation, "unknown autonomy level %d", uint8(level))
	}
	if level > checked.Token.Level {
		return Issued{}, fault.New(fault.ElevationForbidden, "cannot downgrade %s token to higher level %s", checked.Token.Level, level)
	}
	payload := checked.Token
	payload.Level = level
	payload.Serial = e.serial.Add(1)
	payload.IssuedAt = e.clock.Now().Unix()
	payload.Parent = checked.Fingerprint
	return e.finish(payload)
}

// CheckResult is one step of a validation report.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Report is the full trace of a token validation. Checks run in a
// fixed order (signature, binding, expiry) and stop at the first
// failure; Checks records every check that ran.
type Report struct {
	Valid       bool          `json:"valid"`
	CheckedAt   time.Time     `json:"checked_at"`
	Checks      []CheckResult `json:"checks"`
	Token       *Token        `json:"token,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Failure     fault.Code    `json:"failure,omitempty"`
}

// Validate produces a structured report instead of a bare error. It
// is the inspection surface behind audit tooling; enforcement paths
// use Verify.
func (e *Engine) Validate(wire []byte, bound ref.NodeID) Report {
	now := e.clock.Now()
	report := Report{CheckedAt: now}

	record := func(name string, err error) bool {
		result := CheckResult{Name: name, Passed: err == nil}
		if err != nil {
			result.Detail = err.Error()
			if code, ok := fault.CodeOf(err); ok {
				report.Failure = code
			}
		}
		report.Checks = append(report.Checks, result)
		return err == nil
	}

	payload, err := open(e.public, wire)
	if !record("signature", err) {
		return report
	}
	report.Token = &payload
	report.Fingerprint = FormatFingerprint(Fingerprint(wire))

	var bindErr error
	if !bound.IsZero() && payload.Node != bound {
		bindErr = fault.New(fault.TokenMismatch, "token bound to %s, presented for %s", payload.Node, bound)
	}
	if !record("binding", bindErr) {
		return report
	}

	var expErr error
	if now.Unix() >= payload.ExpiresAt {
		expErr = fault.New(fault.TokenExpired, "token expired at %s", time.Unix(payload.ExpiresAt, 0).UTC().Format(time.RFC3339))
	}
	if !record("expiry", expErr) {
		return report
	}

	report.Valid = true
	return report
}
