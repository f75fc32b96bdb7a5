// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/warden/lib/clock"
	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/resource"
)

var testStart = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// testEngine builds an engine on a fake clock with a modest per-token
// cap ceiling.
func testEngine(t *testing.T) (*Engine, *clock.FakeClock) {
	t.Helper()
	pub, priv, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	fc := clock.Fake(testStart)
	engine, err := NewEngine(EngineConfig{
		Public:  pub,
		Private: priv,
		Clock:   fc,
		MaxCaps: resource.Caps{
			CPUTime:       time.Hour,
			MemoryBytes:   1 << 30,
			TokenBudget:   1_000_000,
			MaxIterations: 1000,
		},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine, fc
}

func testRequest(node ref.NodeID) IssueRequest {
	return IssueRequest{
		Node:    node,
		Level:   LevelImplement,
		Ceiling: LevelReview,
		Caps: resource.Caps{
			CPUTime:       10 * time.Minute,
			MemoryBytes:   256 << 20,
			TokenBudget:   50_000,
			MaxIterations: 20,
		},
	}
}

func TestIssueAndVerify(t *testing.T) {
	engine, _ := testEngine(t)
	node := ref.NewNodeID()

	issued, err := engine.Issue(testRequest(node))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.Token.Node != node {
		t.Errorf("token node = %s, want %s", issued.Token.Node, node)
	}
	if issued.Token.Level != LevelImplement {
		t.Errorf("token level = %s, want implement", issued.Token.Level)
	}
	if issued.Token.Ceiling != LevelReview {
		t.Errorf("token ceiling = %s, want review", issued.Token.Ceiling)
	}
	if issued.Token.IssuedAt != testStart.Unix() {
		t.Errorf("issued at = %d, want %d", issued.Token.IssuedAt, testStart.Unix())
	}
	if want := testStart.Add(DefaultTTL).Unix(); issued.Token.ExpiresAt != want {
		t.Errorf("expires at = %d, want %d", issued.Token.ExpiresAt, want)
	}
	if !issued.Token.Parent.IsZero() {
		t.Error("directly minted token should have zero parent")
	}

	checked, err := engine.Verify(issued.Wire, node)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if checked.Token != issued.Token {
		t.Errorf("verified payload = %+v, want %+v", checked.Token, issued.Token)
	}
	if checked.Fingerprint != issued.Fingerprint {
		t.Error("verify fingerprint differs from issue fingerprint")
	}
}

func TestIssueUniqueness(t *testing.T) {
	engine, _ := testEngine(t)
	node := ref.NewNodeID()

	first, err := engine.Issue(testRequest(node))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := engine.Issue(testRequest(node))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if first.Token.Serial == second.Token.Serial {
		t.Error("two issuances share a serial")
	}
	if first.Fingerprint == second.Fingerprint {
		t.Error("identical requests at the same instant must still produce distinct fingerprints")
	}
}

func TestIssueFaults(t *testing.T) {
	engine, _ := testEngine(t)
	node := ref.NewNodeID()

	tests := []struct {
		name     string
		mutate   func(*IssueRequest)
		wantCode fault.Code
	}{
		{
			name:     "level above ceiling",
			mutate:   func(r *IssueRequest) { r.Level = LevelAutonomous; r.Ceiling = LevelImplement },
			wantCode: fault.CeilingExceeded,
		},
		{
			name:     "caps above engine maximum",
			mutate:   func(r *IssueRequest) { r.Caps.MemoryBytes = 8 << 30 },
			wantCode: fault.LimitExceeded,
		},
		{
			name:     "zero node",
			mutate:   func(r *IssueRequest) { r.Node = ref.NodeID{} },
			wantCode: fault.TokenRequired,
		},
		{
			name:     "unknown level",
			mutate:   func(r *IssueRequest) { r.Level = Level(9) },
			wantCode: fault.PolicyViolation,
		},
		{
			name:     "unknown ceiling",
			mutate:   func(r *IssueRequest) { r.Ceiling = Level(200) },
			wantCode: fault.PolicyViolation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(node)
			tt.mutate(&req)
			_, err := engine.Issue(req)
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("Issue error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestIssueLevelEqualToCeiling(t *testing.T) {
	engine, _ := testEngine(t)
	req := testRequest(ref.NewNodeID())
	req.Level = LevelReview
	req.Ceiling = LevelReview
	if _, err := engine.Issue(req); err != nil {
		t.Fatalf("issuing at exactly the ceiling should succeed: %v", err)
	}
}

func TestVerifyWrongNode(t *testing.T) {
	engine, _ := testEngine(t)
	issued, err := engine.Issue(testRequest(ref.NewNodeID()))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, err = engine.Verify(issued.Wire, ref.NewNodeID())
	if !errors.Is(err, fault.TokenMismatch) {
		t.Errorf("Verify error = %v, want TokenMismatch", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	engine, fc := testEngine(t)
	node := ref.NewNodeID()
	req := testRequest(node)
	req.TTL = 5 * time.Minute

	issued, err := engine.Issue(req)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := engine.Verify(issued.Wire, node); err != nil {
		t.Fatalf("token should be valid immediately after issue: %v", err)
	}

	fc.Advance(5 * time.Minute)
	_, err = engine.Verify(issued.Wire, node)
	if !errors.Is(err, fault.TokenExpired) {
		t.Errorf("Verify after TTL = %v, want TokenExpired", err)
	}
}

func TestVerifyTampered(t *testing.T) {
	engine, _ := testEngine(t)
	node := ref.NewNodeID()
	issued, err := engine.Issue(testRequest(node))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tampered := append([]byte(nil), issued.Wire...)
	tampered[3] ^= 0x01
	if _, err := engine.Verify(tampered, node); !errors.Is(err, fault.InvalidSignature) {
		t.Errorf("tampered token error = %v, want InvalidSignature", err)
	}
}

func TestVerifyWrongKey(t *testing.T) {
	engine, _ := testEngine(t)
	other, _ := testEngine(t)
	node := ref.NewNodeID()

	issued, err := engine.Issue(testRequest(node))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := other.Verify(issued.Wire, node); !errors.Is(err, fault.InvalidSignature) {
		t.Errorf("foreign-key token error = %v, want InvalidSignature", err)
	}
}

func TestVerifyTruncated(t *testing.T) {
	engine, _ := testEngine(t)
	for _, n := range []int{0, 1, 63, 64} {
		if _, err := engine.Verify(make([]byte, n), ref.NodeID{}); !errors.Is(err, fault.InvalidSignature) {
			t.Errorf("Verify(%d bytes) = %v, want InvalidSignature", n, err)
		}
	}
}

func TestDowngrade(t *testing.T) {
	engine, _ := testEngine(t)
	node := ref.NewNodeID()
	issued, err := engine.Issue(testRequest(node))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	lowered, err := engine.Downgrade(issued.Wire, LevelObserve)
	if err != nil {
		t.Fatalf("Downgrade: %v", err)
	}
	if lowered.Token.Level != LevelObserve {
		t.Errorf("downgraded level = %s, want observe", lowered.Token.Level)
	}
	if lowered.Token.Node != node {
		t.Error("downgrade changed the bound node")
	}
	if lowered.Token.Ceiling != issued.Token.Ceiling {
		t.Error("downgrade changed the ceiling snapshot")
	}
	if lowered.Token.Caps != issued.Token.Caps {
		t.Error("downgrade changed the caps")
	}
	if lowered.Token.ExpiresAt != issued.Token.ExpiresAt {
		t.Errorf("downgrade expiry = %d, want %d (must not extend)", lowered.Token.ExpiresAt, issued.Token.ExpiresAt)
	}
	if lowered.Token.Parent != issued.Fingerprint {
		t.Error("downgraded token does not reference its parent fingerprint")
	}

	if _, err := engine.Verify(lowered.Wire, node); err != nil {
		t.Fatalf("downgraded token should verify: %v", err)
	}
}

func TestDowngradeSameLevel(t *testing.T) {
	engine, _ := testEngine(t)
	issued, err := engine.Issue(testRequest(ref.NewNodeID()))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	redelegated, err := engine.Downgrade(issued.Wire, issued.Token.Level)
	if err != nil {
		t.Fatalf("same-level downgrade should succeed: %v", err)
	}
	if redelegated.Fingerprint == issued.Fingerprint {
		t.Error("re-delegated token should have its own fingerprint")
	}
}

func TestDowngradeElevation(t *testing.T) {
	engine, _ := testEngine(t)
	issued, err := engine.Issue(testRequest(ref.NewNodeID()))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, err = engine.Downgrade(issued.Wire, LevelAutonomous)
	if !errors.Is(err, fault.ElevationForbidden) {
		t.Errorf("Downgrade to higher level = %v, want ElevationForbidden", err)
	}
}

func TestDowngradeExpiredOriginal(t *testing.T) {
	engine, fc := testEngine(t)
	req := testRequest(ref.NewNodeID())
	req.TTL = time.Minute
	issued, err := engine.Issue(req)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	fc.Advance(2 * time.Minute)
	if _, err := engine.Downgrade(issued.Wire, LevelObserve); !errors.Is(err, fault.TokenExpired) {
		t.Errorf("Downgrade of expired token = %v, want TokenExpired", err)
	}
}

func TestValidateReport(t *testing.T) {
	engine, _ := testEngine(t)
	node := ref.NewNodeID()
	issued, err := engine.Issue(testRequest(node))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	report := engine.Validate(issued.Wire, node)
	if !report.Valid {
		t.Fatalf("report not valid: %+v", report)
	}
	want := []string{"signature", "binding", "expiry"}
	if len(report.Checks) != len(want) {
		t.Fatalf("got %d checks, want %d", len(report.Checks), len(want))
	}
	for i, check := range report.Checks {
		if check.Name != want[i] {
			t.Errorf("check[%d] = %s, want %s", i, check.Name, want[i])
		}
		if !check.Passed {
			t.Errorf("check %s failed: %s", check.Name, check.Detail)
		}
	}
	if report.Token == nil || report.Token.Node != node {
		t.Error("report should carry the decoded payload")
	}
	if !strings.HasPrefix(report.Fingerprint, "cap-") {
		t.Errorf("report fingerprint %q lacks cap- prefix", report.Fingerprint)
	}
	if report.Failure != 0 {
		t.Errorf("valid report carries failure code %s", report.Failure)
	}
}

func TestValidateReportBindingFailure(t *testing.T) {
	engine, _ := testEngine(t)
	issued, err := engine.Issue(testRequest(ref.NewNodeID()))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	report := engine.Validate(issued.Wire, ref.NewNodeID())
	if report.Valid {
		t.Fatal("report should not be valid for a foreign node")
	}
	if len(report.Checks) != 2 {
		t.Fatalf("got %d checks, want 2 (stop at first failure)", len(report.Checks))
	}
	if report.Checks[0].Name != "signature" || !report.Checks[0].Passed {
		t.Errorf("signature check should pass first: %+v", report.Checks[0])
	}
	if report.Checks[1].Name != "binding" || report.Checks[1].Passed {
		t.Errorf("binding check should fail: %+v", report.Checks[1])
	}
	if report.Failure != fault.TokenMismatch {
		t.Errorf("report failure = %s, want token-mismatch", report.Failure)
	}
	if report.Token == nil {
		t.Error("payload decodes even when binding fails")
	}
}

func TestValidateReportBadSignature(t *testing.T) {
	engine, _ := testEngine(t)
	report := engine.Validate([]byte("not a token"), ref.NewNodeID())
	if report.Valid {
		t.Fatal("garbage should not validate")
	}
	if len(report.Checks) != 1 || report.Checks[0].Name != "signature" {
		t.Fatalf("expected a single failed signature check, got %+v", report.Checks)
	}
	if report.Failure != fault.InvalidSignature {
		t.Errorf("report failure = %s, want invalid-signature", report.Failure)
	}
	if report.Token != nil {
		t.Error("no payload should be reported for an unverifiable token")
	}
}

func TestLevelRoundTrip(t *testing.T) {
	for l := LevelObserve; l <= MaxLevel; l++ {
		parsed, err := ParseLevel(l.String())
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", l.String(), err)
		}
		if parsed != l {
			t.Errorf("ParseLevel(%q) = %s", l.String(), parsed)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{input: "observe", want: LevelObserve},
		{input: "autonomous", want: LevelAutonomous},
		{input: "3", want: LevelReview},
		{input: "0", want: LevelObserve},
		{input: "6", wantErr: true},
		{input: "OBSERVE", wantErr: true},
		{input: "", wantErr: true},
		{input: "root", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLevel(%q) = %s, want error", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestFormatFingerprint(t *testing.T) {
	engine, _ := testEngine(t)
	issued, err := engine.Issue(testRequest(ref.NewNodeID()))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	display := FormatFingerprint(issued.Fingerprint)
	if !strings.HasPrefix(display, "cap-") || len(display) != len("cap-")+12 {
		t.Errorf("display fingerprint %q has wrong shape", display)
	}
}
