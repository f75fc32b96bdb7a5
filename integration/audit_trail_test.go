// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package integration_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/bureau-foundation/warden/lib/auditdb"
	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/graph"
	"github.com/bureau-foundation/warden/lib/isolation"
	"github.com/bureau-foundation/warden/lib/journal"
	"github.com/bureau-foundation/warden/lib/kernel"
	"github.com/bureau-foundation/warden/lib/schedule"
	"github.com/bureau-foundation/warden/lib/sealed"
	"github.com/bureau-foundation/warden/lib/token"
)

// TestSealedExportToArchive runs a small deployment, exports its
// journal sealed to an auditor key, and carries the unsealed history
// into a SQLite archive: the offline audit path end to end. The
// archive must agree with the kernel at every step.
func TestSealedExportToArchive(t *testing.T) {
	t.Parallel()
	s := newStack(t, nil)
	ctx := t.Context()

	g := s.newGraph(t, graph.Production)
	api := s.newNode(t, g, "api")
	worker := s.newNode(t, g, "worker")
	s.dependOn(t, g, api, worker)

	apiToken := s.issueAt(t, g, api, token.LevelImplement)
	workerToken := s.issueAt(t, g, worker, token.LevelImplement)

	// One denial for the archive to carry: autonomous exceeds the
	// default production ceiling.
	if _, err := s.kernel.IssueToken(kernel.TokenRequest{
		Graph: g, Node: api, Level: token.LevelAutonomous, Caps: workCaps,
	}); !errors.Is(err, fault.CeilingExceeded) {
		t.Fatalf("over-ceiling issue error = %v, want CeilingExceeded", err)
	}

	s.admit(t, g, api, apiToken.Wire, isolation.WorkSpec{Kind: "task"})
	s.admit(t, g, worker, workerToken.Wire, isolation.WorkSpec{Kind: "task"})
	s.requireSettled(t, api, schedule.OutcomeMerged)
	s.requireSettled(t, worker, schedule.OutcomeMerged)

	// --- Seal the export to the auditor's key ---

	identity, recipient, err := sealed.GenerateIdentity()
	if err != nil {
		t.Fatal(err)
	}
	var sealedExport bytes.Buffer
	sealer, err := sealed.Seal(&sealedExport, []string{recipient})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.kernel.ExportJournal(sealer, journal.ExportOptions{
		Compression: journal.CompressionZstd,
	}); err != nil {
		t.Fatalf("export journal: %v", err)
	}
	if err := sealer.Close(); err != nil {
		t.Fatal(err)
	}
	if !sealed.IsSealed(sealedExport.Bytes()) {
		t.Fatal("export is not age armored")
	}

	// --- Unseal and import on the auditor's side ---

	opened, err := sealed.Unseal(bytes.NewReader(sealedExport.Bytes()), []string{identity})
	if err != nil {
		t.Fatalf("unseal: %v", err)
	}
	events, manifest, err := journal.Import(opened)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if manifest.Tip != s.kernel.JournalTip() {
		t.Errorf("imported tip %s does not match kernel tip %s",
			manifest.Tip.Short(), s.kernel.JournalTip().Short())
	}
	if len(events) != len(s.kernel.Events()) {
		t.Errorf("imported %d events, kernel holds %d", len(events), len(s.kernel.Events()))
	}

	// --- Archive and cross-examine ---

	archive, err := auditdb.Open(auditdb.Config{
		Path: filepath.Join(t.TempDir(), "audit.db"),
	})
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer archive.Close()

	archived, err := archive.IngestEvents(ctx, events)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if archived != len(events) {
		t.Errorf("archived %d events, want %d", archived, len(events))
	}

	report, err := archive.Verify(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Intact || report.Tip != s.kernel.JournalTip() {
		t.Errorf("archive verification = %+v", report)
	}

	// Per-node history must match the kernel's own answer.
	fromArchive, err := archive.Query(ctx, auditdb.Filter{Node: api})
	if err != nil {
		t.Fatal(err)
	}
	fromKernel := s.kernel.QueryEvents(journal.Filter{Node: api}, 0)
	if len(fromArchive) != len(fromKernel) {
		t.Errorf("archive returned %d events for node, kernel %d", len(fromArchive), len(fromKernel))
	}

	denied, err := archive.Query(ctx, auditdb.Filter{Result: "denied"})
	if err != nil {
		t.Fatal(err)
	}
	if len(denied) != 1 || denied[0].Action != "token/issue" {
		t.Errorf("denied events = %+v, want the single ceiling denial", denied)
	}

	// --- Catch up after further kernel activity ---

	s.issueAt(t, g, worker, token.LevelObserve)
	delta, err := archive.IngestEvents(ctx, s.kernel.Events())
	if err != nil {
		t.Fatal(err)
	}
	if delta != 1 {
		t.Errorf("catch-up archived %d events, want 1", delta)
	}
	again, err := archive.IngestEvents(ctx, s.kernel.Events())
	if err != nil {
		t.Fatal(err)
	}
	if again != 0 {
		t.Errorf("re-ingest archived %d events, want 0", again)
	}

	stats, err := archive.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Events != int64(len(s.kernel.Events())) {
		t.Errorf("archive holds %d events, kernel %d", stats.Events, len(s.kernel.Events()))
	}
	if stats.Tip != s.kernel.JournalTip() {
		t.Errorf("archive tip %s, kernel tip %s", stats.Tip.Short(), s.kernel.JournalTip().Short())
	}
}

// TestTamperedHistoryIsLocated corrupts one event in a copied history
// and requires verification to locate that exact event, while the
// kernel's own history stays verifiable and read operations stay
// idempotent.
func TestTamperedHistoryIsLocated(t *testing.T) {
	t.Parallel()
	s := newStack(t, nil)

	g := s.newGraph(t, graph.Production)
	a := s.newNode(t, g, "alpha")
	b := s.newNode(t, g, "beta")
	s.dependOn(t, g, a, b)
	s.issueAt(t, g, a, token.LevelImplement)

	history := s.kernel.Events()
	if len(history) < 5 {
		t.Fatalf("journey produced %d events, want at least 5", len(history))
	}

	forged := slices.Clone(history)
	forged[2].Action = "graph/backdoor"
	report := journal.VerifyChain(forged)
	if report.Intact {
		t.Fatal("forged history verified")
	}
	if report.BrokenAt != 3 {
		t.Errorf("break located at event %d, want 3", report.BrokenAt)
	}
	if report.BrokenAt == forged[len(forged)-1].Sequence {
		t.Error("break reported at the tip instead of the corrupted event")
	}
	if !strings.Contains(report.Reason, "content hash") {
		t.Errorf("break reason = %q", report.Reason)
	}
	if code, ok := fault.CodeOf(report.Err()); !ok || code != fault.IntegrityViolation {
		t.Errorf("report error = %v, want IntegrityViolation", report.Err())
	}

	// The kernel's stored history is untouched by the forgery, and
	// repeated reads agree with each other.
	first := s.requireIntact(t)
	second := s.requireIntact(t)
	if first.Tip != second.Tip || first.Events != second.Events {
		t.Errorf("repeated verification disagrees: %+v vs %+v", first, second)
	}
	q1 := s.kernel.QueryEvents(journal.Filter{}, 0)
	q2 := s.kernel.QueryEvents(journal.Filter{}, 0)
	if len(q1) != len(q2) || q1[len(q1)-1].ContentHash != q2[len(q2)-1].ContentHash {
		t.Error("repeated queries disagree")
	}
}
