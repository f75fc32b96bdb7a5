// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/warden/lib/auditdb"
	"github.com/bureau-foundation/warden/lib/clock"
	"github.com/bureau-foundation/warden/lib/journal"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/sealed"
)

// buildExport produces a three-event export with one minute between
// events, starting at 10:00 UTC. The last event carries a marker attr
// that tamper tests rewrite in uncompressed payloads.
func buildExport(t *testing.T, compression journal.CompressionTag) ([]byte, ref.GraphID, ref.NodeID) {
	t.Helper()
	fc := clock.Fake(time.Date(2026, time.June, 3, 10, 0, 0, 0, time.UTC))
	j := journal.New(fc)

	graphID := ref.NewGraphID()
	node := ref.NewNodeID()
	j.Append(journal.Event{Graph: graphID, Action: "graph/create", Result: "ok"})
	fc.Advance(time.Minute)
	j.Append(journal.Event{Graph: graphID, Node: node, Action: "graph/node", Result: "ok"})
	fc.Advance(time.Minute)
	j.Append(journal.Event{
		Graph: graphID, Node: node, Level: 2,
		Action: "token/issue", Result: "ok",
		Attrs: map[string]string{"note": "tamper-target"},
	})

	var buf bytes.Buffer
	if err := j.Export(&buf, journal.ExportOptions{Compression: compression}); err != nil {
		t.Fatalf("export: %v", err)
	}
	return buf.Bytes(), graphID, node
}

func writeTestFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// mustRun executes a subcommand line and fails the test on a non-zero
// exit, returning captured stdout.
func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if code := run(args, &stdout, &stderr); code != 0 {
		t.Fatalf("run(%v) = %d (stderr: %s)", args, code, stderr.String())
	}
	return stdout.String()
}

func TestIngestQueryStatsFlow(t *testing.T) {
	data, graphID, node := buildExport(t, journal.CompressionZstd)
	exportPath := writeTestFile(t, "audit.export", data)
	archivePath := filepath.Join(t.TempDir(), "audit.db")

	out := mustRun(t, "ingest", "--archive", archivePath, exportPath)
	if !strings.Contains(out, "3 newly archived") {
		t.Errorf("first ingest output: %s", out)
	}

	// Re-ingesting the same chain is a no-op.
	out = mustRun(t, "ingest", "--archive", archivePath, exportPath)
	if !strings.Contains(out, "0 newly archived") {
		t.Errorf("second ingest output: %s", out)
	}

	var events []journal.Event
	out = mustRun(t, "query", "--archive", archivePath, "--action", "token/", "--json")
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatalf("parsing query output: %v\n%s", err, out)
	}
	if len(events) != 1 || events[0].Action != "token/issue" {
		t.Fatalf("token query = %+v, want one token/issue event", events)
	}
	if events[0].Node != node || events[0].Level != 2 {
		t.Errorf("event = %+v, want node %s at level 2", events[0], node)
	}
	if events[0].Attrs["note"] != "tamper-target" {
		t.Errorf("attrs did not survive the archive round trip: %v", events[0].Attrs)
	}

	out = mustRun(t, "query", "--archive", archivePath, "--graph", graphID.String(), "--json")
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Errorf("graph query returned %d events, want 3", len(events))
	}

	out = mustRun(t, "query", "--archive", archivePath, "--min-level", "implement", "--json")
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("min-level query returned %d events, want 1", len(events))
	}

	out = mustRun(t, "query", "--archive", archivePath, "--result", "denied")
	if !strings.Contains(out, "0 event(s)") {
		t.Errorf("denied query output: %s", out)
	}

	var stats auditdb.Stats
	out = mustRun(t, "stats", "--archive", archivePath, "--json")
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("parsing stats output: %v\n%s", err, out)
	}
	if stats.Events != 3 || stats.Tip.IsZero() {
		t.Errorf("stats = %+v, want 3 events with a tip", stats)
	}
	if got := stats.Oldest.Format(time.RFC3339); got != "2026-06-03T10:00:00Z" {
		t.Errorf("stats oldest = %s", got)
	}

	out = mustRun(t, "stats", "--archive", archivePath)
	if !strings.Contains(out, "Events:    3") || !strings.Contains(out, "Database:") {
		t.Errorf("human stats output: %s", out)
	}

	out = mustRun(t, "verify", "--archive", archivePath)
	if !strings.Contains(out, "archive intact: 3 events") {
		t.Errorf("verify output: %s", out)
	}
}

func TestQueryTimeWindow(t *testing.T) {
	data, _, _ := buildExport(t, journal.CompressionZstd)
	exportPath := writeTestFile(t, "audit.export", data)
	archivePath := filepath.Join(t.TempDir(), "audit.db")
	mustRun(t, "ingest", "--archive", archivePath, exportPath)

	// Since is inclusive, until exclusive: only the 10:01 event falls
	// inside this window.
	out := mustRun(t, "query", "--archive", archivePath,
		"--since", "2026-06-03T10:01:00Z",
		"--until", "2026-06-03T10:02:00Z",
		"--json")
	var events []journal.Event
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Sequence != 2 {
		t.Errorf("window query = %+v, want only event 2", events)
	}
}

func TestIngestRefusesTamperedExport(t *testing.T) {
	data, _, _ := buildExport(t, journal.CompressionNone)
	tampered := bytes.Replace(data, []byte("tamper-target"), []byte("tamper-forged"), 1)
	if bytes.Equal(data, tampered) {
		t.Fatal("tamper marker not found in export payload")
	}
	exportPath := writeTestFile(t, "tampered.export", tampered)
	archivePath := filepath.Join(t.TempDir(), "audit.db")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"ingest", "--archive", archivePath, exportPath}, &stdout, &stderr); code != 1 {
		t.Fatalf("ingest of tampered export = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "error:") {
		t.Errorf("stderr: %s", stderr.String())
	}

	// Nothing may have been written.
	var stats auditdb.Stats
	out := mustRun(t, "stats", "--archive", archivePath, "--json")
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Events != 0 {
		t.Errorf("archive holds %d events after a refused ingest", stats.Events)
	}
}

func TestIngestSealedExport(t *testing.T) {
	identity, recipient, err := sealed.GenerateIdentity()
	if err != nil {
		t.Fatal(err)
	}
	data, _, _ := buildExport(t, journal.CompressionZstd)

	var sealedBuf bytes.Buffer
	sealer, err := sealed.Seal(&sealedBuf, []string{recipient})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sealer.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := sealer.Close(); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	exportPath := filepath.Join(dir, "audit.export.age")
	if err := os.WriteFile(exportPath, sealedBuf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	identityPath := filepath.Join(dir, "identity.txt")
	if err := sealed.WriteIdentityFile(identityPath, identity, recipient); err != nil {
		t.Fatal(err)
	}
	archivePath := filepath.Join(dir, "audit.db")

	out := mustRun(t, "ingest", "--archive", archivePath, "--identity", identityPath, exportPath)
	if !strings.Contains(out, "3 newly archived") {
		t.Errorf("sealed ingest output: %s", out)
	}

	// Without the identity the sealed stream is refused up front.
	var stdout, stderr bytes.Buffer
	otherArchive := filepath.Join(dir, "other.db")
	if code := run([]string{"ingest", "--archive", otherArchive, exportPath}, &stdout, &stderr); code != 1 {
		t.Fatalf("sealed ingest without identity = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "sealed") {
		t.Errorf("stderr does not explain the seal: %s", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "audit.db")
	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"unknown subcommand", []string{"prune"}},
		{"ingest without archive", []string{"ingest", "some.export"}},
		{"ingest without exports", []string{"ingest", "--archive", archivePath}},
		{"query without archive", []string{"query"}},
		{"query with bad level", []string{"query", "--archive", archivePath, "--min-level", "supreme"}},
		{"query with bad since", []string{"query", "--archive", archivePath, "--since", "yesterday"}},
		{"stats without archive", []string{"stats"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != 1 {
				t.Errorf("run(%v) = %d, want 1", tt.args, code)
			}
		})
	}
}
