// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/warden/lib/auditdb"
	"github.com/bureau-foundation/warden/lib/journal"
	"github.com/bureau-foundation/warden/lib/ref"
	"github.com/bureau-foundation/warden/lib/sealed"
	"github.com/bureau-foundation/warden/lib/token"
	"github.com/bureau-foundation/warden/lib/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "ingest":
		err = runIngest(ctx, args[1:], stdout, stderr)
	case "query":
		err = runQuery(ctx, args[1:], stdout, stderr)
	case "stats":
		err = runStats(ctx, args[1:], stdout, stderr)
	case "verify":
		err = runVerify(ctx, args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "warden-audit %s\n", version.Info())
		return 0
	case "-h", "--help", "help":
		printUsage(stderr)
		return 0
	default:
		printUsage(stderr)
		err = fmt.Errorf("unknown subcommand: %q", args[0])
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: warden-audit <subcommand> [flags]

Subcommands:
  ingest    Verify journal exports and archive their new events
  query     List archived events matching filters
  stats     Print archive statistics
  verify    Re-verify the archived hash chain end to end
  version   Print version information

Run 'warden-audit <subcommand> --help' for subcommand flags.
`)
}

// runIngest archives one or more exports. Each export is verified from
// genesis before anything is written; sealed exports are unsealed with
// the --identity file.
func runIngest(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("ingest", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	archivePath := flags.String("archive", "", "path to the archive database (required)")
	identityPath := flags.String("identity", "", "age identity file for sealed exports")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	exports := flags.Args()
	if *archivePath == "" {
		return errors.New("--archive is required")
	}
	if len(exports) == 0 {
		return errors.New("at least one export path is required (use - for stdin)")
	}

	archive, err := auditdb.Open(auditdb.Config{Path: *archivePath})
	if err != nil {
		return err
	}
	defer archive.Close()

	for _, path := range exports {
		if err := ingestOne(ctx, archive, path, *identityPath, stdout); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func ingestOne(ctx context.Context, archive *auditdb.Archive, path, identityPath string, stdout io.Writer) error {
	input, closeInput, err := openInput(path)
	if err != nil {
		return err
	}
	defer closeInput()

	source, err := maybeUnseal(input, identityPath)
	if err != nil {
		return err
	}
	archived, manifest, err := archive.IngestExport(ctx, source)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: chain of %d events, %d newly archived (tip %s)\n",
		path, manifest.Count, archived, manifest.Tip.Short())
	return nil
}

// runQuery lists archived events. Filters compose; an unfiltered query
// returns the first DefaultQueryLimit events of the chain.
func runQuery(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("query", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		archivePath  = flags.String("archive", "", "path to the archive database (required)")
		graphID      = flags.String("graph", "", "restrict to one graph")
		nodeID       = flags.String("node", "", "restrict to one node")
		actionPrefix = flags.String("action", "", "action descriptor prefix, e.g. token/ or schedule/")
		result       = flags.String("result", "", "exact result match: ok, denied, a fault slug")
		minLevel     = flags.String("min-level", "", "drop events below this autonomy level")
		since        = flags.String("since", "", "events at or after this RFC 3339 time")
		until        = flags.String("until", "", "events before this RFC 3339 time")
		limit        = flags.Int("limit", auditdb.DefaultQueryLimit, "maximum events to return")
		jsonOutput   = flags.Bool("json", false, "print matching events as JSON")
	)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *archivePath == "" {
		return errors.New("--archive is required")
	}

	filter, err := buildFilter(*graphID, *nodeID, *actionPrefix, *result, *minLevel, *since, *until, *limit)
	if err != nil {
		return err
	}

	archive, err := auditdb.Open(auditdb.Config{Path: *archivePath})
	if err != nil {
		return err
	}
	defer archive.Close()

	events, err := archive.Query(ctx, filter)
	if err != nil {
		return err
	}

	if *jsonOutput {
		encoded, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding events: %w", err)
		}
		fmt.Fprintf(stdout, "%s\n", encoded)
		return nil
	}
	for _, e := range events {
		printEvent(stdout, e)
	}
	fmt.Fprintf(stdout, "%d event(s)\n", len(events))
	return nil
}

// buildFilter parses the query subcommand's flag values into an
// archive filter.
func buildFilter(graphID, nodeID, actionPrefix, result, minLevel, since, until string, limit int) (auditdb.Filter, error) {
	var filter auditdb.Filter
	filter.ActionPrefix = actionPrefix
	filter.Result = result
	filter.Limit = limit

	if graphID != "" {
		parsed, err := ref.ParseGraphID(graphID)
		if err != nil {
			return filter, err
		}
		filter.Graph = parsed
	}
	if nodeID != "" {
		parsed, err := ref.ParseNodeID(nodeID)
		if err != nil {
			return filter, err
		}
		filter.Node = parsed
	}
	if minLevel != "" {
		level, err := token.ParseLevel(minLevel)
		if err != nil {
			return filter, err
		}
		filter.MinLevel = uint8(level)
	}
	if since != "" {
		parsed, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return filter, fmt.Errorf("parsing --since: %w", err)
		}
		filter.Since = parsed
	}
	if until != "" {
		parsed, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return filter, fmt.Errorf("parsing --until: %w", err)
		}
		filter.Until = parsed
	}
	return filter, nil
}

// printEvent renders one archived event on one line: sequence, time,
// action, result, subject, then attrs in sorted key order.
func printEvent(w io.Writer, e journal.Event) {
	timestamp := time.Unix(0, e.Timestamp).UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%6d  %s  %-20s %-12s", e.Sequence, timestamp, e.Action, e.Result)
	if !e.Node.IsZero() {
		line += "  " + e.Node.String()
	} else if !e.Graph.IsZero() {
		line += "  " + e.Graph.String()
	}
	if len(e.Attrs) > 0 {
		keys := make([]string, 0, len(e.Attrs))
		for key := range e.Attrs {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, key := range keys {
			pairs = append(pairs, key+"="+e.Attrs[key])
		}
		line += "  [" + strings.Join(pairs, " ") + "]"
	}
	fmt.Fprintln(w, line)
}

// runStats prints archive statistics.
func runStats(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	archivePath := flags.String("archive", "", "path to the archive database (required)")
	jsonOutput := flags.Bool("json", false, "print statistics as JSON")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *archivePath == "" {
		return errors.New("--archive is required")
	}

	archive, err := auditdb.Open(auditdb.Config{Path: *archivePath})
	if err != nil {
		return err
	}
	defer archive.Close()

	stats, err := archive.Stats(ctx)
	if err != nil {
		return err
	}

	if *jsonOutput {
		encoded, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding stats: %w", err)
		}
		fmt.Fprintf(stdout, "%s\n", encoded)
		return nil
	}

	fmt.Fprintf(stdout, "Events:    %d\n", stats.Events)
	if stats.Events > 0 {
		fmt.Fprintf(stdout, "Oldest:    %s\n", stats.Oldest.Format(time.RFC3339))
		fmt.Fprintf(stdout, "Newest:    %s\n", stats.Newest.Format(time.RFC3339))
		fmt.Fprintf(stdout, "Tip:       %s\n", stats.Tip.Short())
	}
	fmt.Fprintf(stdout, "Database:  %s (%s)\n",
		humanize.IBytes(uint64(stats.DatabaseSizeBytes)), archive.Path())
	return nil
}

// runVerify re-walks the archived chain. A broken archive is an error:
// the mirror no longer matches the history it was built from and
// should be rebuilt from exports.
func runVerify(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	archivePath := flags.String("archive", "", "path to the archive database (required)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *archivePath == "" {
		return errors.New("--archive is required")
	}

	archive, err := auditdb.Open(auditdb.Config{Path: *archivePath})
	if err != nil {
		return err
	}
	defer archive.Close()

	report, err := archive.Verify(ctx)
	if err != nil {
		return err
	}
	if !report.Intact {
		return report.Err()
	}
	fmt.Fprintf(stdout, "archive intact: %d events, tip %s\n", report.Events, report.Tip.Short())
	return nil
}

// openInput opens an export path, with "-" meaning stdin.
func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening export: %w", err)
	}
	return file, func() { file.Close() }, nil
}

// maybeUnseal sniffs for a sealed stream and unseals it when the
// identity file is provided.
func maybeUnseal(r io.Reader, identityPath string) (io.Reader, error) {
	buffered := bufio.NewReader(r)
	prefix, _ := buffered.Peek(len(sealed.Intro))
	if !sealed.IsSealed(prefix) {
		return buffered, nil
	}
	if identityPath == "" {
		return nil, errors.New("export is sealed: --identity required to unseal it")
	}
	identities, err := sealed.ReadIdentityFile(identityPath)
	if err != nil {
		return nil, err
	}
	return sealed.Unseal(buffered, identities)
}
