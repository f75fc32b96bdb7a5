// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/warden/lib/fault"
	"github.com/bureau-foundation/warden/lib/journal"
	"github.com/bureau-foundation/warden/lib/sealed"
	"github.com/bureau-foundation/warden/lib/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("warden-verify", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { printUsage(stderr) }

	var (
		identityPath string
		jsonOutput   bool
		quiet        bool
		showVersion  bool
	)
	flags.StringVar(&identityPath, "identity", "", "age identity file for sealed exports")
	flags.BoolVar(&jsonOutput, "json", false, "print the verification report as JSON")
	flags.BoolVarP(&quiet, "quiet", "q", false, "no output; the exit code is the verdict")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if showVersion {
		fmt.Fprintf(stdout, "warden-verify %s\n", version.Info())
		return 0
	}

	rest := flags.Args()
	if len(rest) != 1 {
		fmt.Fprintf(stderr, "error: exactly one export path required (use - for stdin)\n")
		printUsage(stderr)
		return 2
	}

	input, closeInput, err := openInput(rest[0])
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	defer closeInput()

	verdict, err := verifyStream(input, identityPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	if !quiet {
		if jsonOutput {
			encoded, err := json.MarshalIndent(verdict, "", "  ")
			if err != nil {
				fmt.Fprintf(stderr, "error: encoding report: %v\n", err)
				return 2
			}
			fmt.Fprintf(stdout, "%s\n", encoded)
		} else {
			printVerdict(stdout, verdict)
		}
	}

	if verdict.ok() {
		return 0
	}
	return 1
}

// verdict is the full result of one verification, shaped for both the
// human and the JSON renderings.
type verdict struct {
	Sealed   bool                    `json:"sealed"`
	Manifest journal.Manifest        `json:"manifest"`
	Chain    journal.IntegrityReport `json:"chain"`

	// TipMatches reports whether the envelope's recorded tip equals
	// the recomputed chain tip. An intact chain with a tip mismatch
	// means the envelope was reframed around substituted history.
	TipMatches bool `json:"tip_matches"`
}

func (v verdict) ok() bool {
	return v.Chain.Intact && v.TipMatches
}

// verifyStream sniffs, optionally unseals, decodes, and walks the
// chain. Errors are reserved for streams the tool cannot examine at
// all; anything it can examine and find wanting comes back as a
// failing verdict instead.
func verifyStream(r io.Reader, identityPath string) (verdict, error) {
	buffered := bufio.NewReader(r)

	// Peek errors surface on the subsequent read; a stream shorter
	// than the sealed intro cannot be sealed.
	prefix, _ := buffered.Peek(len(sealed.Intro))
	var source io.Reader = buffered
	isSealed := sealed.IsSealed(prefix)
	if isSealed {
		if identityPath == "" {
			return verdict{}, errors.New("export is sealed: --identity required to unseal it")
		}
		identities, err := sealed.ReadIdentityFile(identityPath)
		if err != nil {
			return verdict{}, err
		}
		unsealed, err := sealed.Unseal(buffered, identities)
		if err != nil {
			return verdict{}, err
		}
		source = unsealed
	}

	events, manifest, err := journal.Decode(source)
	if err != nil {
		// Decode reports a count disagreement as an integrity fault
		// while still handing back what it read; that is a finding,
		// not a tool failure.
		if code, found := fault.CodeOf(err); found && code == fault.IntegrityViolation {
			return verdict{
				Sealed:   isSealed,
				Manifest: manifest,
				Chain: journal.IntegrityReport{
					Events: len(events),
					Reason: err.Error(),
				},
			}, nil
		}
		return verdict{}, err
	}

	chain := journal.VerifyChain(events)
	return verdict{
		Sealed:     isSealed,
		Manifest:   manifest,
		Chain:      chain,
		TipMatches: chain.Intact && chain.Tip == manifest.Tip,
	}, nil
}

func printVerdict(w io.Writer, v verdict) {
	form := "plain"
	if v.Sealed {
		form = "sealed"
	}
	fmt.Fprintf(w, "Export:       %s, created %s\n", form, v.Manifest.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Compression:  %s\n", v.Manifest.Compression)
	fmt.Fprintf(w, "Events:       %d\n", v.Chain.Events)

	if !v.Chain.Intact {
		if v.Chain.BrokenAt > 0 {
			fmt.Fprintf(w, "Chain:        BROKEN at event %d: %s\n", v.Chain.BrokenAt, v.Chain.Reason)
		} else {
			fmt.Fprintf(w, "Chain:        BROKEN: %s\n", v.Chain.Reason)
		}
		return
	}

	fmt.Fprintf(w, "Chain:        intact\n")
	if v.TipMatches {
		fmt.Fprintf(w, "Tip:          %s (matches envelope)\n", v.Chain.Tip.Short())
	} else {
		fmt.Fprintf(w, "Tip:          %s, but envelope records %s\n", v.Chain.Tip.Short(), v.Manifest.Tip.Short())
	}
}

// openInput opens the export path, with "-" meaning stdin.
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

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "\nusage: warden-verify [flags] EXPORT\n")
	fmt.Fprintf(w, "\nEXPORT is a journal export file, or - for stdin. Sealed exports\n")
	fmt.Fprintf(w, "(age encryption) are detected automatically and need --identity.\n")
	fmt.Fprintf(w, "\nflags:\n")
	fmt.Fprintf(w, "  --identity FILE   age identity file for sealed exports\n")
	fmt.Fprintf(w, "  --json            print the verification report as JSON\n")
	fmt.Fprintf(w, "  -q, --quiet       no output; the exit code is the verdict\n")
	fmt.Fprintf(w, "  --version         print version and exit\n")
	fmt.Fprintf(w, "\nexit codes:\n")
	fmt.Fprintf(w, "  0  chain verified end to end\n")
	fmt.Fprintf(w, "  1  verification failed\n")
	fmt.Fprintf(w, "  2  error\n")
}
