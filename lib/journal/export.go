// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bureau-foundation/warden/lib/codec"
	"github.com/bureau-foundation/warden/lib/digest"
	"github.com/bureau-foundation/warden/lib/fault"
)

// ExportVersion is the current export envelope format version.
// Decode rejects envelopes with a different version.
const ExportVersion = 1

// exportEnvelope is the on-disk form of an export: one self-
// describing CBOR item. The event chain is encoded as a CBOR array,
// compressed whole, and carried in Payload.
type exportEnvelope struct {
	Version          int            `cbor:"1,keyasint"`
	CreatedAt        int64          `cbor:"2,keyasint"`
	Count            int            `cbor:"3,keyasint"`
	Compression      CompressionTag `cbor:"4,keyasint"`
	UncompressedSize uint64         `cbor:"5,keyasint"`
	Tip              digest.Digest  `cbor:"6,keyasint"`
	Payload          []byte         `cbor:"7,keyasint"`
}

// Manifest describes a decoded export.
type Manifest struct {
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	Count       int            `json:"count"`
	Compression CompressionTag `json:"compression"`
	Tip         digest.Digest  `json:"tip"`
}

// ExportOptions configures Export.
type ExportOptions struct {
	// Compression selects the payload algorithm. If the payload
	// turns out incompressible, Export silently falls back to
	// storing it uncompressed; the envelope records what was done.
	Compression CompressionTag
}

// Export writes the journal's serialized representation: the full
// chain as one compressed CBOR envelope. The journal itself is
// unchanged; exports taken at different times share their common
// prefix.
func (j *Journal) Export(w io.Writer, opts ExportOptions) error {
	j.mu.RLock()
	events := make([]Event, len(j.events))
	copy(events, j.events)
	tip := j.tip
	now := j.clock.Now()
	j.mu.RUnlock()

	body, err := codec.Marshal(events)
	if err != nil {
		return fmt.Errorf("journal: encoding export events: %w", err)
	}

	tag := opts.Compression
	payload, err := compress(body, tag)
	if errors.Is(err, errIncompressible) {
		tag = CompressionNone
		payload = body
	} else if err != nil {
		return fmt.Errorf("journal: compressing export: %w", err)
	}

	envelope := exportEnvelope{
		Version:          ExportVersion,
		CreatedAt:        now.Unix(),
		Count:            len(events),
		Compression:      tag,
		UncompressedSize: uint64(len(body)),
		Tip:              tip,
		Payload:          payload,
	}
	if err := codec.NewEncoder(w).Encode(envelope); err != nil {
		return fmt.Errorf("journal: writing export envelope: %w", err)
	}
	return nil
}

// Decode reads an export stream back into events without verifying
// the chain. Tools that want to locate and display tampering use
// Decode followed by VerifyChain; everything else should use Import.
func Decode(r io.Reader) ([]Event, Manifest, error) {
	var envelope exportEnvelope
	if err := codec.NewDecoder(r).Decode(&envelope); err != nil {
		return nil, Manifest{}, fmt.Errorf("journal: reading export envelope: %w", err)
	}
	if envelope.Version != ExportVersion {
		return nil, Manifest{}, fmt.Errorf("journal: unsupported export version %d (supported: %d)", envelope.Version, ExportVersion)
	}

	body, err := decompress(envelope.Payload, envelope.Compression, int(envelope.UncompressedSize))
	if err != nil {
		return nil, Manifest{}, fmt.Errorf("journal: decompressing export: %w", err)
	}

	var events []Event
	if err := codec.Unmarshal(body, &events); err != nil {
		return nil, Manifest{}, fmt.Errorf("journal: decoding export events: %w", err)
	}

	manifest := Manifest{
		Version:     envelope.Version,
		CreatedAt:   time.Unix(envelope.CreatedAt, 0).UTC(),
		Count:       envelope.Count,
		Compression: envelope.Compression,
		Tip:         envelope.Tip,
	}
	if len(events) != envelope.Count {
		return events, manifest, fault.New(fault.IntegrityViolation, "export carries %d events, envelope says %d", len(events), envelope.Count)
	}
	return events, manifest, nil
}

// Import reads an export stream and verifies the chain end-to-end,
// including that the envelope's recorded tip matches the recomputed
// one. A broken stream is refused with an IntegrityViolation fault;
// the caller gets no events to mistake for trustworthy ones.
func Import(r io.Reader) ([]Event, Manifest, error) {
	events, manifest, err := Decode(r)
	if err != nil {
		return nil, manifest, err
	}

	report := VerifyChain(events)
	if err := report.Err(); err != nil {
		return nil, manifest, err
	}
	if report.Tip != manifest.Tip {
		return nil, manifest, fault.New(fault.IntegrityViolation, "export tip %s does not match chain tip %s", manifest.Tip.Short(), report.Tip.Short())
	}
	return events, manifest, nil
}
