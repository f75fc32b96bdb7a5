// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
)

// Intro is the first line of every sealed stream, written by age
// itself. Tools sniff it to distinguish sealed exports from plain
// ones.
const Intro = "age-encryption.org/v1"

// GenerateIdentity creates a fresh x25519 identity. The identity
// string (AGE-SECRET-KEY-1...) must be kept private; the recipient
// string (age1...) is safe to publish and is what exports are sealed
// to.
func GenerateIdentity() (identity, recipient string, err error) {
	generated, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("sealed: generating identity: %w", err)
	}
	return generated.String(), generated.Recipient().String(), nil
}

// ValidateRecipient checks that key parses as an age x25519 recipient.
func ValidateRecipient(key string) error {
	if _, err := age.ParseX25519Recipient(key); err != nil {
		return fmt.Errorf("sealed: invalid recipient %q: %w", key, err)
	}
	return nil
}

// Seal returns a writer that encrypts everything written to it to the
// given recipients, emitting the sealed stream on w. The caller must
// Close the returned writer to finalize the stream; forgetting to
// truncates the ciphertext.
func Seal(w io.Writer, recipientKeys []string) (io.WriteCloser, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("sealed: at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("sealed: parsing recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	writer, err := age.Encrypt(w, recipients...)
	if err != nil {
		return nil, fmt.Errorf("sealed: starting encryption: %w", err)
	}
	return writer, nil
}

// Unseal opens a sealed stream. Any one of the given identities may
// match; sealing to multiple recipients means any holder can unseal.
func Unseal(r io.Reader, identityKeys []string) (io.Reader, error) {
	if len(identityKeys) == 0 {
		return nil, fmt.Errorf("sealed: at least one identity is required")
	}
	identities := make([]age.Identity, 0, len(identityKeys))
	for _, key := range identityKeys {
		identity, err := age.ParseX25519Identity(key)
		if err != nil {
			return nil, fmt.Errorf("sealed: parsing identity: %w", err)
		}
		identities = append(identities, identity)
	}
	reader, err := age.Decrypt(r, identities...)
	if err != nil {
		return nil, fmt.Errorf("sealed: opening sealed stream: %w", err)
	}
	return reader, nil
}

// ReadIdentityFile loads identities from a file: one per line, blank
// lines and #-comments skipped. Every non-comment line must parse as
// an x25519 identity.
func ReadIdentityFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading identity file: %w", err)
	}
	var keys []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if _, err := age.ParseX25519Identity(text); err != nil {
			return nil, fmt.Errorf("sealed: %s line %d: %w", path, line, err)
		}
		keys = append(keys, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sealed: reading identity file: %w", err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("sealed: %s contains no identities", path)
	}
	return keys, nil
}

// WriteIdentityFile writes an identity to path with owner-only
// permissions, in the format ReadIdentityFile accepts.
func WriteIdentityFile(path, identity string, recipient string) error {
	content := fmt.Sprintf("# public key: %s\n%s\n", recipient, identity)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("sealed: writing identity file: %w", err)
	}
	return nil
}

// IsSealed reports whether data begins a sealed stream. It needs at
// least len(Intro) bytes to say yes; shorter prefixes report false.
func IsSealed(prefix []byte) bool {
	return len(prefix) >= len(Intro) && string(prefix[:len(Intro)]) == Intro
}
