// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for a warden
// kernel.
//
// Configuration is loaded from a single file specified by either the
// WARDEN_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. An authorization kernel's
// configuration must be deterministic and auditable, with no hidden
// overrides.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter: the
// sandbox autonomy ceiling drops to "suggest" unless the file says
// otherwise.
//
// Durations are authored as Go duration strings ("5m"), byte sizes in
// humanize form ("4 GiB"), and autonomy levels by name
// ("coordinate"). Variable expansion is performed on path fields
// after loading: ${HOME}, ${WARDEN_ROOT}, and ${VAR:-default}
// patterns are expanded. No other environment variables override
// config values.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Policy, Resources, Scheduler
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- parses every string-encoded field up front
package config
