// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the script
// gateway host.
//
// Configuration is loaded from a single file specified by either the
// SCRIPTGATE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no automatic file search.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter:
// scripts get a run timeout and the notification queue is shorter.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${SCRIPTGATE_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// This package depends on no other scriptgate packages.
package config
