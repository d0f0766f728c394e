// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small utility functions shared across parley.
//
// # Key Functions
//
//   - AtomicWriteFile: Crash-safe file writes via temp file and rename
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - FirstLine: First line of a string, trimmed
package util
