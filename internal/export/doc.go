// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export provides conversation export functionality for parley.
//
// This package supports exporting conversations to portable formats with
// metadata, and re-importing conversations from JSON exports.
//
// # Key Types
//
//   - Exporter: Main export interface
//   - MarkdownExporter: Human-readable export with formatting
//   - JSONExporter: Machine-readable export in the snapshot shape
//   - Options: Export configuration options
//
// # Usage
//
// Export a conversation:
//
//	path, err := export.ExportMarkdown(conv, nil)
//
// Re-import a JSON export:
//
//	conv, err := export.ImportJSON(data)
package export
