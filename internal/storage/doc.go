// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversation state to durable key-value storage.
//
// The persistence boundary is structural: persisted conversations and
// messages are separate Stored* types that simply have no room for the
// transient runtime fields (abort handle, ephemerals), so those can never
// leak into a snapshot.
//
// # Key Types
//
//   - KV: the durable get/set/delete boundary over string keys and values
//   - FileKV, SQLiteKV: the two shipped backends
//   - Adapter: load/save with schema versioning and migration
//   - Saver: dirty-flag autosave loop driven by store notifications
//
// # Snapshot Format
//
// The persisted value is a JSON envelope:
//
//	{"state": {"conversations": [...], "activeConversationId": "..."}, "version": 3}
//
// On load the Adapter detects the stored version and runs migration steps up
// to the current version. Pre-versioned legacy snapshots are backed up
// verbatim under "<key>-v2" before the original key is deleted; a legacy
// snapshot that fails to parse degrades to an empty state instead of failing
// app start.
package storage
