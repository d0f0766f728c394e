// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the authoritative in-memory conversation state.
//
// The Store owns the ordered conversation list and the active-conversation
// pointer, and funnels every per-conversation mutation through a single
// internal edit primitive so the token-count invariant holds after every
// operation.
//
// # Concurrency
//
// All operations are synchronous and atomic with respect to each other; a
// mutex serializes them. Streaming token arrival is modeled as a sequence of
// AppendMessage/EditMessage calls driven by an external collaborator; each
// call is one discrete state transition, the Store itself never awaits
// anything. The abort handle attached via StartTyping is the sole
// cancellation primitive and is fire-and-forget.
//
// # Observation
//
// Readers take Snapshot copies; Subscribe registers a callback fired after
// every completed mutation (outside the lock). The persistence layer uses
// this to schedule saves.
package store
