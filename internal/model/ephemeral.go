// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import "github.com/google/uuid"

// =============================================================================
// EPHEMERAL TYPE
// =============================================================================

// Ephemeral is a transient side-channel status note (e.g. "tool running")
// scoped to one conversation's current turn. Ephemerals are never persisted
// and are cleared on any full message-set replacement.
type Ephemeral struct {
	ID    string
	Title string
	Text  string

	// State is an opaque blob owned by whatever produced the note.
	State map[string]any
}

// NewEphemeral creates a new ephemeral note with a generated ID and an empty
// state blob.
func NewEphemeral(title, initialText string) *Ephemeral {
	return &Ephemeral{
		ID:    uuid.New().String(),
		Title: title,
		Text:  initialText,
		State: map[string]any{},
	}
}

// Clone returns a copy of the ephemeral with a shallow copy of the state blob.
func (e *Ephemeral) Clone() *Ephemeral {
	clone := *e
	if e.State != nil {
		clone.State = make(map[string]any, len(e.State))
		for k, v := range e.State {
			clone.State[k] = v
		}
	}
	return &clone
}
