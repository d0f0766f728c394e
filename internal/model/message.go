// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/mveldt/parley/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns the default sender label for the role.
func (r Role) DisplayName() string {
	if r == RoleUser {
		return "You"
	}
	return "Bot"
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in a conversation.
type Message struct {
	// Identity
	ID   string `json:"id"`
	Role Role   `json:"role"`

	// Content
	Text string `json:"text"`

	// Sender is the display name. It is derived from the role at creation
	// but can be overridden independently.
	Sender string `json:"sender"`

	// Typing is true while text is still streaming in. A persisted message
	// can never legitimately be typing; rehydration forces it to false.
	Typing bool `json:"typing"`

	// TokenCount caches the token count for the current chat model.
	// Zero means "not yet calculated".
	TokenCount int `json:"tokenCount"`

	// IgnoreInTokenCount excludes this message from token accounting,
	// e.g. for generated-image placeholder messages.
	IgnoreInTokenCount bool `json:"ignoreMessageInTokenCount,omitempty"`

	// Timestamps
	Created time.Time  `json:"created"`
	Updated *time.Time `json:"updated"`
}

// NewMessage creates a new message with a generated ID. The sender label is
// derived from the role.
func NewMessage(role Role, text string) *Message {
	return &Message{
		ID:      uuid.New().String(),
		Role:    role,
		Text:    text,
		Sender:  role.DisplayName(),
		Typing:  false,
		Created: time.Now(),
		Updated: nil,
	}
}

// Clone returns a copy of the message.
func (m *Message) Clone() *Message {
	clone := *m
	if m.Updated != nil {
		updated := *m.Updated
		clone.Updated = &updated
	}
	return &clone
}

// Touch stamps the updated timestamp.
func (m *Message) Touch() {
	now := time.Now()
	m.Updated = &now
}

// Preview returns a truncated single-line preview of the message text.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(util.FirstLine(m.Text), maxLen)
}

// IsEmpty returns true if the message has no text.
func (m *Message) IsEmpty() bool {
	return len(m.Text) == 0
}
