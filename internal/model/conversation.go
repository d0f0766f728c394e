// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/mveldt/parley/internal/purpose"
)

// AbortFunc cancels an in-flight generation request. Invoking it signals the
// streaming collaborator to stop producing further chunks; it does not wait
// for acknowledgment.
type AbortFunc func()

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a complete chat thread with history and metadata.
type Conversation struct {
	// Identity
	ID string `json:"id"`

	// Messages, in conversation order.
	Messages []*Message `json:"messages"`

	// SystemPurposeID references a persona profile (see package purpose).
	SystemPurposeID string `json:"systemPurposeId"`

	// Titles. UserTitle is set explicitly by the user; AutoTitle is derived.
	UserTitle string `json:"userTitle,omitempty"`
	AutoTitle string `json:"autoTitle,omitempty"`

	// TokenCount caches f(messages, chat model). Recomputed on every
	// mutation that changes message content or the message set.
	TokenCount int `json:"tokenCount"`

	// Timestamps
	Created time.Time  `json:"created"`
	Updated *time.Time `json:"updated"`

	// Transient runtime state, never persisted.
	Abort      AbortFunc    `json:"-"`
	Ephemerals []*Ephemeral `json:"-"`
}

// NewConversation creates a blank conversation with a generated ID. When
// purposeID is empty the default purpose is used.
func NewConversation(purposeID string) *Conversation {
	if purposeID == "" {
		purposeID = purpose.DefaultID
	}
	now := time.Now()
	return &Conversation{
		ID:              uuid.New().String(),
		Messages:        make([]*Message, 0),
		SystemPurposeID: purposeID,
		TokenCount:      0,
		Created:         now,
		Updated:         &now,
	}
}

// =============================================================================
// CONVERSATION METHODS
// =============================================================================

// MessageByID returns the message with the given ID, or nil.
func (c *Conversation) MessageByID(id string) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Title returns the display title: the user title when set, then the auto
// title, then a default.
func (c *Conversation) Title() string {
	if c.UserTitle != "" {
		return c.UserTitle
	}
	if c.AutoTitle != "" {
		return c.AutoTitle
	}
	return "New Conversation"
}

// Preview returns a short preview of the conversation from its first user
// message.
func (c *Conversation) Preview(maxLen int) string {
	for _, msg := range c.Messages {
		if msg.Role == RoleUser && msg.Text != "" {
			return msg.Preview(maxLen)
		}
	}
	return "Empty conversation"
}

// Touch stamps the updated timestamp.
func (c *Conversation) Touch() {
	now := time.Now()
	c.Updated = &now
}

// CancelGeneration invokes and clears the abort handle, if any. Idempotent.
func (c *Conversation) CancelGeneration() {
	if c.Abort != nil {
		c.Abort()
		c.Abort = nil
	}
}

// Clone creates a deep copy of the conversation. The abort handle is not
// carried over; ephemerals are copied.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:              c.ID,
		SystemPurposeID: c.SystemPurposeID,
		UserTitle:       c.UserTitle,
		AutoTitle:       c.AutoTitle,
		TokenCount:      c.TokenCount,
		Created:         c.Created,
		Messages:        make([]*Message, len(c.Messages)),
	}
	if c.Updated != nil {
		updated := *c.Updated
		clone.Updated = &updated
	}
	for i, msg := range c.Messages {
		clone.Messages[i] = msg.Clone()
	}
	if len(c.Ephemerals) > 0 {
		clone.Ephemerals = make([]*Ephemeral, len(c.Ephemerals))
		for i, eph := range c.Ephemerals {
			clone.Ephemerals[i] = eph.Clone()
		}
	}
	return clone
}
