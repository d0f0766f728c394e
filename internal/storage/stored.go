// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversation state to durable key-value storage.
package storage

import (
	"time"

	"github.com/mveldt/parley/internal/model"
)

// =============================================================================
// STORED TYPES
// =============================================================================

// StoredConversation is the persisted form of a conversation. It carries
// only durable fields; the abort handle and ephemeral list have no stored
// counterpart by construction.
type StoredConversation struct {
	ID              string          `json:"id"`
	Messages        []StoredMessage `json:"messages"`
	SystemPurposeID string          `json:"systemPurposeId"`
	UserTitle       string          `json:"userTitle,omitempty"`
	AutoTitle       string          `json:"autoTitle,omitempty"`
	TokenCount      int             `json:"tokenCount"`
	Created         int64           `json:"created"`
	Updated         *int64          `json:"updated"`
}

// StoredMessage is the persisted form of a message.
type StoredMessage struct {
	ID                 string `json:"id"`
	Text               string `json:"text"`
	Sender             string `json:"sender"`
	Typing             bool   `json:"typing"`
	Role               string `json:"role"`
	TokenCount         int    `json:"tokenCount"`
	IgnoreInTokenCount bool   `json:"ignoreMessageInTokenCount,omitempty"`
	Created            int64  `json:"created"`
	Updated            *int64 `json:"updated"`
}

// storedState is the persisted store shape inside the snapshot envelope.
type storedState struct {
	Conversations        []StoredConversation `json:"conversations"`
	ActiveConversationID string               `json:"activeConversationId"`
}

// storedEnvelope is the full persisted value: state plus schema version.
type storedEnvelope struct {
	State   storedState `json:"state"`
	Version int         `json:"version"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// Timestamps persist as milliseconds since the epoch.

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func toMillisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func fromMillisPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms)
	return &t
}

// ToStored converts an in-memory conversation to its persisted form,
// dropping transient runtime state.
func ToStored(c *model.Conversation) StoredConversation {
	stored := StoredConversation{
		ID:              c.ID,
		Messages:        make([]StoredMessage, len(c.Messages)),
		SystemPurposeID: c.SystemPurposeID,
		UserTitle:       c.UserTitle,
		AutoTitle:       c.AutoTitle,
		TokenCount:      c.TokenCount,
		Created:         toMillis(c.Created),
		Updated:         toMillisPtr(c.Updated),
	}
	for i, m := range c.Messages {
		stored.Messages[i] = StoredMessage{
			ID:                 m.ID,
			Text:               m.Text,
			Sender:             m.Sender,
			Typing:             m.Typing,
			Role:               string(m.Role),
			TokenCount:         m.TokenCount,
			IgnoreInTokenCount: m.IgnoreInTokenCount,
			Created:            toMillis(m.Created),
			Updated:            toMillisPtr(m.Updated),
		}
	}
	return stored
}

// FromStored converts a persisted conversation back to the in-memory form.
// Transient fields start fresh.
func FromStored(sc StoredConversation) *model.Conversation {
	conv := &model.Conversation{
		ID:              sc.ID,
		Messages:        make([]*model.Message, len(sc.Messages)),
		SystemPurposeID: sc.SystemPurposeID,
		UserTitle:       sc.UserTitle,
		AutoTitle:       sc.AutoTitle,
		TokenCount:      sc.TokenCount,
		Created:         fromMillis(sc.Created),
		Updated:         fromMillisPtr(sc.Updated),
	}
	for i, m := range sc.Messages {
		conv.Messages[i] = &model.Message{
			ID:                 m.ID,
			Text:               m.Text,
			Sender:             m.Sender,
			Typing:             m.Typing,
			Role:               model.Role(m.Role),
			TokenCount:         m.TokenCount,
			IgnoreInTokenCount: m.IgnoreInTokenCount,
			Created:            fromMillis(m.Created),
			Updated:            fromMillisPtr(m.Updated),
		}
	}
	return conv
}
