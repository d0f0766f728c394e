// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the application
// for representing chat conversations, messages, and ephemeral status notes.
//
// # Key Types
//
//   - Conversation: Container for a chat thread with messages and metadata
//   - Message: Single turn with role, text, timestamps, and a token-count cache
//   - Ephemeral: Transient side-channel status note shown during a turn
//   - Role: Message role enumeration (user, assistant, system)
//
// # Usage
//
// Create a new conversation and append a message:
//
//	conv := model.NewConversation("")
//	msg := model.NewMessage(model.RoleUser, "Hello!")
//	conv.Messages = append(conv.Messages, msg)
//
// Conversations carry two kinds of state: durable fields that survive a
// save/load cycle, and transient runtime fields (the abort handle and the
// ephemeral list) that exist only while the process runs. Transient fields
// are tagged `json:"-"` and are reset on rehydration.
package model
