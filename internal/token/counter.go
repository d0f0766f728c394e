// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package token provides token-count bookkeeping for conversations.
//
// Counts are estimates used for context-window budgeting. The actual
// counting function is pluggable per chat model; this package owns the
// caching discipline and the prompt-framing overhead formula.
package token

import "github.com/mveldt/parley/internal/model"

// Per-conversation and per-message framing overheads, mirroring the chat
// model's prompt-framing cost. A conversation's token count is always
// ConversationOverhead + Σ(MessageOverhead + message tokens).
const (
	ConversationOverhead = 3
	MessageOverhead      = 4
)

// CountFunc counts the tokens of text for the given chat model.
type CountFunc func(text, modelID string) int

// EstimateText is the default counting heuristic, approximating ~4
// characters per token. It ignores the model ID.
func EstimateText(text, modelID string) int {
	return (len(text) + 3) / 4
}

// =============================================================================
// COUNTER
// =============================================================================

// Counter computes and caches token counts using an injected CountFunc.
type Counter struct {
	count CountFunc
}

// NewCounter creates a counter around fn. A nil fn falls back to
// EstimateText.
func NewCounter(fn CountFunc) *Counter {
	if fn == nil {
		fn = EstimateText
	}
	return &Counter{count: fn}
}

// MessageTokens returns the message's token count, memoizing it on the
// message as a side effect. The cached value is reused unless force is set
// or the cache is zero. Messages excluded from accounting always count as
// zero, as does any message when no chat model is selected.
func (c *Counter) MessageTokens(msg *model.Message, modelID string, force bool) int {
	if force || msg.TokenCount == 0 {
		n := 0
		if modelID != "" && !msg.IgnoreInTokenCount {
			n = c.count(msg.Text, modelID)
		}
		msg.TokenCount = n
	}
	return msg.TokenCount
}

// ConversationTokens applies the framing-overhead formula over messages,
// recomputing each message's cached count via MessageTokens.
func (c *Counter) ConversationTokens(messages []*model.Message, modelID string, force bool) int {
	sum := ConversationOverhead
	for _, msg := range messages {
		sum += MessageOverhead + c.MessageTokens(msg, modelID, force)
	}
	return sum
}

// SumCached applies the framing-overhead formula over the cached counts
// without recomputing any of them.
func SumCached(messages []*model.Message) int {
	sum := ConversationOverhead
	for _, msg := range messages {
		sum += MessageOverhead + msg.TokenCount
	}
	return sum
}
