// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package token

import (
	"testing"

	"github.com/mveldt/parley/internal/model"
)

func TestEstimateText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"one char", "a", 1},
		{"four chars", "abcd", 1},
		{"five chars", "abcde", 2},
		{"eight chars", "abcdefgh", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateText(tt.text, "gpt-4")
			if got != tt.want {
				t.Errorf("EstimateText(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestMessageTokensCaching(t *testing.T) {
	calls := 0
	c := NewCounter(func(text, modelID string) int {
		calls++
		return 10
	})

	msg := model.NewMessage(model.RoleUser, "hello world")

	// First call computes and caches.
	if got := c.MessageTokens(msg, "gpt-4", false); got != 10 {
		t.Errorf("MessageTokens = %d, want 10", got)
	}
	if calls != 1 {
		t.Fatalf("count calls = %d, want 1", calls)
	}

	// Cached value reused without force.
	c.MessageTokens(msg, "gpt-4", false)
	if calls != 1 {
		t.Errorf("count calls after cached read = %d, want 1", calls)
	}

	// Force recomputes.
	c.MessageTokens(msg, "gpt-4", true)
	if calls != 2 {
		t.Errorf("count calls after force = %d, want 2", calls)
	}
}

func TestMessageTokensNoModel(t *testing.T) {
	c := NewCounter(func(text, modelID string) int {
		t.Fatal("count fn should not be called without a model")
		return 0
	})

	msg := model.NewMessage(model.RoleUser, "hello")
	if got := c.MessageTokens(msg, "", true); got != 0 {
		t.Errorf("MessageTokens without model = %d, want 0", got)
	}
	if msg.TokenCount != 0 {
		t.Errorf("TokenCount = %d, want 0", msg.TokenCount)
	}
}

func TestMessageTokensIgnored(t *testing.T) {
	c := NewCounter(func(text, modelID string) int { return 99 })

	msg := model.NewMessage(model.RoleUser, "hello")
	msg.IgnoreInTokenCount = true

	if got := c.MessageTokens(msg, "gpt-4", true); got != 0 {
		t.Errorf("MessageTokens for ignored message = %d, want 0", got)
	}
}

func TestConversationTokensFormula(t *testing.T) {
	c := NewCounter(func(text, modelID string) int { return len(text) })

	messages := []*model.Message{
		model.NewMessage(model.RoleUser, "ab"),
		model.NewMessage(model.RoleAssistant, "cdef"),
	}

	// 3 + (4+2) + (4+4) = 17
	if got := c.ConversationTokens(messages, "gpt-4", true); got != 17 {
		t.Errorf("ConversationTokens = %d, want 17", got)
	}
}

func TestConversationTokensEmpty(t *testing.T) {
	c := NewCounter(nil)
	if got := c.ConversationTokens(nil, "gpt-4", false); got != ConversationOverhead {
		t.Errorf("ConversationTokens(nil) = %d, want %d", got, ConversationOverhead)
	}
}

func TestSumCached(t *testing.T) {
	m1 := model.NewMessage(model.RoleUser, "x")
	m1.TokenCount = 5
	m2 := model.NewMessage(model.RoleAssistant, "y")
	m2.TokenCount = 7

	// 3 + (4+5) + (4+7) = 23
	if got := SumCached([]*model.Message{m1, m2}); got != 23 {
		t.Errorf("SumCached = %d, want 23", got)
	}

	// Never recomputes: a typing message with a zero cache contributes zero.
	m3 := model.NewMessage(model.RoleAssistant, "streaming text")
	m3.Typing = true
	if got := SumCached([]*model.Message{m3}); got != ConversationOverhead+MessageOverhead {
		t.Errorf("SumCached typing = %d, want %d", got, ConversationOverhead+MessageOverhead)
	}
}
