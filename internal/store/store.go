// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the authoritative in-memory conversation state.
package store

import (
	"io"
	"log/slog"
	"sync"

	"github.com/mveldt/parley/internal/model"
	"github.com/mveldt/parley/internal/token"
)

// MaxConversations is the advisory cap on the conversation list. The Store
// never evicts on its own; enforcing the cap is a caller concern.
const MaxConversations = 20

// =============================================================================
// STORE
// =============================================================================

// Store is the in-memory collection of conversations plus the active
// conversation pointer. All mutation goes through its methods.
type Store struct {
	mu sync.Mutex

	conversations []*model.Conversation
	activeID      string

	// modelID selects the chat model used for token accounting.
	// Empty means no model selected: all counts resolve to zero.
	modelID string
	counter *token.Counter

	logger *slog.Logger

	subs    map[int]func()
	nextSub int
}

// New creates a store seeded with one blank conversation, which is active.
// A nil counter falls back to the default estimator; a nil logger discards.
func New(counter *token.Counter, logger *slog.Logger) *Store {
	if counter == nil {
		counter = token.NewCounter(nil)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	first := model.NewConversation("")
	return &Store{
		conversations: []*model.Conversation{first},
		activeID:      first.ID,
		counter:       counter,
		logger:        logger,
		subs:          make(map[int]func()),
	}
}

// =============================================================================
// OBSERVATION
// =============================================================================

// Snapshot is a deep-copy read of the store state.
type Snapshot struct {
	Conversations        []*model.Conversation
	ActiveConversationID string
}

// Snapshot returns a deep copy of the current state. Mutating the returned
// values does not affect the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	convs := make([]*model.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		convs[i] = c.Clone()
	}
	return Snapshot{Conversations: convs, ActiveConversationID: s.activeID}
}

// Subscribe registers fn to be called after every completed mutation. The
// returned function cancels the subscription.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// notify calls every subscriber. Must be called without the lock held.
func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// ActiveConversationID returns the active conversation pointer, or an empty
// string when the collection is empty.
func (s *Store) ActiveConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// ConversationByID returns a deep copy of the named conversation, or nil.
func (s *Store) ConversationByID(id string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.ID == id {
			return c.Clone()
		}
	}
	return nil
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// AtCap reports whether the collection has reached MaxConversations.
func (s *Store) AtCap() bool {
	return s.Len() >= MaxConversations
}

// ChatModel returns the model ID used for token accounting.
func (s *Store) ChatModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelID
}

// SetChatModel switches the chat model and forces a recount of every
// conversation's token bookkeeping.
func (s *Store) SetChatModel(modelID string) {
	s.mu.Lock()
	s.modelID = modelID
	for _, c := range s.conversations {
		c.TokenCount = s.counter.ConversationTokens(c.Messages, modelID, true)
	}
	s.mu.Unlock()
	s.notify()
}

// =============================================================================
// COLLECTION OPERATIONS
// =============================================================================

// CreateConversation inserts a blank conversation at the head of the list,
// inheriting the active conversation's purpose, and makes it active.
// Returns the new conversation's ID.
func (s *Store) CreateConversation() string {
	s.mu.Lock()
	conv := model.NewConversation(s.activePurposeLocked())
	s.conversations = append([]*model.Conversation{conv}, s.conversations...)
	s.activeID = conv.ID
	s.mu.Unlock()
	s.logger.Debug("conversation created", "id", conv.ID)
	s.notify()
	return conv.ID
}

// ImportConversation inserts the given conversation at the head of the list
// and makes it active. Any existing conversation with the same ID is removed
// first, aborting its in-flight generation. Re-importing is safe.
func (s *Store) ImportConversation(conv *model.Conversation) {
	if conv == nil {
		return
	}
	s.mu.Lock()
	s.removeLocked(conv.ID)
	s.conversations = append([]*model.Conversation{conv}, s.conversations...)
	s.activeID = conv.ID
	s.mu.Unlock()
	s.logger.Debug("conversation imported", "id", conv.ID, "messages", len(conv.Messages))
	s.notify()
}

// DeleteConversation aborts any in-flight generation on the named
// conversation and removes it. If it was active, the entry now occupying the
// same position becomes active (or the last entry, or none if the list is
// now empty). Unknown IDs are a no-op.
func (s *Store) DeleteConversation(id string) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.conversations[idx].CancelGeneration()
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	if s.activeID == id {
		switch {
		case len(s.conversations) == 0:
			s.activeID = ""
		case idx < len(s.conversations):
			s.activeID = s.conversations[idx].ID
		default:
			s.activeID = s.conversations[len(s.conversations)-1].ID
		}
	}
	s.mu.Unlock()
	s.logger.Debug("conversation deleted", "id", id)
	s.notify()
}

// DeleteAllConversations aborts every in-flight generation and replaces the
// entire list with one blank conversation inheriting the previously active
// conversation's purpose. The new conversation is active.
func (s *Store) DeleteAllConversations() {
	s.mu.Lock()
	conv := model.NewConversation(s.activePurposeLocked())
	for _, c := range s.conversations {
		c.CancelGeneration()
	}
	s.conversations = []*model.Conversation{conv}
	s.activeID = conv.ID
	s.mu.Unlock()
	s.logger.Debug("all conversations deleted", "fresh", conv.ID)
	s.notify()
}

// SetActiveConversationID sets the active pointer unconditionally.
func (s *Store) SetActiveConversationID(id string) {
	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()
	s.notify()
}

// Hydrate replaces the whole collection with persisted state. Token counts
// are recomputed for any message whose cache is unset; if no active ID is
// given and conversations exist, the first becomes active.
func (s *Store) Hydrate(conversations []*model.Conversation, activeID string) {
	s.mu.Lock()
	for _, c := range conversations {
		c.Abort = nil
		c.Ephemerals = nil
		c.TokenCount = s.counter.ConversationTokens(c.Messages, s.modelID, false)
	}
	if activeID == "" && len(conversations) > 0 {
		activeID = conversations[0].ID
	}
	s.conversations = conversations
	s.activeID = activeID
	s.mu.Unlock()
	s.logger.Debug("store hydrated", "conversations", len(conversations))
	s.notify()
}

// =============================================================================
// PER-CONVERSATION OPERATIONS
// =============================================================================

// StartTyping attaches (or replaces) the abort handle for the conversation.
// It does not abort a prior handle; that is the caller's responsibility.
func (s *Store) StartTyping(id string, abort model.AbortFunc) {
	s.edit(id, func(c *model.Conversation) {
		c.Abort = abort
	})
}

// StopTyping aborts the current generation, if any, and clears the handle.
// Idempotent.
func (s *Store) StopTyping(id string) {
	s.edit(id, func(c *model.Conversation) {
		c.CancelGeneration()
	})
}

// SetMessages replaces the conversation's message list wholesale. Any
// in-flight generation is aborted, the token count is recomputed, and the
// ephemeral list is cleared.
func (s *Store) SetMessages(id string, messages []*model.Message) {
	s.edit(id, func(c *model.Conversation) {
		c.CancelGeneration()
		if messages == nil {
			messages = []*model.Message{}
		}
		c.Messages = messages
		c.TokenCount = s.counter.ConversationTokens(messages, s.modelID, false)
		c.Ephemerals = nil
		c.Touch()
	})
}

// AppendMessage appends the message at the tail. The message's token count
// is computed now only if it is not still typing; a streaming message is
// counted when it finishes.
func (s *Store) AppendMessage(id string, msg *model.Message) {
	if msg == nil {
		return
	}
	s.edit(id, func(c *model.Conversation) {
		if !msg.Typing {
			s.counter.MessageTokens(msg, s.modelID, true)
		}
		c.Messages = append(c.Messages, msg)
		c.TokenCount = token.SumCached(c.Messages)
		c.Touch()
	})
}

// DeleteMessage removes the named message and recomputes the token count.
// Unknown message IDs are a no-op.
func (s *Store) DeleteMessage(id, messageID string) {
	s.edit(id, func(c *model.Conversation) {
		kept := c.Messages[:0]
		for _, m := range c.Messages {
			if m.ID != messageID {
				kept = append(kept, m)
			}
		}
		c.Messages = kept
		c.TokenCount = token.SumCached(c.Messages)
		c.Touch()
	})
}

// MessageUpdate is a partial update applied to a message. Nil fields are
// left unchanged.
type MessageUpdate struct {
	Text               *string
	Sender             *string
	Typing             *bool
	IgnoreInTokenCount *bool
}

// EditMessage merges the partial update into the named message. If the merge
// causes typing to become false, or the message was already not typing, the
// message's token count is forcibly recomputed. The updated timestamps are
// stamped only when touch is set.
func (s *Store) EditMessage(id, messageID string, update MessageUpdate, touch bool) {
	s.edit(id, func(c *model.Conversation) {
		msg := c.MessageByID(messageID)
		if msg == nil {
			return
		}
		recount := (update.Typing != nil && !*update.Typing) || !msg.Typing
		if update.Text != nil {
			msg.Text = *update.Text
		}
		if update.Sender != nil {
			msg.Sender = *update.Sender
		}
		if update.Typing != nil {
			msg.Typing = *update.Typing
		}
		if update.IgnoreInTokenCount != nil {
			msg.IgnoreInTokenCount = *update.IgnoreInTokenCount
		}
		if touch {
			msg.Touch()
		}
		if recount {
			s.counter.MessageTokens(msg, s.modelID, true)
		}
		c.TokenCount = token.SumCached(c.Messages)
		if touch {
			c.Touch()
		}
	})
}

// SetSystemPurposeID updates the conversation's persona profile.
func (s *Store) SetSystemPurposeID(id, purposeID string) {
	s.edit(id, func(c *model.Conversation) {
		c.SystemPurposeID = purposeID
	})
}

// SetAutoTitle sets the derived display title.
func (s *Store) SetAutoTitle(id, autoTitle string) {
	s.edit(id, func(c *model.Conversation) {
		c.AutoTitle = autoTitle
	})
}

// SetUserTitle sets the user-chosen display title.
func (s *Store) SetUserTitle(id, userTitle string) {
	s.edit(id, func(c *model.Conversation) {
		c.UserTitle = userTitle
	})
}

// =============================================================================
// EPHEMERAL OPERATIONS
// =============================================================================

// AppendEphemeral adds a status note to the conversation's ephemeral list.
// Ephemerals never affect token accounting.
func (s *Store) AppendEphemeral(id string, eph *model.Ephemeral) {
	if eph == nil {
		return
	}
	s.edit(id, func(c *model.Conversation) {
		c.Ephemerals = append(c.Ephemerals, eph)
	})
}

// DeleteEphemeral removes the named status note.
func (s *Store) DeleteEphemeral(id, ephemeralID string) {
	s.edit(id, func(c *model.Conversation) {
		kept := c.Ephemerals[:0]
		for _, e := range c.Ephemerals {
			if e.ID != ephemeralID {
				kept = append(kept, e)
			}
		}
		c.Ephemerals = kept
	})
}

// UpdateEphemeralText replaces the note's free-text body.
func (s *Store) UpdateEphemeralText(id, ephemeralID, text string) {
	s.edit(id, func(c *model.Conversation) {
		for _, e := range c.Ephemerals {
			if e.ID == ephemeralID {
				e.Text = text
				return
			}
		}
	})
}

// UpdateEphemeralState replaces the note's opaque state blob.
func (s *Store) UpdateEphemeralState(id, ephemeralID string, state map[string]any) {
	s.edit(id, func(c *model.Conversation) {
		for _, e := range c.Ephemerals {
			if e.ID == ephemeralID {
				e.State = state
				return
			}
		}
	})
}

// =============================================================================
// INTERNALS
// =============================================================================

// edit is the single mutation funnel for per-conversation operations.
// Unknown IDs are tolerated silently: callers pass IDs derived from current
// state, and staleness is a no-op, not an error.
func (s *Store) edit(id string, fn func(c *model.Conversation)) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	fn(s.conversations[idx])
	s.mu.Unlock()
	s.notify()
}

// removeLocked removes any conversation with the given ID, aborting its
// in-flight generation first.
func (s *Store) removeLocked(id string) {
	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.conversations[idx].CancelGeneration()
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
}

// indexLocked returns the position of the conversation, or -1.
func (s *Store) indexLocked(id string) int {
	for i, c := range s.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// activePurposeLocked returns the active conversation's purpose ID, or empty
// when there is no active conversation.
func (s *Store) activePurposeLocked() string {
	for _, c := range s.conversations {
		if c.ID == s.activeID {
			return c.SystemPurposeID
		}
	}
	return ""
}
