// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mveldt/parley/internal/model"
)

// DefaultKey is the key the conversation snapshot lives under.
const DefaultKey = "app-chats"

// BackupSuffix is appended to the key when a pre-versioned legacy snapshot
// is preserved before migration.
const BackupSuffix = "-v2"

// Schema versions.
//
// Version history:
//   - 1: app launch, single chat
//   - 2: multi-chat; stored data invalidated to be sure
//   - 3: current; key-value backend swap, no data shape change
const (
	CurrentVersion = 3

	// VersionLegacy is the sentinel for a pre-versioned snapshot (a value
	// with no version field at all).
	VersionLegacy = -1
)

// =============================================================================
// ADAPTER STATE
// =============================================================================

// State tracks the adapter's load lifecycle.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateRehydrated
	StateMigrationFailed
)

// String returns a readable name for the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateRehydrated:
		return "rehydrated"
	case StateMigrationFailed:
		return "migration-failed"
	default:
		return "unknown"
	}
}

// =============================================================================
// ADAPTER
// =============================================================================

// Adapter serializes store state to a KV backend and rehydrates it on load,
// running schema migrations when the stored version is behind.
type Adapter struct {
	kv     KV
	key    string
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// NewAdapter creates an adapter persisting under key. An empty key uses
// DefaultKey; a nil logger discards.
func NewAdapter(kv KV, key string, logger *slog.Logger) *Adapter {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Adapter{kv: kv, key: key, logger: logger, state: StateUnloaded}
}

// State returns the adapter's load lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// =============================================================================
// MIGRATIONS
// =============================================================================

// A migration rewrites state from one schema version to the next. Steps are
// keyed by source version and run in sequence up to CurrentVersion.
type migration func(storedState) storedState

var migrations = map[int]migration{
	// 1 -> 2: the single-chat data shape is not worth recovering;
	// start over with an empty state.
	1: func(storedState) storedState {
		return storedState{}
	},
	// 2 -> 3: backend swap only, no data shape change.
	2: func(st storedState) storedState {
		return st
	},
}

// =============================================================================
// LOAD
// =============================================================================

// Load reads the snapshot, migrates it if needed, applies rehydration
// fixups, and returns the conversations plus the active conversation ID.
//
// An absent snapshot and an unparseable legacy snapshot both degrade to a
// fresh default state; only backend read failures and corrupt versioned
// snapshots surface as errors.
func (a *Adapter) Load() ([]*model.Conversation, string, error) {
	a.setState(StateLoading)

	raw, ok, err := a.kv.Get(a.key)
	if err != nil {
		a.setState(StateMigrationFailed)
		return nil, "", fmt.Errorf("failed to read snapshot: %w", err)
	}
	if !ok {
		a.logger.Info("no snapshot found, starting fresh")
		a.setState(StateRehydrated)
		return a.defaultState()
	}

	version := detectVersion(raw)

	var st storedState
	if version == VersionLegacy {
		// Best-effort recovery: back up the raw value verbatim, drop the
		// old key, and extract what we can.
		st = a.migrateLegacy(raw)
		version = CurrentVersion
	} else {
		var env storedEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			a.setState(StateMigrationFailed)
			return nil, "", fmt.Errorf("corrupt snapshot (version %d): %w", version, err)
		}
		st = env.State
	}

	for version < CurrentVersion {
		step, ok := migrations[version]
		if !ok {
			a.setState(StateMigrationFailed)
			return nil, "", fmt.Errorf("no migration from schema version %d", version)
		}
		a.logger.Info("migrating snapshot", "from", version, "to", version+1)
		st = step(st)
		version++
	}
	if version > CurrentVersion {
		a.setState(StateMigrationFailed)
		return nil, "", fmt.Errorf("snapshot version %d is newer than supported version %d", version, CurrentVersion)
	}

	convs, activeID := a.fixup(st)
	a.setState(StateRehydrated)
	a.logger.Info("snapshot rehydrated", "conversations", len(convs))
	return convs, activeID, nil
}

// detectVersion returns the envelope's schema version, or VersionLegacy for
// a value with no version field. Values that are not valid JSON also report
// legacy and take the fail-soft path.
func detectVersion(raw string) int {
	var probe struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil || probe.Version == nil {
		return VersionLegacy
	}
	return *probe.Version
}

// migrateLegacy handles the pre-versioned snapshot format: the raw value is
// preserved verbatim under the backup key, the original key is deleted, and
// the state is extracted best-effort. Parse failures degrade to an empty
// state rather than propagating.
func (a *Adapter) migrateLegacy(raw string) storedState {
	backupKey := a.key + BackupSuffix
	if err := a.kv.Set(backupKey, raw); err != nil {
		a.logger.Warn("failed to write legacy backup", "key", backupKey, "error", err)
	}
	if err := a.kv.Delete(a.key); err != nil {
		a.logger.Warn("failed to delete legacy key", "key", a.key, "error", err)
	}

	var env storedEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		a.logger.Warn("legacy snapshot unparseable, starting empty", "error", err)
		return storedState{}
	}
	a.logger.Info("legacy snapshot migrated",
		"backup", backupKey, "conversations", len(env.State.Conversations))
	return env.State
}

// fixup converts stored state to in-memory form and repairs anything that
// cannot survive a save/load cycle: a message frozen mid-stream can never be
// resumed, so typing resets to false with its count cache cleared for
// recomputation, and a missing active pointer falls back to the first entry.
// An empty collection is replaced by one fresh conversation.
func (a *Adapter) fixup(st storedState) ([]*model.Conversation, string) {
	convs := make([]*model.Conversation, 0, len(st.Conversations))
	for _, sc := range st.Conversations {
		for i := range sc.Messages {
			if sc.Messages[i].Typing {
				sc.Messages[i].Typing = false
				sc.Messages[i].TokenCount = 0
			}
		}
		convs = append(convs, FromStored(sc))
	}

	if len(convs) == 0 {
		fresh := model.NewConversation("")
		return []*model.Conversation{fresh}, fresh.ID
	}

	activeID := st.ActiveConversationID
	if activeID == "" {
		activeID = convs[0].ID
	}
	return convs, activeID
}

// defaultState returns a fresh single-conversation state.
func (a *Adapter) defaultState() ([]*model.Conversation, string, error) {
	fresh := model.NewConversation("")
	return []*model.Conversation{fresh}, fresh.ID, nil
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes the full snapshot under the adapter's key. Transient fields
// are stripped structurally by the Stored* conversion; everything else
// persists verbatim. Writes are last-write-wins.
func (a *Adapter) Save(conversations []*model.Conversation, activeID string) error {
	st := storedState{
		Conversations:        make([]StoredConversation, len(conversations)),
		ActiveConversationID: activeID,
	}
	for i, c := range conversations {
		st.Conversations[i] = ToStored(c)
	}

	data, err := json.Marshal(storedEnvelope{State: st, Version: CurrentVersion})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := a.kv.Set(a.key, string(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
