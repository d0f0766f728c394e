// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mveldt/parley/internal/model"
	"github.com/mveldt/parley/internal/store"
)

// memKV is an in-memory KV with injectable failures.
type memKV struct {
	data   map[string]string
	setErr error
	getErr error
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(key string) error {
	delete(m.data, key)
	return nil
}

// =============================================================================
// KV BACKENDS
// =============================================================================

func TestFileKVRoundtrip(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, kv.Set("chats", `{"hello":"world"}`))

	got, ok, err := kv.Get("chats")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"hello":"world"}`, got)

	// Overwrite replaces.
	require.NoError(t, kv.Set("chats", `{}`))
	got, _, _ = kv.Get("chats")
	assert.Equal(t, `{}`, got)
}

func TestFileKVAbsentKey(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	_, ok, err := kv.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileKVDeleteTolerant(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, kv.Set("chats", "x"))
	require.NoError(t, kv.Delete("chats"))
	_, ok, _ := kv.Get("chats")
	assert.False(t, ok)

	// Deleting an absent key is not an error.
	assert.NoError(t, kv.Delete("chats"))
}

func TestSQLiteKVRoundtrip(t *testing.T) {
	kv, err := OpenSQLiteKV(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set("chats", "value-1"))
	require.NoError(t, kv.Set("chats", "value-2"))

	got, ok, err := kv.Get("chats")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value-2", got)

	_, ok, err = kv.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Delete("chats"))
	_, ok, _ = kv.Get("chats")
	assert.False(t, ok)
}

// =============================================================================
// ADAPTER
// =============================================================================

func sampleConversation() *model.Conversation {
	conv := model.NewConversation("Developer")
	conv.UserTitle = "Roundtrip"
	msg := model.NewMessage(model.RoleUser, "hello there")
	msg.TokenCount = 3
	conv.Messages = append(conv.Messages, msg)
	conv.TokenCount = 10
	return conv
}

func TestAdapterLoadAbsentStartsFresh(t *testing.T) {
	a := NewAdapter(newMemKV(), "", nil)

	convs, activeID, err := a.Load()
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Empty(t, convs[0].Messages)
	assert.Equal(t, convs[0].ID, activeID)
	assert.Equal(t, StateRehydrated, a.State())
}

func TestAdapterSaveLoadRoundtrip(t *testing.T) {
	kv := newMemKV()
	a := NewAdapter(kv, "chats", nil)
	conv := sampleConversation()

	require.NoError(t, a.Save([]*model.Conversation{conv}, conv.ID))

	raw := kv.data["chats"]
	assert.Contains(t, raw, `"version":3`)
	assert.Contains(t, raw, `"activeConversationId"`)
	assert.Contains(t, raw, `"systemPurposeId"`)

	convs, activeID, err := a.Load()
	require.NoError(t, err)
	require.Len(t, convs, 1)
	got := convs[0]
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, "Developer", got.SystemPurposeID)
	assert.Equal(t, "Roundtrip", got.UserTitle)
	assert.Equal(t, 10, got.TokenCount)
	assert.Equal(t, conv.ID, activeID)

	require.Len(t, got.Messages, 1)
	msg := got.Messages[0]
	assert.Equal(t, "hello there", msg.Text)
	assert.Equal(t, model.RoleUser, msg.Role)
	assert.Equal(t, 3, msg.TokenCount)

	// Timestamps persist at millisecond precision.
	assert.Equal(t, conv.Created.UnixMilli(), got.Created.UnixMilli())
	assert.Equal(t, msg.Created.UnixMilli(), got.Messages[0].Created.UnixMilli())

	// Transients never round-trip.
	assert.Nil(t, got.Abort)
	assert.Empty(t, got.Ephemerals)
}

func TestAdapterLegacyMigration(t *testing.T) {
	kv := newMemKV()
	// A pre-versioned snapshot: the envelope shape without a version field.
	legacy := `{"state":{"conversations":[{"id":"c1","messages":[],"systemPurposeId":"Generic","tokenCount":3,"created":1700000000000,"updated":null}],"activeConversationId":"c1"}}`
	kv.data["chats"] = legacy

	a := NewAdapter(kv, "chats", nil)
	convs, activeID, err := a.Load()
	require.NoError(t, err)

	require.Len(t, convs, 1)
	assert.Equal(t, "c1", convs[0].ID)
	assert.Equal(t, "c1", activeID)
	assert.Equal(t, StateRehydrated, a.State())

	// The raw value is preserved verbatim under the backup key and the
	// original key is gone.
	assert.Equal(t, legacy, kv.data["chats"+BackupSuffix])
	_, ok := kv.data["chats"]
	assert.False(t, ok)
}

func TestAdapterLegacyUnparseable(t *testing.T) {
	kv := newMemKV()
	kv.data["chats"] = "definitely not json"

	a := NewAdapter(kv, "chats", nil)
	convs, activeID, err := a.Load()
	require.NoError(t, err, "unparseable legacy data degrades, not errors")

	// Best-effort recovery yields a fresh conversation, with the raw bytes
	// still backed up for manual inspection.
	require.Len(t, convs, 1)
	assert.Empty(t, convs[0].Messages)
	assert.Equal(t, convs[0].ID, activeID)
	assert.Equal(t, "definitely not json", kv.data["chats"+BackupSuffix])
}

func TestAdapterMigrateV1DropsData(t *testing.T) {
	kv := newMemKV()
	kv.data["chats"] = `{"state":{"conversations":[{"id":"old","messages":[],"systemPurposeId":"Generic","tokenCount":0,"created":0,"updated":null}],"activeConversationId":"old"},"version":1}`

	a := NewAdapter(kv, "chats", nil)
	convs, _, err := a.Load()
	require.NoError(t, err)

	// The v1 single-chat shape is invalidated; a fresh conversation replaces it.
	require.Len(t, convs, 1)
	assert.NotEqual(t, "old", convs[0].ID)
	assert.Empty(t, convs[0].Messages)
}

func TestAdapterMigrateV2Identity(t *testing.T) {
	kv := newMemKV()
	kv.data["chats"] = `{"state":{"conversations":[{"id":"keep","messages":[],"systemPurposeId":"Generic","tokenCount":3,"created":1700000000000,"updated":null}],"activeConversationId":"keep"},"version":2}`

	a := NewAdapter(kv, "chats", nil)
	convs, activeID, err := a.Load()
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "keep", convs[0].ID)
	assert.Equal(t, "keep", activeID)
}

func TestAdapterFutureVersionFails(t *testing.T) {
	kv := newMemKV()
	kv.data["chats"] = `{"state":{"conversations":[],"activeConversationId":""},"version":4}`

	a := NewAdapter(kv, "chats", nil)
	_, _, err := a.Load()
	require.Error(t, err)
	assert.Equal(t, StateMigrationFailed, a.State())
}

func TestAdapterCorruptVersionedFails(t *testing.T) {
	kv := newMemKV()
	kv.data["chats"] = `{"state":42,"version":3}`

	a := NewAdapter(kv, "chats", nil)
	_, _, err := a.Load()
	require.Error(t, err)
	assert.Equal(t, StateMigrationFailed, a.State())
}

func TestAdapterTypingFixup(t *testing.T) {
	kv := newMemKV()
	kv.data["chats"] = `{"state":{"conversations":[{"id":"c1","messages":[{"id":"m1","text":"partial","sender":"Bot","typing":true,"role":"assistant","tokenCount":99,"created":0,"updated":null}],"systemPurposeId":"Generic","tokenCount":0,"created":0,"updated":null}],"activeConversationId":"c1"},"version":3}`

	a := NewAdapter(kv, "chats", nil)
	convs, _, err := a.Load()
	require.NoError(t, err)

	// A message frozen mid-stream can never resume: typing resets and the
	// stale count cache is cleared for recomputation.
	msg := convs[0].Messages[0]
	assert.False(t, msg.Typing)
	assert.Equal(t, 0, msg.TokenCount)
	assert.Equal(t, "partial", msg.Text)
}

func TestAdapterMissingActiveDefaultsToFirst(t *testing.T) {
	kv := newMemKV()
	kv.data["chats"] = `{"state":{"conversations":[{"id":"first","messages":[],"systemPurposeId":"Generic","tokenCount":3,"created":0,"updated":null},{"id":"second","messages":[],"systemPurposeId":"Generic","tokenCount":3,"created":0,"updated":null}],"activeConversationId":""},"version":3}`

	a := NewAdapter(kv, "chats", nil)
	_, activeID, err := a.Load()
	require.NoError(t, err)
	assert.Equal(t, "first", activeID)
}

func TestAdapterReadFailure(t *testing.T) {
	kv := newMemKV()
	kv.getErr = errors.New("disk on fire")

	a := NewAdapter(kv, "chats", nil)
	_, _, err := a.Load()
	require.Error(t, err)
	assert.Equal(t, StateMigrationFailed, a.State())
}

// =============================================================================
// SAVER
// =============================================================================

func TestSaverFlushWritesSnapshot(t *testing.T) {
	kv := newMemKV()
	a := NewAdapter(kv, "chats", nil)
	st := store.New(nil, nil)
	st.AppendMessage(st.ActiveConversationID(), model.NewMessage(model.RoleUser, "save me"))

	s := NewSaver(st, a, SaverConfig{Interval: time.Hour, MinGap: time.Millisecond}, nil)
	require.NoError(t, s.Flush(context.Background()))

	assert.Contains(t, kv.data["chats"], "save me")
}

func TestSaverCloseFlushesPending(t *testing.T) {
	kv := newMemKV()
	a := NewAdapter(kv, "chats", nil)
	st := store.New(nil, nil)

	// An hour-long interval keeps the ticker out of the picture: only the
	// final flush on Close can write.
	s := NewSaver(st, a, SaverConfig{Interval: time.Hour, MinGap: time.Millisecond}, nil)
	s.Start()

	st.AppendMessage(st.ActiveConversationID(), model.NewMessage(model.RoleUser, "pending"))
	require.NoError(t, s.Close())

	assert.Contains(t, kv.data["chats"], "pending")
}

func TestSaverCloseSkipsCleanState(t *testing.T) {
	kv := newMemKV()
	a := NewAdapter(kv, "chats", nil)
	st := store.New(nil, nil)

	s := NewSaver(st, a, SaverConfig{Interval: time.Hour, MinGap: time.Millisecond}, nil)
	s.Start()
	require.NoError(t, s.Close())

	_, ok := kv.data["chats"]
	assert.False(t, ok, "nothing changed, nothing written")
}

func TestSaverFailedSaveRetries(t *testing.T) {
	kv := newMemKV()
	kv.setErr = errors.New("disk full")
	a := NewAdapter(kv, "chats", nil)
	st := store.New(nil, nil)

	s := NewSaver(st, a, SaverConfig{Interval: time.Hour, MinGap: time.Millisecond}, nil)
	s.MarkDirty()

	err := s.Flush(context.Background())
	require.Error(t, err)
	assert.Error(t, s.LastErr())

	// The failure re-marks the state dirty, so the next flush retries and
	// succeeds once the backend recovers.
	kv.setErr = nil
	require.NoError(t, s.Flush(context.Background()))
	assert.NoError(t, s.LastErr())
	assert.True(t, strings.Contains(kv.data["chats"], `"version":3`))
}
