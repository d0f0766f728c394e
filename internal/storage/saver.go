// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mveldt/parley/internal/store"
)

// =============================================================================
// AUTOSAVE
// =============================================================================

// Saver watches a store for changes and persists snapshots through an
// Adapter. Writes are coalesced: a burst of mutations produces at most one
// save per throttle window, plus a final flush on Close.
type Saver struct {
	store   *store.Store
	adapter *Adapter
	logger  *slog.Logger

	interval time.Duration
	limiter  *rate.Limiter

	mu      sync.Mutex
	dirty   bool
	lastErr error

	cancelSub func()
	stop      chan struct{}
	done      chan struct{}
}

// SaverConfig holds autosave tuning.
type SaverConfig struct {
	// Interval is how often the dirty flag is checked (default: 2 seconds).
	Interval time.Duration

	// MinGap is the minimum spacing between two consecutive saves
	// (default: 1 second).
	MinGap time.Duration
}

// DefaultSaverConfig returns the default autosave configuration.
func DefaultSaverConfig() SaverConfig {
	return SaverConfig{
		Interval: 2 * time.Second,
		MinGap:   time.Second,
	}
}

// NewSaver creates a saver for st backed by adapter. A nil logger discards.
func NewSaver(st *store.Store, adapter *Adapter, cfg SaverConfig, logger *slog.Logger) *Saver {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MinGap <= 0 {
		cfg.MinGap = time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Saver{
		store:    st,
		adapter:  adapter,
		logger:   logger,
		interval: cfg.Interval,
		limiter:  rate.NewLimiter(rate.Every(cfg.MinGap), 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start subscribes to store changes and launches the autosave loop.
func (s *Saver) Start() {
	s.cancelSub = s.store.Subscribe(s.MarkDirty)
	go s.loop()
}

// MarkDirty flags that unsaved changes exist.
func (s *Saver) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// LastErr returns the most recent save error, if any.
func (s *Saver) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Saver) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.saveIfDirty()
		case <-s.stop:
			return
		}
	}
}

func (s *Saver) saveIfDirty() {
	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()
	if !dirty {
		return
	}
	if !s.limiter.Allow() {
		return
	}
	s.flush()
}

// Flush persists the current snapshot immediately, waiting out the throttle
// window if necessary. ctx bounds the wait.
func (s *Saver) Flush(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.flush()
}

func (s *Saver) flush() error {
	// Clear the flag before saving so a mutation landing mid-save marks
	// the state dirty again for the next pass.
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()

	snap := s.store.Snapshot()
	err := s.adapter.Save(snap.Conversations, snap.ActiveConversationID)

	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("autosave failed", "error", err)
		s.MarkDirty()
		return err
	}
	return nil
}

// Close stops the loop, unsubscribes, and performs a final flush of any
// pending changes.
func (s *Saver) Close() error {
	close(s.stop)
	<-s.done
	if s.cancelSub != nil {
		s.cancelSub()
	}

	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()
	if !dirty {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Flush(ctx)
}
