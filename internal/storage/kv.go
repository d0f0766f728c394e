// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversation state to durable key-value storage.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mveldt/parley/internal/util"
)

// KV is the durable storage boundary: string keys to string values. The
// Adapter is the only writer and always writes full snapshots, so backends
// need no transaction support beyond last-write-wins per key.
type KV interface {
	// Get returns the value for key, and whether the key exists.
	Get(key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// =============================================================================
// FILE BACKEND
// =============================================================================

// FileKV stores each key as a JSON file in a base directory.
type FileKV struct {
	// BaseDir is the directory holding one file per key.
	BaseDir string
}

// NewFileKV creates a file-backed KV store rooted at baseDir.
func NewFileKV(baseDir string) (*FileKV, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileKV{BaseDir: baseDir}, nil
}

// Get reads the value for key from disk.
func (f *FileKV) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// Set writes the value atomically with fsync.
// RELIABILITY: Atomic write prevents a half-written snapshot on crash.
func (f *FileKV) Set(key, value string) error {
	return util.AtomicWriteFile(f.path(key), []byte(value), 0600)
}

// Delete removes the key's file.
func (f *FileKV) Delete(key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// path returns the file path for a key.
func (f *FileKV) path(key string) string {
	return filepath.Join(f.BaseDir, key+".json")
}
