// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"

	"github.com/mveldt/parley/internal/model"
	"github.com/mveldt/parley/internal/storage"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports conversations to JSON format.
// NOTE: JSON exports use the persisted snapshot shape and always include the
// complete conversation data structure regardless of options. This ensures
// the exported JSON is a faithful representation that can be re-imported.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
// The options parameter is accepted for consistency with other exporters,
// but JSON exports always include complete conversation data.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a conversation to JSON format.
func (e *JSONExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}

	return json.MarshalIndent(storage.ToStored(conv), "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}

// =============================================================================
// JSON IMPORT
// =============================================================================

// ImportJSON parses a conversation previously produced by the JSON exporter.
// A message still marked as streaming can never resume, so it is finalized
// with its count cache cleared.
func ImportJSON(data []byte) (*model.Conversation, error) {
	var stored storage.StoredConversation
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse conversation: %w", err)
	}
	if stored.ID == "" {
		return nil, fmt.Errorf("conversation has no id")
	}

	for i := range stored.Messages {
		if stored.Messages[i].Typing {
			stored.Messages[i].Typing = false
			stored.Messages[i].TokenCount = 0
		}
	}

	return storage.FromStored(stored), nil
}
