// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package purpose defines the built-in persona profiles a conversation can
// adopt. Each purpose pairs a display identity with the system message sent
// at the start of a generation.
package purpose

import "sort"

// Purpose is a persona profile: a system prompt plus display metadata.
type Purpose struct {
	ID            string
	Title         string
	Description   string
	SystemMessage string
}

// DefaultID is the purpose assigned to conversations created without an
// inherited purpose.
const DefaultID = "Generic"

// =============================================================================
// REGISTRY
// =============================================================================

var registry = map[string]Purpose{
	"Developer": {
		ID:            "Developer",
		Title:         "Developer",
		Description:   "Helps you code",
		SystemMessage: "You are a sophisticated, accurate, and modern AI programming assistant.",
	},
	"Scientist": {
		ID:            "Scientist",
		Title:         "Scientist",
		Description:   "Helps you write scientific papers",
		SystemMessage: "You are a scientist's assistant. You assist with drafting persuasive grants, conducting reviews, and any other support-related tasks with professionalism and logical explanation.",
	},
	"Catalyst": {
		ID:            "Catalyst",
		Title:         "Catalyst",
		Description:   "Growth hacker with marketing superpowers",
		SystemMessage: "You are a marketing extraordinaire for a booming startup fusing creativity, data-smarts, and digital prowess.",
	},
	"Executive": {
		ID:            "Executive",
		Title:         "Executive",
		Description:   "Helps you write business emails",
		SystemMessage: "You are an AI corporate assistant. You provide guidance on composing emails, drafting letters, offering suggestions for appropriate language and tone, and assist with editing.",
	},
	"Generic": {
		ID:            "Generic",
		Title:         "Default",
		Description:   "Helps you think",
		SystemMessage: "You are ChatGPT, a large language model trained by OpenAI, based on the GPT-4 architecture.",
	},
	"Custom": {
		ID:            "Custom",
		Title:         "Custom",
		Description:   "User-defined purpose",
		SystemMessage: "You are ChatGPT, a large language model trained by OpenAI, based on the GPT-4 architecture.",
	},
}

// Lookup returns the purpose with the given ID. Unknown IDs resolve to the
// default purpose with ok set to false.
func Lookup(id string) (Purpose, bool) {
	if p, ok := registry[id]; ok {
		return p, true
	}
	return registry[DefaultID], false
}

// Default returns the default purpose.
func Default() Purpose {
	return registry[DefaultID]
}

// IDs returns the known purpose IDs.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsValid reports whether the ID names a known purpose.
func IsValid(id string) bool {
	_, ok := registry[id]
	return ok
}
