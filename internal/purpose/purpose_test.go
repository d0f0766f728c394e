// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package purpose

import (
	"sort"
	"testing"
)

func TestLookup(t *testing.T) {
	p, ok := Lookup("Developer")
	if !ok {
		t.Fatal("Developer should be a known purpose")
	}
	if p.ID != "Developer" || p.SystemMessage == "" {
		t.Errorf("unexpected purpose: %+v", p)
	}
}

func TestLookupUnknownFallsBack(t *testing.T) {
	p, ok := Lookup("Astronaut")
	if ok {
		t.Error("unknown purpose should report ok=false")
	}
	if p.ID != DefaultID {
		t.Errorf("fallback ID = %q, want %q", p.ID, DefaultID)
	}
}

func TestDefault(t *testing.T) {
	if Default().ID != DefaultID {
		t.Errorf("Default().ID = %q, want %q", Default().ID, DefaultID)
	}
}

func TestIDsSorted(t *testing.T) {
	ids := IDs()
	if len(ids) == 0 {
		t.Fatal("expected at least one purpose")
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("IDs not sorted: %v", ids)
	}
	for _, id := range ids {
		if !IsValid(id) {
			t.Errorf("IDs() returned invalid purpose %q", id)
		}
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid(DefaultID) {
		t.Error("default must be valid")
	}
	if IsValid("") {
		t.Error("empty ID must not be valid")
	}
}
