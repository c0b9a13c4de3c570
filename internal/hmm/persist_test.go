package hmm

import (
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	m := NewRandomModel(42)
	path := filepath.Join(t.TempDir(), "model.json")

	if err := Save(m, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Initial != m.Initial {
		t.Errorf("Initial mismatch after round trip: got %v, want %v", got.Initial, m.Initial)
	}
	if got.Trans != m.Trans {
		t.Errorf("Trans mismatch after round trip")
	}
	if got.Emit != m.Emit {
		t.Errorf("Emit mismatch after round trip")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error loading a nonexistent model file")
	}
}
