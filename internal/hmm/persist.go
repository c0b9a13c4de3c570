package hmm

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Save persists a fitted model to path as JSON, using the same high-
// performance JSON codec the rest of this codebase standardizes on
// (goccy/go-json) instead of a bespoke binary format.
func Save(m *Model, path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("hmm: marshal model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("hmm: write model %s: %w", path, err)
	}
	return nil
}

// Load reads a model previously written by Save.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hmm: read model %s: %w", path, err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("hmm: unmarshal model %s: %w", path, err)
	}
	return &m, nil
}
