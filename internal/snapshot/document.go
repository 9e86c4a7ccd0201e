// Package snapshot publishes the engine's observable state as a JSON file
// shared with other writers.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Document is a snapshot file decoded one level deep. Keys owned by other
// writers pass through untouched.
type Document map[string]json.RawMessage

// ReadDocument loads the file at path. A missing, empty or unparseable file
// yields an empty document.
func ReadDocument(path string) Document {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return Document{}
	}
	return doc
}

// Merge sets every key in owned, replacing any previous value.
func (d Document) Merge(owned map[string]any) error {
	for k, v := range owned {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("snapshot: marshal %q: %w", k, err)
		}
		d[k] = raw
	}
	return nil
}

// Encode renders the document with a two-space indent.
func (d Document) Encode() ([]byte, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return out, nil
}

// WriteAtomic writes data to path.tmp and renames it over path, so readers
// never observe a partial file. Missing parent directories are created.
func WriteAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("snapshot: create dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	return nil
}

// PublishedPrice reads the price last published for instrument at path.
func PublishedPrice(path, instrument string) (float64, bool) {
	raw, ok := ReadDocument(path)["precios"]
	if !ok {
		return 0, false
	}
	var prices map[string]float64
	if err := json.Unmarshal(raw, &prices); err != nil {
		return 0, false
	}
	p, ok := prices[instrument]
	return p, ok
}
