package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore keeps results in a local JSON file
type JSONStore struct {
	filePath string
	mu       sync.RWMutex
	data     jsonData
}

type jsonData struct {
	NextID  int64    `json:"nextId"`
	Results []Result `json:"results"`
}

// NewJSONStore loads the file if it exists, otherwise creates it
func NewJSONStore(filePath string) (*JSONStore, error) {
	js := &JSONStore{filePath: filePath, data: jsonData{NextID: 1}}

	raw, err := os.ReadFile(filePath)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &js.data); err != nil {
			return nil, fmt.Errorf("failed to parse JSON store %s: %w", filePath, err)
		}
	case errors.Is(err, os.ErrNotExist):
		if err := js.flush(); err != nil {
			return nil, fmt.Errorf("failed to create JSON store file: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read JSON store %s: %w", filePath, err)
	}
	return js, nil
}

// flush writes the data atomically. Caller holds the lock or owns js.
func (js *JSONStore) flush() error {
	if dir := filepath.Dir(js.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	raw, err := json.MarshalIndent(js.data, "", "  ")
	if err != nil {
		return err
	}

	tmp := js.filePath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, js.filePath)
}

// SaveResult appends a result and writes the file
func (js *JSONStore) SaveResult(_ context.Context, r Result) (int64, error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	r.ID = js.data.NextID
	js.data.NextID++
	js.data.Results = append(js.data.Results, r)

	if err := js.flush(); err != nil {
		js.data.Results = js.data.Results[:len(js.data.Results)-1]
		js.data.NextID--
		return 0, fmt.Errorf("failed to save result: %w", err)
	}
	return r.ID, nil
}

// TopResults returns the best results, best first
func (js *JSONStore) TopResults(_ context.Context, limit int) ([]Result, error) {
	js.mu.RLock()
	out := append([]Result(nil), js.data.Results...)
	js.mu.RUnlock()

	rank(out)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op; every save is already on disk
func (js *JSONStore) Close() error {
	return nil
}
