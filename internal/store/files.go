// Package store loads and persists the collection's JSON state: the official
// manifest and the inscription config. The watcher treats both as read-only;
// writes happen only through manifestctl's validated append.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HattoriHanzo12/Random-Faces/internal/domain/model"
)

// LoadManifest reads and parses the official manifest array.
func LoadManifest(path string) (model.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var manifest model.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return manifest, nil
}

// LoadCollectionConfig reads and parses the inscription config.
func LoadCollectionConfig(path string) (model.CollectionConfig, error) {
	var cfg model.CollectionConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// WriteManifest persists the manifest with the same two-space indent and
// trailing newline the collection repo uses, so diffs stay minimal.
func WriteManifest(path string, manifest model.Manifest) error {
	data, err := EncodeManifest(manifest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}

// EncodeManifest renders the manifest in its canonical serialized form.
// Proposal-change detection compares these byte strings.
func EncodeManifest(manifest model.Manifest) ([]byte, error) {
	if manifest == nil {
		manifest = model.Manifest{}
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}
