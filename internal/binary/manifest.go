package binary

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestName is the filename of the install manifest, written next to
// the installed binary.
const ManifestName = "chainsaw.manifest.yaml"

// Manifest records what a provisioning run installed. It is the durable
// answer to "which chainsaw is in this image and where did it come from".
type Manifest struct {
	Tool        string    `yaml:"tool"`
	Version     string    `yaml:"version"`
	Asset       string    `yaml:"asset"`
	DownloadURL string    `yaml:"downloadURL"`
	SHA256      string    `yaml:"sha256"`
	Verified    string    `yaml:"verified"`
	BinaryPath  string    `yaml:"binaryPath"`
	LinkPath    string    `yaml:"linkPath"`
	InstalledAt time.Time `yaml:"installedAt"`
}

// WriteManifest writes the manifest into dir atomically.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestName)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename manifest: %w", err)
	}

	return nil
}

// ReadManifest reads the manifest from dir. A missing manifest is not an
// error shape callers need to distinguish beyond os.IsNotExist.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	return &m, nil
}
