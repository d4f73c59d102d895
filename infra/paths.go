package infra

import (
	"os"
	"path/filepath"
)

// DataDir returns the base directory for local data. Defaults to ./data
func DataDir() string {
	if v := os.Getenv("RIV_DATA_DIR"); v != "" {
		return v
	}
	return "data"
}

// BadgerDir is where the embedded store keeps its files.
func BadgerDir(base string) string {
	if base == "" {
		base = DataDir()
	}
	return filepath.Join(base, "badger")
}
