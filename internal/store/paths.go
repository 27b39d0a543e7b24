package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the name of the spgen data directory.
const DirName = ".spgen"

// DBFile is the name of the schedule database inside the data directory.
const DBFile = "spgen.db"

// GlobalPath returns the path to the global .spgen directory.
// On Unix: ~/.spgen
// On Windows: %USERPROFILE%\.spgen
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// LocalPath returns the path to the .spgen directory for the given project root.
func LocalPath(projectRoot string) string {
	return filepath.Join(projectRoot, DirName)
}

// EnsureDir creates dir if it doesn't exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
