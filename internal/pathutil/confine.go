// Package pathutil confines file writes requested from outside the process
// (CLI flags, MCP tool arguments) to spgen's own directories.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Subdirectories of a .spgen data directory that accept written files.
const (
	BackupsDir = "backups"
	ExportsDir = "exports"
)

// BackupDirs returns where backups may be written: the project's
// .spgen/backups and the user's ~/.spgen/backups.
func BackupDirs(dataDir string) []string {
	dirs := []string{filepath.Join(dataDir, BackupsDir)}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".spgen", BackupsDir))
	}
	return dirs
}

// ExportDir returns the directory MCP exports are written to.
func ExportDir(dataDir string) string {
	return filepath.Join(dataDir, ExportsDir)
}

// Redact shortens path to ".../<parent>/<base>" for error messages.
func Redact(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// Confine resolves path and checks that it lies inside one of dirs, after
// following symlinks on every existing ancestor. It returns the resolved
// absolute path. The file itself need not exist.
func Confine(path string, dirs ...string) (string, error) {
	switch {
	case path == "":
		return "", fmt.Errorf("path is empty")
	case strings.ContainsRune(path, '\x00'):
		return "", fmt.Errorf("path contains a null byte")
	case len(dirs) == 0:
		return "", fmt.Errorf("no allowed directories")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot make %s absolute: %w", Redact(path), err)
	}
	parent, err := resolve(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	resolved := filepath.Join(parent, filepath.Base(abs))

	for _, dir := range dirs {
		dirAbs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		dirResolved, err := resolve(dirAbs)
		if err != nil {
			continue
		}
		if within(resolved, dirResolved) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%s is outside the allowed directories", Redact(abs))
}

// resolve follows symlinks on the deepest existing ancestor of dir and
// re-appends the part that does not exist yet.
func resolve(dir string) (string, error) {
	if r, err := filepath.EvalSymlinks(dir); err == nil {
		return r, nil
	}
	up := filepath.Dir(dir)
	if up == dir {
		return "", fmt.Errorf("cannot resolve %s", Redact(dir))
	}
	r, err := resolve(up)
	if err != nil {
		return "", err
	}
	return filepath.Join(r, filepath.Base(dir)), nil
}

func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(os.PathSeparator))
}
