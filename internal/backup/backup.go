// Package backup saves and restores the run database as a single
// compressed, checksummed file.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nvandessel/sampling-paradigm/internal/store"
)

// RunStore is the part of the run store a backup needs.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, id string) (*store.Run, error)
	SaveRun(ctx context.Context, run *store.Run) (string, error)
}

const (
	filePrefix = "spgen-backup-"
	fileExt    = ".json.gz"
)

// Backup writes every run in s, oldest first, to path.
func Backup(ctx context.Context, s RunStore, path string) (*Header, error) {
	listed, err := s.ListRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	snap := &Snapshot{
		CreatedAt: time.Now().UTC(),
		Runs:      make([]store.Run, 0, len(listed)),
	}
	for i := len(listed) - 1; i >= 0; i-- {
		run, err := s.GetRun(ctx, listed[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load run %s: %w", listed[i].ID, err)
		}
		snap.Runs = append(snap.Runs, *run)
	}

	return Write(path, snap)
}

// RestoreResult counts what a restore did.
type RestoreResult struct {
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
}

// Restore adds the runs in the backup at path to s. Runs whose ID already
// exists are skipped.
func Restore(ctx context.Context, s RunStore, path string) (*RestoreResult, error) {
	_, snap, err := Read(path)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	for i := range snap.Runs {
		run := snap.Runs[i]
		_, err := s.GetRun(ctx, run.ID)
		switch {
		case err == nil:
			result.Skipped++
			continue
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("failed to check run %s: %w", run.ID, err)
		}
		if _, err := s.SaveRun(ctx, &run); err != nil {
			return nil, fmt.Errorf("failed to restore run %s: %w", run.ID, err)
		}
		result.Restored++
	}
	return result, nil
}

// GeneratePath returns a timestamped backup file name in dir.
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, filePrefix+now.UTC().Format("20060102-150405")+fileExt)
}

// Info describes a backup file on disk.
type Info struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	RunCount  int       `json:"run_count"`
}

// List returns the backups in dir, newest first. Files with an unreadable
// header are left out.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		path := filepath.Join(dir, name)
		header, err := ReadHeader(path)
		if err != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Path:      path,
			Size:      fi.Size(),
			CreatedAt: header.CreatedAt,
			RunCount:  header.RunCount,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].Path > infos[j].Path
	})
	return infos, nil
}

// Rotate keeps the keep newest backups in dir and deletes the rest. It
// returns the deleted paths.
func Rotate(dir string, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	infos, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(infos) <= keep {
		return nil, nil
	}

	var deleted []string
	for _, info := range infos[keep:] {
		if err := os.Remove(info.Path); err != nil {
			return deleted, fmt.Errorf("failed to remove old backup %s: %w", filepath.Base(info.Path), err)
		}
		deleted = append(deleted, info.Path)
	}
	return deleted, nil
}
