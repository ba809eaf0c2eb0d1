package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"churn/resource"

	"github.com/google/uuid"
)

type LocalConfig struct{}

var _ resource.Config = LocalConfig{}

func (c LocalConfig) Materialize() (resource.Resource, error) {
	return Local{}, nil
}

// Local is the filesystem store.
type Local struct{}

var _ Store = Local{}

func (l Local) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (l Local) List(ctx context.Context, path string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		entries = append(entries, Entry{Name: d.Name(), IsDir: d.IsDir()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (l Local) Stat(ctx context.Context, path string) (Info, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, err
	}
	return Info{Exists: true, IsDir: fi.IsDir()}, nil
}

// rename is swapped in tests to fail the final move.
var rename = os.Rename

// ReplaceDir writes files into a hidden sibling staging directory and only
// swaps it into place once every file has been written. Existing contents
// are moved aside first and restored if the swap fails.
func (l Local) ReplaceDir(ctx context.Context, path string, files []File) error {
	path = filepath.Clean(path)
	parent, base := filepath.Dir(path), filepath.Base(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory of '%s': %w", path, err)
	}
	id := uuid.NewString()
	staging := filepath.Join(parent, fmt.Sprintf(".%s._temporary-%s", base, id))
	if err := os.Mkdir(staging, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := writeAll(ctx, staging, files); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	backup := ""
	if _, err := os.Lstat(path); err == nil {
		backup = filepath.Join(parent, fmt.Sprintf(".%s._backup-%s", base, id))
		if err := rename(path, backup); err != nil {
			_ = os.RemoveAll(staging)
			return fmt.Errorf("failed to move existing '%s' aside: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		_ = os.RemoveAll(staging)
		return err
	}
	if err := rename(staging, path); err != nil {
		_ = os.RemoveAll(staging)
		if backup != "" {
			if rerr := rename(backup, path); rerr != nil {
				return fmt.Errorf("failed to move staged output to '%s': %w (previous contents kept at '%s')", path, err, backup)
			}
		}
		return fmt.Errorf("failed to move staged output to '%s': %w", path, err)
	}
	if backup != "" {
		// the new contents are in place, a leftover hidden backup is skipped by readers
		_ = os.RemoveAll(backup)
	}
	return nil
}

func writeAll(ctx context.Context, dir string, files []File) error {
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, f.Name), f.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write '%s': %w", f.Name, err)
		}
	}
	return nil
}

func (l Local) Close() error {
	return nil
}

func (l Local) Type() resource.Type {
	return resource.LocalStore
}
