package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"churn/resource"

	"github.com/samber/mo"
)

// Entry is one child of a listed directory.
type Entry struct {
	Name  string
	IsDir bool
}

type Info struct {
	Exists bool
	IsDir  bool
}

// File is a named blob written by ReplaceDir.
type File struct {
	Name string
	Data []byte
}

// Store gives path-addressed access to files of one storage backend.
type Store interface {
	resource.Resource
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// List returns the immediate children of the directory at path.
	List(ctx context.Context, path string) ([]Entry, error)
	Stat(ctx context.Context, path string) (Info, error)
	// ReplaceDir makes path a directory holding exactly files. Prior contents
	// are either fully replaced or, on error, left untouched.
	ReplaceDir(ctx context.Context, path string, files []File) error
}

var _ Store = Resolver{}

// Resolver routes paths to a store by scheme: s3:// and s3a:// go to the S3
// store, everything else (including file://) to the local filesystem.
type Resolver struct {
	Local Local
	S3    mo.Option[S3]
}

// For returns the store serving path and the path as that store expects it.
func (r Resolver) For(path string) (Store, string, error) {
	switch {
	case strings.HasPrefix(path, "s3://"), strings.HasPrefix(path, "s3a://"):
		s3, ok := r.S3.Get()
		if !ok {
			return nil, "", fmt.Errorf("no s3 store configured for path '%s'", path)
		}
		return s3, path, nil
	case strings.HasPrefix(path, "file://"):
		return r.Local, strings.TrimPrefix(path, "file://"), nil
	default:
		return r.Local, path, nil
	}
}

func (r Resolver) ReadFile(ctx context.Context, path string) ([]byte, error) {
	store, p, err := r.For(path)
	if err != nil {
		return nil, err
	}
	return store.ReadFile(ctx, p)
}

func (r Resolver) List(ctx context.Context, path string) ([]Entry, error) {
	store, p, err := r.For(path)
	if err != nil {
		return nil, err
	}
	return store.List(ctx, p)
}

func (r Resolver) Stat(ctx context.Context, path string) (Info, error) {
	store, p, err := r.For(path)
	if err != nil {
		return Info{}, err
	}
	return store.Stat(ctx, p)
}

func (r Resolver) ReplaceDir(ctx context.Context, path string, files []File) error {
	store, p, err := r.For(path)
	if err != nil {
		return err
	}
	return store.ReplaceDir(ctx, p, files)
}

func (r Resolver) Close() error {
	return nil
}

func (r Resolver) Type() resource.Type {
	return resource.LocalStore
}

// Join appends path elements to base, keeping URL schemes intact.
func Join(base string, elems ...string) string {
	if strings.Contains(base, "://") {
		parts := append([]string{strings.TrimRight(base, "/")}, elems...)
		return strings.Join(parts, "/")
	}
	return filepath.Join(append([]string{base}, elems...)...)
}

// Hidden reports whether a file name is a marker or temporary file that
// readers skip, e.g. _SUCCESS or .part.crc.
func Hidden(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}
