package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"churn/resource"
	"churn/s3"

	"github.com/google/uuid"
)

type S3Config struct {
	Args s3.S3Args
}

var _ resource.Config = S3Config{}

func (c S3Config) Materialize() (resource.Resource, error) {
	client, err := s3.NewClient(c.Args)
	if err != nil {
		return nil, err
	}
	return S3{client: client}, nil
}

// S3 stores files as objects; directories are key prefixes ending in "/".
type S3 struct {
	client s3.Client
}

var _ Store = S3{}

func (s S3) ReadFile(ctx context.Context, path string) ([]byte, error) {
	bucket, key, err := s3.ParseURL(path)
	if err != nil {
		return nil, err
	}
	return s.client.Download(ctx, key, bucket)
}

func dirPrefix(key string) string {
	if key == "" {
		return ""
	}
	return strings.TrimSuffix(key, "/") + "/"
}

func (s S3) List(ctx context.Context, path string) ([]Entry, error) {
	bucket, key, err := s3.ParseURL(path)
	if err != nil {
		return nil, err
	}
	prefix := dirPrefix(key)
	listing, err := s.client.List(ctx, prefix, bucket)
	if err != nil {
		return nil, err
	}
	if len(listing.Files) == 0 && len(listing.Dirs) == 0 {
		return nil, fmt.Errorf("list '%s': %w", path, os.ErrNotExist)
	}
	var entries []Entry
	for _, d := range listing.Dirs {
		entries = append(entries, Entry{Name: strings.TrimSuffix(strings.TrimPrefix(d, prefix), "/"), IsDir: true})
	}
	for _, f := range listing.Files {
		name := strings.TrimPrefix(f, prefix)
		if name == "" {
			continue
		}
		entries = append(entries, Entry{Name: name})
	}
	return entries, nil
}

func (s S3) Stat(ctx context.Context, path string) (Info, error) {
	bucket, key, err := s3.ParseURL(path)
	if err != nil {
		return Info{}, err
	}
	if key != "" {
		exists, err := s.client.Exists(ctx, key, bucket)
		if err != nil {
			return Info{}, err
		}
		if exists {
			return Info{Exists: true}, nil
		}
	}
	listing, err := s.client.List(ctx, dirPrefix(key), bucket)
	if err != nil {
		return Info{}, err
	}
	if len(listing.Files) == 0 && len(listing.Dirs) == 0 {
		return Info{}, nil
	}
	return Info{Exists: true, IsDir: true}, nil
}

// ReplaceDir uploads into a staging prefix first. Existing objects are only
// deleted after every staged upload succeeded.
func (s S3) ReplaceDir(ctx context.Context, path string, files []File) error {
	bucket, key, err := s3.ParseURL(path)
	if err != nil {
		return err
	}
	prefix := dirPrefix(key)
	if prefix == "" {
		return fmt.Errorf("refusing to replace the root of bucket '%s'", bucket)
	}
	staging := fmt.Sprintf("%s._temporary-%s/", strings.TrimSuffix(prefix, "/"), uuid.NewString())
	for _, f := range files {
		if err := s.client.Upload(ctx, bytes.NewReader(f.Data), staging+f.Name, bucket); err != nil {
			_ = s.client.DeletePrefix(context.Background(), staging, bucket)
			return fmt.Errorf("failed to upload '%s': %w", f.Name, err)
		}
	}
	if err := s.client.DeletePrefix(ctx, prefix, bucket); err != nil {
		_ = s.client.DeletePrefix(context.Background(), staging, bucket)
		return fmt.Errorf("failed to remove existing '%s': %w", path, err)
	}
	for _, f := range files {
		if err := s.client.Copy(ctx, staging+f.Name, prefix+f.Name, bucket); err != nil {
			return fmt.Errorf("failed to move staged '%s' into place: %w", f.Name, err)
		}
	}
	return s.client.DeletePrefix(ctx, staging, bucket)
}

func (s S3) Close() error {
	return nil
}

func (s S3) Type() resource.Type {
	return resource.S3Store
}
