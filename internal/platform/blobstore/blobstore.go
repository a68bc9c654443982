// Package blobstore resolves ingestion inputs that live either on the local
// filesystem or in an S3-compatible bucket.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("object not found")

// Location is a parsed source URI. Bucket and Key are set for s3:// URIs,
// Path for everything else.
type Location struct {
	Bucket string
	Key    string
	Path   string
}

func (l Location) IsS3() bool { return l.Bucket != "" }

func (l Location) String() string {
	if l.IsS3() {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// Join appends name to the location, as a key suffix or a path element.
func (l Location) Join(name string) Location {
	if l.IsS3() {
		key := strings.TrimSuffix(l.Key, "/")
		if key != "" {
			key += "/"
		}
		return Location{Bucket: l.Bucket, Key: key + name}
	}
	return Location{Path: filepath.Join(l.Path, name)}
}

// ParseURI accepts "s3://bucket/key", "file:///abs/path" or a plain path.
// An s3 URI without a key is only valid as a prefix, so allowEmptyKey
// controls whether "s3://bucket" is accepted.
func ParseURI(raw string, allowEmptyKey bool) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, errors.New("empty source")
	}

	switch {
	case strings.HasPrefix(raw, "s3://"):
		u, err := url.Parse(raw)
		if err != nil {
			return Location{}, fmt.Errorf("parse %q: %w", raw, err)
		}
		if u.Host == "" {
			return Location{}, fmt.Errorf("s3 uri %q has no bucket", raw)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if key == "" && !allowEmptyKey {
			return Location{}, fmt.Errorf("s3 uri %q has no object key", raw)
		}
		return Location{Bucket: u.Host, Key: key}, nil
	case strings.HasPrefix(raw, "file://"):
		return Location{Path: strings.TrimPrefix(raw, "file://")}, nil
	case strings.Contains(raw, "://"):
		return Location{}, fmt.Errorf("unsupported source scheme in %q", raw)
	}
	return Location{Path: raw}, nil
}

// Store opens and writes locations. The S3 client is created on first use so
// purely local runs need no AWS configuration.
type Store struct {
	cfg S3Config

	mu sync.Mutex
	s3 *S3Store
}

func New(cfg S3Config) *Store {
	return &Store{cfg: cfg}
}

func (s *Store) bucket(ctx context.Context) (*S3Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.s3 != nil {
		return s.s3, nil
	}
	client, err := NewS3Store(ctx, s.cfg)
	if err != nil {
		return nil, err
	}
	s.s3 = client
	return client, nil
}

// Open returns a reader for uri. Callers must close it.
func (s *Store) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := ParseURI(uri, false)
	if err != nil {
		return nil, err
	}
	if !loc.IsS3() {
		f, err := os.Open(loc.Path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", loc.Path, ErrNotFound)
		}
		return f, err
	}

	client, err := s.bucket(ctx)
	if err != nil {
		return nil, err
	}
	return client.Get(ctx, loc.Bucket, loc.Key)
}

// Exists reports whether loc is present.
func (s *Store) Exists(ctx context.Context, loc Location) (bool, error) {
	if !loc.IsS3() {
		_, err := os.Stat(loc.Path)
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return err == nil, err
	}
	client, err := s.bucket(ctx)
	if err != nil {
		return false, err
	}
	return client.Exists(ctx, loc.Bucket, loc.Key)
}

// Write stores data at loc, creating parent directories for local paths.
func (s *Store) Write(ctx context.Context, loc Location, data []byte, contentType string) error {
	if !loc.IsS3() {
		if err := os.MkdirAll(filepath.Dir(loc.Path), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", loc.Path, err)
		}
		return os.WriteFile(loc.Path, data, 0o644)
	}
	client, err := s.bucket(ctx)
	if err != nil {
		return err
	}
	return client.Put(ctx, loc.Bucket, loc.Key, bytes.NewReader(data), contentType)
}
