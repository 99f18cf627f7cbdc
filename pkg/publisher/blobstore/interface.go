package blobstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrPreconditionFailed = errors.New("generation precondition failed")
)

// Generation is the opaque version of a stored object. Zero stands for "no
// live object", so a zero precondition only succeeds when creating.
type Generation int64

// Blob describes one stored object.
type Blob struct {
	Bucket       string
	Name         string
	Generation   Generation
	Size         int64
	Updated      time.Time
	CacheControl string
	PublicURL    string
}

// Store defines the object store operations the publisher depends on.
type Store interface {
	// Bucket returns the bucket this store reads and writes
	Bucket() string

	// Exists reports whether an object lives at path
	Exists(ctx context.Context, path string) (bool, error)

	// Stat returns the attributes of the object at path
	Stat(ctx context.Context, path string) (Blob, error)

	// Download writes the object at path into the local file dst
	Download(ctx context.Context, path, dst string, opts ...Option) error

	// Upload stores the local file src at path
	Upload(ctx context.Context, path, src string, opts ...Option) (Blob, error)

	// List returns every object whose name starts with prefix
	List(ctx context.Context, prefix string) ([]Blob, error)

	// Delete removes an object
	Delete(ctx context.Context, blob Blob) error
}

// Options tunes a single download or upload.
type Options struct {
	IfGenerationMatch *Generation
	CacheControl      string
}

type Option func(*Options)

// IfGenerationMatch makes the operation conditional on the object being at
// generation g. Use zero to require that no object exists yet.
func IfGenerationMatch(g Generation) Option {
	return func(o *Options) {
		o.IfGenerationMatch = &g
	}
}

// WithCacheControl sets the Cache-Control metadata of an uploaded object.
func WithCacheControl(value string) Option {
	return func(o *Options) {
		o.CacheControl = value
	}
}

func applyOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Ensure *Badger implements Store interface
var _ Store = (*Badger)(nil)
