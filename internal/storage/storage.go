// Package storage abstracts the object store that holds published dataset files.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	// ErrNotModified is returned by a conditional Open when the object still
	// carries the caller's ETag.
	ErrNotModified = errors.New("object not modified")
)

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

type PutOptions struct {
	// ContentType defaults to ContentTypeFor(key).
	ContentType string
}

// Object is an open object body together with the metadata it was served with.
type Object struct {
	io.ReadCloser
	Info ObjectInfo
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	// Open streams key. A non-empty ifNoneMatch makes the read conditional:
	// an object whose ETag equals it yields ErrNotModified.
	Open(ctx context.Context, key, ifNoneMatch string) (*Object, error)
}

// ContentTypeFor returns the media type stored with a dataset file.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
