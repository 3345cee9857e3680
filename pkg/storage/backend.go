// Package storage writes command output to files or object storage.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// LocationConsole is the --to value meaning "print to the terminal".
const LocationConsole = "console"

// BlobStore defines the interface for export destinations.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Target is a resolved export location.
type Target struct {
	Store BlobStore
	Key   string
	// Display is how the location is reported back to the user.
	Display string
}

// Write stores data at the target.
func (t Target) Write(ctx context.Context, data []byte) error {
	return t.Store.Put(ctx, t.Key, data)
}

// Read loads the data stored at the target.
func (t Target) Read(ctx context.Context) ([]byte, error) {
	return t.Store.Get(ctx, t.Key)
}

// S3Factory builds an S3 store for a bucket. It is only called for s3://
// locations so that a missing AWS configuration does not break file exports.
type S3Factory func(ctx context.Context, bucket string) (BlobStore, error)

// Resolve maps an s3://bucket/key location or a file path to a Target.
// The console location is handled by callers and rejected here.
func Resolve(ctx context.Context, location string, newS3 S3Factory) (Target, error) {
	switch {
	case location == "" || location == LocationConsole:
		return Target{}, fmt.Errorf("%q is not a storage location", location)

	case strings.HasPrefix(location, "s3://"):
		u, err := url.Parse(location)
		if err != nil {
			return Target{}, fmt.Errorf("invalid s3 url: %w", err)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Target{}, fmt.Errorf("invalid s3 url %q, expected s3://bucket/key", location)
		}
		if newS3 == nil {
			return Target{}, fmt.Errorf("s3 export is not configured")
		}
		store, err := newS3(ctx, u.Host)
		if err != nil {
			return Target{}, err
		}
		return Target{Store: store, Key: key, Display: location}, nil

	default:
		return Target{Store: NewLocalStore(""), Key: location, Display: location}, nil
	}
}
