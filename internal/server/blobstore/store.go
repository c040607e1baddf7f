// Package blobstore stores profile pictures in an S3-compatible bucket.
package blobstore

import (
	"context"
	"io"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/server/metrics"
)

// Store is the object storage used for attachments.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	// Locator returns the public locator recorded for key, "<bucket>/<key>".
	Locator(key string) string
}

type instrumented struct {
	Store
	rec metrics.Recorder
}

// Instrument reports Put and Delete latencies to rec.
func Instrument(s Store, rec metrics.Recorder) Store {
	if rec == nil {
		return s
	}
	return &instrumented{Store: s, rec: rec}
}

func (i *instrumented) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	start := time.Now()
	err := i.Store.Put(ctx, key, contentType, body, size)
	i.rec.ObserveDependency(metrics.KindS3, "put_object", time.Since(start), err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.Store.Delete(ctx, key)
	i.rec.ObserveDependency(metrics.KindS3, "delete_object", time.Since(start), err)
	return err
}
