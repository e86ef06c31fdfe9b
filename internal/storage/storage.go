// Package storage is the object store for archived reconciliation reports:
// local disk for development, S3 in production.
package storage

import (
	"context"
	"io"
)

type PutInput struct {
	// Key is the object key relative to the store root, e.g.
	// "reconciliation/2026-08-23/report.json".
	Key         string
	ContentType string
}

type PutResult struct {
	Key string
	URL string
}

type Storage interface {
	Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error)
	Delete(ctx context.Context, key string) error
}
