package storage

import (
	"context"
)

// Object is a single document written to remote storage.
type Object struct {
	Bucket      string
	Key         string
	Body        []byte
	ContentType string
}

// Service writes documents to remote object storage.
type Service interface {
	// PutObject stores obj and returns its s3:// location.
	PutObject(ctx context.Context, obj Object) (string, error)
}
