package ports

import (
	"context"
	"io"
)

// ObjectStorePort lists and reads objects of a bucket.
type ObjectStorePort interface {
	List(ctx context.Context, bucket string, prefix string) ([]string, error)
	Get(ctx context.Context, bucket string, key string) (io.ReadCloser, error)
}
