package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the object store bucket files are deposited in.
const DefaultBucket = "guarantee-csv"

// objectReader is the subset of jetstream.ObjectStore the source uses.
type objectReader interface {
	Get(ctx context.Context, name string, opts ...jetstream.GetObjectOpt) (jetstream.ObjectResult, error)
	List(ctx context.Context, opts ...jetstream.ListObjectsOpt) ([]*jetstream.ObjectInfo, error)
}

// ObjectStore reads objects from a JetStream object store bucket.
type ObjectStore struct {
	store  objectReader
	bucket string
}

// OpenBucket binds to bucket, creating it when it does not exist yet.
func OpenBucket(ctx context.Context, js jetstream.JetStream, bucket string) (*ObjectStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	store, err := js.ObjectStore(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		store, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "guarantee instrument CSV drop",
		})
	}
	if err != nil {
		return nil, fmt.Errorf("object store %s: %w", bucket, err)
	}
	return &ObjectStore{store: store, bucket: bucket}, nil
}

// Bucket returns the bucket name.
func (s *ObjectStore) Bucket() string { return s.bucket }

// List returns the names of all live objects, sorted.
func (s *ObjectStore) List(ctx context.Context) ([]string, error) {
	infos, err := s.store.List(ctx)
	if errors.Is(err, jetstream.ErrNoObjectsFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.bucket, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.Deleted {
			continue
		}
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Open streams one object. The caller must close the returned reader.
// Chunks are fetched lazily, so a broken connection surfaces as a read error
// partway through the file.
func (s *ObjectStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", s.bucket, key, err)
	}
	return obj, nil
}
