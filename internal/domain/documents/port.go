package documents

import (
	"context"
	"io"
	"time"
)

// ArtifactStore port (persistence of rendered documents).
// The stored name is the index: every method except Put works from the
// identifier or stored name alone.
type ArtifactStore interface {
	Put(ctx context.Context, name Name, data []byte, createdAt time.Time) (Artifact, error)
	Resolve(ctx context.Context, id string) (Artifact, error)
	Stat(ctx context.Context, storedName string) (Artifact, error)
	Open(ctx context.Context, a Artifact) (io.ReadCloser, error)
	Evict(ctx context.Context, id string) error
	Sweep(ctx context.Context, now time.Time, ttl time.Duration) (int, error)
	Writable(ctx context.Context) error
}

// Index is an auxiliary identifier -> stored name lookup.
// It is an optimisation only; entries are always re-checked against the store.
type Index interface {
	Remember(ctx context.Context, id, storedName string, ttl time.Duration) error
	Lookup(ctx context.Context, id string) (string, bool)
	Forget(ctx context.Context, id string) error
}

// Encoder turns a rendered document model into container bytes.
type Encoder interface {
	Encode(doc *Document) ([]byte, error)
}
