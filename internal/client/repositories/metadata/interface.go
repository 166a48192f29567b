// Package metadata is the persistent key/value area of the client: tokens,
// the cached profile and small UI flags live here between runs.
package metadata

import (
	"context"

	"github.com/dmitrijs2005/innerwell/internal/dbx"
)

// Repository stores opaque values by key. Get returns (nil, nil) for a key
// that was never set.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error

	// WithDB returns a repository bound to db, typically a transaction
	// handle from dbx.WithTx.
	WithDB(db dbx.DBTX) Repository
}
