// Package objstore is a key to blob store. Board documents live here as JSON.
package objstore

import (
	"context"
	"errors"
)

var ErrNotExist = errors.New("object does not exist")

// Store reads and writes whole objects by key. Delete of a missing key is not
// an error. List returns keys with the given prefix in lexical order.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
}
