// Package db defines the ability to create the ceremony document database
// used by the coordinator node.
package db

import (
	"context"

	"github.com/cryptocole01/p0tion/coordinator/db/kv"
)

// NewDB initializes a new DB.
func NewDB(ctx context.Context, dirPath string, opts ...kv.StoreOption) (Database, error) {
	return kv.NewKVStore(ctx, dirPath, opts...)
}
