// Package blob defines the object storage collaborator holding the large
// ceremony artifacts: contribution zkeys, verification transcripts,
// verification keys and verifier contracts, addressed by storage path.
package blob

import (
	"context"
)

// Store is the object storage surface the coordinator depends on. Workers
// move artifacts themselves; the coordinator only downloads finalization
// artifacts and deletes rejected candidate zkeys.
type Store interface {
	// Download copies the object at bucket/key into localPath.
	Download(ctx context.Context, bucket, key, localPath string) error
	// Delete removes the object at bucket/key.
	Delete(ctx context.Context, bucket, key string) error
}
