package artifact

import (
	"context"
	"fmt"

	"github.com/ipfs/go-datastore"
)

// Store keeps approved photos between approval and publication. Keys are
// derived from the submission id, so each submission owns exactly one slot.
type Store interface {
	Persist(ctx context.Context, id int64, data []byte) (string, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Load(ctx context.Context, id int64) ([]byte, error)
	Delete(ctx context.Context, id int64) error
}

// Key is the datastore key for a submission's photo.
func Key(id int64) datastore.Key {
	return datastore.NewKey(fmt.Sprintf("PHOTO-%d", id))
}
