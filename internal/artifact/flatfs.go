package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ipfs/go-datastore"
	flatfs "github.com/ipfs/go-ds-flatfs"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
)

// FlatStore keeps photos as files in a sharded directory.
type FlatStore struct {
	ds *flatfs.Datastore
}

func OpenFlatStore(dir string) (*FlatStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photos dir: %w", err)
	}
	ds, err := flatfs.CreateOrOpen(dir, flatfs.IPFS_DEF_SHARD, true)
	if err != nil {
		return nil, fmt.Errorf("open photos store: %w", err)
	}
	return &FlatStore{ds: ds}, nil
}

func (s *FlatStore) Persist(ctx context.Context, id int64, data []byte) (string, error) {
	key := Key(id)
	if err := s.ds.Put(ctx, key, data); err != nil {
		return "", err
	}
	return key.String(), nil
}

func (s *FlatStore) Exists(ctx context.Context, id int64) (bool, error) {
	return s.ds.Has(ctx, Key(id))
}

func (s *FlatStore) Load(ctx context.Context, id int64) ([]byte, error) {
	data, err := s.ds.Get(ctx, Key(id))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, domain.ErrArtifactMissing
	}
	return data, err
}

// does not error if the photo is already gone
func (s *FlatStore) Delete(ctx context.Context, id int64) error {
	err := s.ds.Delete(ctx, Key(id))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil
	}
	return err
}

func (s *FlatStore) Close() error {
	return s.ds.Close()
}
