package artifact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
)

func testStoreBasics(t *testing.T, s Store) {
	assert := assert.New(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, 1)
	assert.NoError(err)
	assert.False(ok)

	_, err = s.Load(ctx, 1)
	assert.ErrorIs(err, domain.ErrArtifactMissing)

	ref, err := s.Persist(ctx, 1, []byte("jpeg"))
	assert.NoError(err)
	assert.Equal("/PHOTO-1", ref)

	ok, err = s.Exists(ctx, 1)
	assert.NoError(err)
	assert.True(ok)

	data, err := s.Load(ctx, 1)
	assert.NoError(err)
	assert.Equal([]byte("jpeg"), data)

	// other ids are independent
	ok, err = s.Exists(ctx, 12)
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(s.Delete(ctx, 1))
	assert.NoError(s.Delete(ctx, 1))

	ok, err = s.Exists(ctx, 1)
	assert.NoError(err)
	assert.False(ok)
}

func TestMemStore(t *testing.T) {
	testStoreBasics(t, NewMemStore())
}

func TestFlatStore(t *testing.T) {
	s, err := OpenFlatStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	testStoreBasics(t, s)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "/PHOTO-42", Key(42).String())
}
