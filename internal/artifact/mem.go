package artifact

import (
	"context"
	"sync"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
)

type MemStore struct {
	mu   sync.Mutex
	Data map[int64][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{
		Data: make(map[int64][]byte),
	}
}

func (s *MemStore) Persist(ctx context.Context, id int64, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Data[id] = append([]byte(nil), data...)
	return Key(id).String(), nil
}

func (s *MemStore) Exists(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.Data[id]
	return ok, nil
}

func (s *MemStore) Load(ctx context.Context, id int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.Data[id]
	if !ok {
		return nil, domain.ErrArtifactMissing
	}
	return append([]byte(nil), v...), nil
}

func (s *MemStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.Data, id)
	return nil
}
