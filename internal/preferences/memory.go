package preferences

import (
	"context"
	"sync"

	"dictation/internal/models"
)

// MemoryRepository keeps preferences in process memory
type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]models.Preferences
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]models.Preferences)}
}

func (r *MemoryRepository) Load(_ context.Context, clientID string) (models.Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefs, ok := r.items[clientID]
	if !ok {
		return models.Preferences{}, ErrNotFound
	}
	return prefs.Clone(), nil
}

func (r *MemoryRepository) Save(_ context.Context, clientID string, prefs models.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[clientID] = prefs.Clone()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, clientID)
	return nil
}
