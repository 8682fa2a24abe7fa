// Package memory holds process-local repositories used when no database is
// configured. State is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sangkips/popup-pos/internal/domain/entity"
	domainRepo "github.com/sangkips/popup-pos/internal/domain/repository"
	"github.com/sangkips/popup-pos/pkg/apperror"
)

type idempotencyRepository struct {
	mu   sync.RWMutex
	keys map[string]entity.IdempotencyKey
}

// NewIdempotencyRepository creates an in-memory idempotency store
func NewIdempotencyRepository() domainRepo.IdempotencyRepository {
	return &idempotencyRepository{keys: make(map[string]entity.IdempotencyKey)}
}

func idempotencyIndex(key, terminalID string) string {
	return terminalID + "\x00" + key
}

func (r *idempotencyRepository) GetByKey(ctx context.Context, key, terminalID string) (*entity.IdempotencyKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ikey, ok := r.keys[idempotencyIndex(key, terminalID)]
	if !ok {
		return nil, nil
	}
	return &ikey, nil
}

func (r *idempotencyRepository) Create(ctx context.Context, ikey *entity.IdempotencyKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := idempotencyIndex(ikey.Key, ikey.TerminalID)
	if existing, ok := r.keys[idx]; ok && !existing.IsExpired() {
		return apperror.NewConflictError("idempotency key already stored")
	}
	if ikey.CreatedAt.IsZero() {
		ikey.CreatedAt = time.Now()
	}
	r.keys[idx] = *ikey
	return nil
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for idx, ikey := range r.keys {
		if ikey.IsExpired() {
			delete(r.keys, idx)
		}
	}
	return nil
}
