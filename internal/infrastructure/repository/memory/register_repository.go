package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sangkips/popup-pos/internal/domain/entity"
	domainRepo "github.com/sangkips/popup-pos/internal/domain/repository"
	"github.com/sangkips/popup-pos/pkg/apperror"
)

type registerSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entity.RegisterSession
}

// NewRegisterSessionRepository creates the live register session store
func NewRegisterSessionRepository() domainRepo.RegisterSessionRepository {
	return &registerSessionRepository{sessions: make(map[string]*entity.RegisterSession)}
}

func (r *registerSessionRepository) Create(ctx context.Context, session *entity.RegisterSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; ok {
		return apperror.NewConflictError("register session already exists")
	}
	r.sessions[session.ID] = session
	return nil
}

func (r *registerSessionRepository) GetByID(ctx context.Context, id string) (*entity.RegisterSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id], nil
}

func (r *registerSessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// DeleteIdle skips sessions that are locked, since a locked session is in use.
func (r *registerSessionRepository) DeleteIdle(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if !s.TryLock() {
			continue
		}
		idle := s.UpdatedAt.Before(cutoff) && !s.Busy()
		s.Unlock()
		if idle {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}
