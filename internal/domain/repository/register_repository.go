package repository

import (
	"context"
	"time"

	"github.com/sangkips/popup-pos/internal/domain/entity"
)

// RegisterSessionRepository holds live purchase-page sessions
type RegisterSessionRepository interface {
	Create(ctx context.Context, session *entity.RegisterSession) error
	// GetByID returns nil, nil when the session does not exist
	GetByID(ctx context.Context, id string) (*entity.RegisterSession, error)
	Delete(ctx context.Context, id string) error
	// DeleteIdle removes sessions not updated since cutoff and returns how many
	DeleteIdle(ctx context.Context, cutoff time.Time) (int, error)
}
