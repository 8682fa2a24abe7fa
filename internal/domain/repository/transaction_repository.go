package repository

import (
	"context"

	"github.com/sangkips/popup-pos/internal/domain/entity"
	"github.com/sangkips/popup-pos/pkg/pagination"
)

// TransactionRepository is the submission journal
type TransactionRepository interface {
	Create(ctx context.Context, record *entity.TransactionRecord) error
	Update(ctx context.Context, record *entity.TransactionRecord) error
	List(ctx context.Context, params *TransactionFilterParams) ([]entity.TransactionRecord, int64, error)
}

// TransactionFilterParams contains filtering parameters for journal queries
type TransactionFilterParams struct {
	Pagination *pagination.PaginationParams
	TerminalID string
}
