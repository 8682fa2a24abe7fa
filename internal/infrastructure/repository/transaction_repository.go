package repository

import (
	"context"

	"github.com/sangkips/popup-pos/internal/domain/entity"
	domainRepo "github.com/sangkips/popup-pos/internal/domain/repository"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a journal backed by PostgreSQL
func NewTransactionRepository(db *gorm.DB) domainRepo.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, record *entity.TransactionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *transactionRepository) Update(ctx context.Context, record *entity.TransactionRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *transactionRepository) List(ctx context.Context, params *domainRepo.TransactionFilterParams) ([]entity.TransactionRecord, int64, error) {
	var records []entity.TransactionRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.TransactionRecord{}).Scopes(TerminalScope(params.TerminalID))

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if params.Pagination != nil {
		query = query.Offset(params.Pagination.Offset()).Limit(params.Pagination.PerPage)
	}

	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
