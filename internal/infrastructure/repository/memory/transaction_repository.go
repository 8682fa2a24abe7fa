package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sangkips/popup-pos/internal/domain/entity"
	domainRepo "github.com/sangkips/popup-pos/internal/domain/repository"
	"github.com/sangkips/popup-pos/pkg/apperror"
)

// maxJournal bounds the in-memory journal; the oldest records are evicted first.
const maxJournal = 1000

type transactionRepository struct {
	mu      sync.RWMutex
	records []entity.TransactionRecord
}

// NewTransactionRepository creates an in-memory submission journal
func NewTransactionRepository() domainRepo.TransactionRepository {
	return &transactionRepository{}
}

func (r *transactionRepository) Create(ctx context.Context, record *entity.TransactionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, *record)
	if len(r.records) > maxJournal {
		r.records = r.records[len(r.records)-maxJournal:]
	}
	return nil
}

func (r *transactionRepository) Update(ctx context.Context, record *entity.TransactionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.records {
		if r.records[i].ID == record.ID {
			r.records[i] = *record
			return nil
		}
	}
	return apperror.NewNotFoundError("Transaction record")
}

func (r *transactionRepository) List(ctx context.Context, params *domainRepo.TransactionFilterParams) ([]entity.TransactionRecord, int64, error) {
	r.mu.RLock()
	matched := make([]entity.TransactionRecord, 0, len(r.records))
	for _, rec := range r.records {
		if params.TerminalID == "" || rec.TerminalID == params.TerminalID {
			matched = append(matched, rec)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if params.Pagination == nil {
		return matched, total, nil
	}

	start := params.Pagination.Offset()
	if start >= len(matched) {
		return []entity.TransactionRecord{}, total, nil
	}
	end := start + params.Pagination.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}
