package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sangkips/popup-pos/internal/domain/entity"
	"github.com/sangkips/popup-pos/internal/domain/message"
	"github.com/sangkips/popup-pos/internal/domain/repository"
	"github.com/sangkips/popup-pos/internal/metrics"
	"github.com/sangkips/popup-pos/pkg/apperror"
	"github.com/sangkips/popup-pos/pkg/pagination"
)

// TransactionService forwards purchases to the backend and journals every attempt
type TransactionService struct {
	gateway repository.InventoryGateway
	journal repository.TransactionRepository
	logger  *slog.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(
	gateway repository.InventoryGateway,
	journal repository.TransactionRepository,
	logger *slog.Logger,
) *TransactionService {
	return &TransactionService{
		gateway: gateway,
		journal: journal,
		logger:  logger,
	}
}

// SubmitTransaction sends req unchanged. A journal write failure is logged and
// never blocks the submission.
func (s *TransactionService) SubmitTransaction(ctx context.Context, terminalID, key string, req *entity.TransactionRequest) (*entity.TransactionResult, error) {
	// Journal writes outlive a cancelled request.
	journalCtx := context.WithoutCancel(ctx)

	record := entity.NewTransactionRecord(terminalID, key, req)
	if err := s.journal.Create(journalCtx, record); err != nil {
		s.logger.WarnContext(ctx, "journal write failed", "record_id", record.ID, "error", err)
	}

	start := time.Now()
	result, err := s.gateway.SubmitTransaction(ctx, req, key)
	metrics.BackendDuration.WithLabelValues("transaction").Observe(time.Since(start).Seconds())

	if err != nil {
		if !apperror.IsAppError(err) {
			err = apperror.NewTransientError(message.TransactionFailed, err)
		}
		metrics.Transactions.WithLabelValues("failed").Inc()
		s.logger.WarnContext(ctx, "transaction failed",
			"terminal", terminalID,
			"idempotency_key", key,
			"total", req.TotalAmount,
			"error", err,
		)
		record.MarkFailed(err)
		s.updateJournal(journalCtx, record)
		return nil, err
	}

	metrics.Transactions.WithLabelValues("confirmed").Inc()
	s.logger.InfoContext(ctx, "transaction confirmed",
		"terminal", terminalID,
		"idempotency_key", key,
		"lines", len(req.Lines),
		"total", result.TotalPrice,
	)
	record.MarkConfirmed(result)
	s.updateJournal(journalCtx, record)
	return result, nil
}

// ListTransactions returns a page of the journal, newest first. An empty
// terminalID lists every terminal.
func (s *TransactionService) ListTransactions(ctx context.Context, terminalID string, params *pagination.PaginationParams) (*pagination.PaginatedResult[entity.TransactionRecord], error) {
	if params == nil {
		params = pagination.DefaultPagination()
	}
	params.Validate()

	records, total, err := s.journal.List(ctx, &repository.TransactionFilterParams{
		Pagination: params,
		TerminalID: terminalID,
	})
	if err != nil {
		return nil, apperror.ErrInternalServer
	}

	return pagination.NewPaginatedResult(records, pagination.NewPagination(params.Page, params.PerPage, total)), nil
}

func (s *TransactionService) updateJournal(ctx context.Context, record *entity.TransactionRecord) {
	if err := s.journal.Update(ctx, record); err != nil {
		s.logger.WarnContext(ctx, "journal update failed", "record_id", record.ID, "error", err)
	}
}
