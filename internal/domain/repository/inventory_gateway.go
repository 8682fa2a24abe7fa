package repository

import (
	"context"

	"github.com/sangkips/popup-pos/internal/domain/entity"
)

// InventoryGateway is the external inventory/transaction backend.
//
// LookupProduct returns an apperror of kind not_found for an unknown code and
// kind transient for every other failure. SubmitTransaction forwards key as an
// Idempotency-Key when non-empty.
type InventoryGateway interface {
	LookupProduct(ctx context.Context, code string) (*entity.Product, error)
	SubmitTransaction(ctx context.Context, req *entity.TransactionRequest, key string) (*entity.TransactionResult, error)
}
