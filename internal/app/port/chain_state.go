package port

import (
	"context"
	"math/big"

	"sift_client/internal/domain/entity"
)

// ChainState exposes the synchronized account table and chain status.
type ChainState interface {
	Status() entity.ChainStatusSnapshot
	Accounts() []entity.AccountSnapshot
	Account(address string) (entity.AccountSnapshot, bool)
}

// TransactionQueue tracks submitted transactions until they are mined.
type TransactionQueue interface {
	// Enqueue registers hash and returns its pending record without blocking.
	Enqueue(hash string) *entity.EnqueuedTransaction
	Get(hash string) (*entity.EnqueuedTransaction, bool)
	// Forget drops a completed transaction the caller no longer needs to observe.
	Forget(hash string) error
	Transactions() []*entity.EnqueuedTransaction
}

// PurchaseService validates and submits token purchases.
type PurchaseService interface {
	EstimateGasCost(ctx context.Context, from, to string, amount *big.Int) (entity.GasEstimate, error)
	Purchase(ctx context.Context, req entity.PurchaseRequest, confirmer Confirmer) entity.PurchaseResult
	// MaximumPurchase returns the funds-adjusted number of tokens address can buy.
	MaximumPurchase(address string) (uint64, bool)
}
