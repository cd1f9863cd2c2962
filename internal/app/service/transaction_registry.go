package service

import (
	"errors"
	"sort"
	"strings"
	"time"

	"sift_client/internal/domain/entity"

	"github.com/patrickmn/go-cache"
)

var (
	// ErrUnknownTransaction is returned for a hash that was never enqueued or already expired.
	ErrUnknownTransaction = errors.New("unknown transaction")
	// ErrTransactionPending is returned when forgetting a transaction that is still awaiting a receipt.
	ErrTransactionPending = errors.New("transaction is still pending")
)

// TransactionRegistry keeps every enqueued transaction addressable by hash.
// Pending entries never expire; completed ones expire after the retention window.
type TransactionRegistry struct {
	items     *cache.Cache
	retention time.Duration
}

// NewTransactionRegistry creates a registry that drops completed transactions after retention.
func NewTransactionRegistry(retention time.Duration) *TransactionRegistry {
	if retention <= 0 {
		retention = time.Hour
	}
	return &TransactionRegistry{
		items:     cache.New(retention, retention/2),
		retention: retention,
	}
}

func registryKey(hash string) string {
	return strings.ToLower(hash)
}

// Add registers tx. If a pending transaction with the same hash exists it is
// returned instead and tx is discarded.
func (r *TransactionRegistry) Add(tx *entity.EnqueuedTransaction) (*entity.EnqueuedTransaction, bool) {
	key := registryKey(tx.TransactionHash())
	if err := r.items.Add(key, tx, cache.NoExpiration); err != nil {
		if existing, ok := r.Get(tx.TransactionHash()); ok && !existing.Completed() {
			return existing, false
		}
		r.items.Set(key, tx, cache.NoExpiration)
	}
	return tx, true
}

// Completed starts the retention window of a finished transaction.
func (r *TransactionRegistry) Completed(tx *entity.EnqueuedTransaction) {
	key := registryKey(tx.TransactionHash())
	if current, ok := r.items.Get(key); ok && current == tx {
		r.items.Set(key, tx, r.retention)
	}
}

// Get looks a transaction up by hash.
func (r *TransactionRegistry) Get(hash string) (*entity.EnqueuedTransaction, bool) {
	v, ok := r.items.Get(registryKey(hash))
	if !ok {
		return nil, false
	}
	return v.(*entity.EnqueuedTransaction), true
}

// Forget removes a completed transaction.
func (r *TransactionRegistry) Forget(hash string) error {
	tx, ok := r.Get(hash)
	if !ok {
		return ErrUnknownTransaction
	}
	if !tx.Completed() {
		return ErrTransactionPending
	}
	r.items.Delete(registryKey(hash))
	return nil
}

// List returns every live transaction, oldest first.
func (r *TransactionRegistry) List() []*entity.EnqueuedTransaction {
	items := r.items.Items()
	out := make([]*entity.EnqueuedTransaction, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(*entity.EnqueuedTransaction))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Enqueued().Before(out[j].Enqueued())
	})
	return out
}
