package entity

import (
	"sync"
	"time"

	"sift_client/internal/pkg/notify"

	"github.com/ethereum/go-ethereum/core/types"
)

const transactionSource = "transaction"

// TransactionState is the confirmation state of an enqueued transaction.
type TransactionState string

const (
	TransactionPending   TransactionState = "pending"
	TransactionConfirmed TransactionState = "confirmed"
	TransactionFailed    TransactionState = "failed"
)

// EnqueuedTransaction tracks a submitted transaction until it is mined or times out.
// Once completed it never changes again.
type EnqueuedTransaction struct {
	mu           sync.RWMutex
	hash         string
	enqueued     time.Time
	completed    bool
	successful   bool
	receipt      *types.Receipt
	errorDetails string
	notifier     *notify.Notifier
}

// EnqueuedTransactionSnapshot is a read-only copy of an EnqueuedTransaction.
type EnqueuedTransactionSnapshot struct {
	TransactionHash string           `json:"transactionHash"`
	State           TransactionState `json:"state"`
	Enqueued        time.Time        `json:"enqueued"`
	Completed       bool             `json:"completed"`
	WasSuccessful   bool             `json:"wasSuccessful"`
	BlockNumber     uint64           `json:"blockNumber,omitempty"`
	ReceiptStatus   *uint64          `json:"receiptStatus,omitempty"`
	ErrorDetails    string           `json:"errorDetails,omitempty"`
}

// NewEnqueuedTransaction creates a pending record.
func NewEnqueuedTransaction(hash string, enqueued time.Time, notifier *notify.Notifier) *EnqueuedTransaction {
	return &EnqueuedTransaction{hash: hash, enqueued: enqueued, notifier: notifier}
}

// TransactionHash returns the transaction hash.
func (t *EnqueuedTransaction) TransactionHash() string {
	return t.hash
}

// Enqueued returns when the transaction was enqueued.
func (t *EnqueuedTransaction) Enqueued() time.Time {
	return t.enqueued
}

// Age returns how long the transaction has been waiting as of now.
func (t *EnqueuedTransaction) Age(now time.Time) time.Duration {
	return now.Sub(t.enqueued)
}

// Completed reports whether the transaction reached a terminal state.
func (t *EnqueuedTransaction) Completed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.completed
}

// WasSuccessful reports whether a receipt was obtained.
func (t *EnqueuedTransaction) WasSuccessful() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.successful
}

// Receipt returns the receipt of a confirmed transaction.
func (t *EnqueuedTransaction) Receipt() *types.Receipt {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.receipt
}

// ErrorDetails returns why a failed transaction failed.
func (t *EnqueuedTransaction) ErrorDetails() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.errorDetails
}

// State returns the current confirmation state.
func (t *EnqueuedTransaction) State() TransactionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stateLocked()
}

func (t *EnqueuedTransaction) stateLocked() TransactionState {
	switch {
	case !t.completed:
		return TransactionPending
	case t.successful:
		return TransactionConfirmed
	default:
		return TransactionFailed
	}
}

// MarkSuccess moves a pending transaction to Confirmed. It returns false if
// the transaction was already completed.
func (t *EnqueuedTransaction) MarkSuccess(receipt *types.Receipt) bool {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return false
	}
	t.successful = true
	t.receipt = receipt
	t.completed = true
	t.mu.Unlock()

	t.notifier.Notify(transactionSource, t.hash, "WasSuccessful", "Completed", "Receipt")
	return true
}

// MarkFailed moves a pending transaction to Failed. It returns false if the
// transaction was already completed.
func (t *EnqueuedTransaction) MarkFailed(errorDetails string) bool {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return false
	}
	t.successful = false
	t.errorDetails = errorDetails
	t.completed = true
	t.mu.Unlock()

	t.notifier.Notify(transactionSource, t.hash, "WasSuccessful", "Completed", "ErrorDetails")
	return true
}

// Snapshot returns a consistent copy of the transaction.
func (t *EnqueuedTransaction) Snapshot() EnqueuedTransactionSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := EnqueuedTransactionSnapshot{
		TransactionHash: t.hash,
		State:           t.stateLocked(),
		Enqueued:        t.enqueued,
		Completed:       t.completed,
		WasSuccessful:   t.successful,
		ErrorDetails:    t.errorDetails,
	}
	if t.receipt != nil {
		status := t.receipt.Status
		snap.ReceiptStatus = &status
		if t.receipt.BlockNumber != nil {
			snap.BlockNumber = t.receipt.BlockNumber.Uint64()
		}
	}
	return snap
}
