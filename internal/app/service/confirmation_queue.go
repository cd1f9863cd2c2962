package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"sift_client/internal/app/port"
	"sift_client/internal/domain/entity"
	"sift_client/internal/pkg/metrics"
	"sift_client/internal/pkg/notify"
)

// Confirmation loop wait times.
const (
	unhealthyWait   = 100 * time.Millisecond
	outstandingWait = 100 * time.Millisecond
	idleWait        = time.Second
	errorWait       = 3 * time.Second
)

// ConfirmationQueueConfig holds the confirmation loop settings.
type ConfirmationQueueConfig struct {
	Timeout      time.Duration
	Retention    time.Duration
	MinerThreads int
}

// ConfirmationQueue drives submitted transactions to Confirmed or Failed and
// nudges a local miner while transactions are outstanding.
type ConfirmationQueue struct {
	node     port.Node
	healthy  func() bool
	registry *TransactionRegistry
	cfg      ConfirmationQueueConfig
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	logger   port.Logger
	now      func() time.Time

	mu    sync.Mutex
	queue []*entity.EnqueuedTransaction

	// processMu serializes ProcessOnce and guards minerStarted.
	processMu    sync.Mutex
	minerStarted bool
}

var _ port.TransactionQueue = (*ConfirmationQueue)(nil)

// NewConfirmationQueue creates a queue. healthy gates processing: while it
// reports false the loop idles. A nil healthy always processes.
func NewConfirmationQueue(
	node port.Node,
	healthy func() bool,
	cfg ConfirmationQueueConfig,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	l port.Logger,
) *ConfirmationQueue {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.MinerThreads <= 0 {
		cfg.MinerThreads = max(runtime.NumCPU()/2, 1)
	}
	if healthy == nil {
		healthy = func() bool { return true }
	}
	return &ConfirmationQueue{
		node:     node,
		healthy:  healthy,
		registry: NewTransactionRegistry(cfg.Retention),
		cfg:      cfg,
		notifier: notifier,
		metrics:  m,
		logger:   l,
		now:      time.Now,
	}
}

// Enqueue implements port.TransactionQueue. Enqueueing a hash that is already
// pending returns the existing record.
func (q *ConfirmationQueue) Enqueue(hash string) *entity.EnqueuedTransaction {
	tx, added := q.registry.Add(entity.NewEnqueuedTransaction(hash, q.now(), q.notifier))
	if !added {
		return tx
	}

	q.mu.Lock()
	q.queue = append(q.queue, tx)
	pending := len(q.queue)
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.PendingTransactions.Set(float64(pending))
	}
	q.logger.Info("Transaction enqueued pending receipt", "hash", hash)
	return tx
}

// Get implements port.TransactionQueue.
func (q *ConfirmationQueue) Get(hash string) (*entity.EnqueuedTransaction, bool) {
	return q.registry.Get(hash)
}

// Forget implements port.TransactionQueue.
func (q *ConfirmationQueue) Forget(hash string) error {
	return q.registry.Forget(hash)
}

// Transactions implements port.TransactionQueue.
func (q *ConfirmationQueue) Transactions() []*entity.EnqueuedTransaction {
	return q.registry.List()
}

// Pending returns the number of transactions awaiting a receipt.
func (q *ConfirmationQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Run processes the queue until ctx is cancelled.
func (q *ConfirmationQueue) Run(ctx context.Context) {
	q.logger.Info("Transaction confirmation queue started")
	for ctx.Err() == nil {
		wait := unhealthyWait
		if q.healthy() {
			remaining, err := q.ProcessOnce(ctx)
			switch {
			case err != nil:
				if ctx.Err() == nil {
					q.logger.Error("Unexpected error attempting to mine queue", "error", err)
				}
				wait = errorWait
			case remaining > 0:
				wait = outstandingWait
			default:
				wait = idleWait
			}
		}
		if !sleepContext(ctx, wait) {
			break
		}
	}
	q.logger.Info("Transaction confirmation queue stopped")
}

// ProcessOnce drains the queue, looks up a receipt for every drained
// transaction and requeues those still pending. It returns how many
// transactions remain queued, and an error when every lookup of a non-empty
// batch failed.
func (q *ConfirmationQueue) ProcessOnce(ctx context.Context) (int, error) {
	q.processMu.Lock()
	defer q.processMu.Unlock()

	q.mu.Lock()
	batch := q.queue
	q.queue = nil
	q.mu.Unlock()

	if len(batch) > 0 {
		q.ensureMiner(ctx)
	}

	var lookupErrs []error
	stillPending := make([]*entity.EnqueuedTransaction, 0, len(batch))
	for _, tx := range batch {
		if err := q.checkReceipt(ctx, tx); err != nil {
			q.logger.Error("Failed to fetch transaction receipt", "hash", tx.TransactionHash(), "error", err)
			lookupErrs = append(lookupErrs, err)
		}
		if !tx.Completed() {
			stillPending = append(stillPending, tx)
		}
	}

	q.mu.Lock()
	q.queue = append(q.queue, stillPending...)
	remaining := len(q.queue)
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.PendingTransactions.Set(float64(remaining))
	}
	if remaining == 0 && q.minerStarted {
		q.stopMiner(ctx)
	}

	if len(batch) > 0 && len(lookupErrs) == len(batch) {
		return remaining, fmt.Errorf("all %d receipt lookups failed: %w", len(batch), errors.Join(lookupErrs...))
	}
	return remaining, nil
}

// checkReceipt moves tx to a terminal state when its receipt is available or
// it has waited longer than the timeout. Lookup errors leave it pending.
func (q *ConfirmationQueue) checkReceipt(ctx context.Context, tx *entity.EnqueuedTransaction) error {
	receipt, err := q.node.TransactionReceipt(ctx, tx.TransactionHash())
	if err != nil {
		return err
	}

	switch {
	case receipt != nil:
		if tx.MarkSuccess(receipt) {
			q.completed(tx)
			q.logger.Info("Transaction mined", "hash", tx.TransactionHash(), "block", receipt.BlockNumber, "status", receipt.Status)
		}
	case tx.Age(q.now()) > q.cfg.Timeout:
		msg := fmt.Sprintf("Transaction did not mine within %s, please check your full Ethereum wallet for more information", formatTimeout(q.cfg.Timeout))
		if tx.MarkFailed(msg) {
			q.completed(tx)
			q.logger.Warn("Transaction timed out", "hash", tx.TransactionHash(), "age", tx.Age(q.now()))
		}
	}
	return nil
}

func (q *ConfirmationQueue) completed(tx *entity.EnqueuedTransaction) {
	q.registry.Completed(tx)
	if q.metrics != nil {
		q.metrics.TransactionsCompleted.WithLabelValues(string(tx.State())).Inc()
	}
}

// ensureMiner starts the local miner when the node is not mining. Failures are logged only.
func (q *ConfirmationQueue) ensureMiner(ctx context.Context) {
	mining, err := q.node.Mining(ctx)
	if err != nil {
		q.logger.Warn("Unable to query mining state", "error", err)
		return
	}
	if mining {
		return
	}

	q.logger.Debug("Starting miner to mine queued transactions", "threads", q.cfg.MinerThreads)
	if err := q.node.StartMiner(ctx, q.cfg.MinerThreads); err != nil {
		q.minerToggle("start", "failure")
		q.logger.Error("Failed to start mining", "error", err)
		return
	}
	q.minerToggle("start", "success")
	q.minerStarted = true
	q.logger.Info("Started to mine for transactions", "threads", q.cfg.MinerThreads)
}

// stopMiner stops a miner this queue started. Failures are logged only.
func (q *ConfirmationQueue) stopMiner(ctx context.Context) {
	q.minerStarted = false
	q.logger.Debug("No transactions to mine and we started the miner, stopping it")

	mining, err := q.node.Mining(ctx)
	if err != nil {
		q.logger.Warn("Unable to query mining state", "error", err)
		return
	}
	if !mining {
		return
	}
	if err := q.node.StopMiner(ctx); err != nil {
		q.minerToggle("stop", "failure")
		q.logger.Error("Failed to stop mining", "error", err)
		return
	}
	q.minerToggle("stop", "success")
	q.logger.Info("Miner stopped successfully")
}

func (q *ConfirmationQueue) minerToggle(action, result string) {
	if q.metrics != nil {
		q.metrics.MinerToggles.WithLabelValues(action, result).Inc()
	}
}

func formatTimeout(d time.Duration) string {
	if d%time.Minute == 0 {
		n := int(d / time.Minute)
		if n == 1 {
			return "one minute"
		}
		return fmt.Sprintf("%d minutes", n)
	}
	return d.String()
}
