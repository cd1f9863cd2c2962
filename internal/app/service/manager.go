package service

import (
	"context"
	"fmt"

	"sift_client/internal/app/port"
	"sift_client/internal/infrastructure/abiloader"
	"sift_client/internal/infrastructure/configloader"
	"sift_client/internal/infrastructure/contract"
	"sift_client/internal/pkg/metrics"
	"sift_client/internal/pkg/notify"

	"golang.org/x/sync/errgroup"
)

// NodeClient is a node that can also execute contract calls.
type NodeClient interface {
	port.Node
	port.ContractCaller
}

// Manager owns the synchronizer, the confirmation queue and the purchase orchestrator.
type Manager struct {
	synchronizer *Synchronizer
	queue        *ConfirmationQueue
	purchases    *PurchaseOrchestrator
	notifier     *notify.Notifier
	logger       port.Logger
}

// NewManager wires the core against node. It fails if either contract ABI cannot be loaded.
func NewManager(
	cfg *configloader.Config,
	node NodeClient,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	l port.Logger,
) (*Manager, error) {
	icoABI, err := abiloader.Load(abiloader.IcoPhaseManagement, cfg.Contracts.Ico.ABIFile)
	if err != nil {
		return nil, err
	}
	if err := abiloader.MustHaveMethods(icoABI, abiloader.IcoPhaseManagement,
		"contractVersion", "icoPhase", "icoAbandoned", "icoStartTime", "icoEndTime"); err != nil {
		return nil, err
	}
	tokenABI, err := abiloader.Load(abiloader.SmartInvestmentFundToken, cfg.Contracts.Token.ABIFile)
	if err != nil {
		return nil, err
	}
	if err := abiloader.MustHaveMethods(tokenABI, abiloader.SmartInvestmentFundToken,
		"contractVersion", "totalSupply", "balanceOf"); err != nil {
		return nil, err
	}

	contracts := contract.NewSiftContracts(
		contract.NewBinding(abiloader.IcoPhaseManagement, icoABI, cfg.Contracts.Ico.Address, node),
		contract.NewBinding(abiloader.SmartInvestmentFundToken, tokenABI, cfg.Contracts.Token.Address, node),
	)

	synchronizer := NewSynchronizer(node, contracts, SynchronizerConfig{
		PollInterval:          cfg.PollInterval(),
		ContractCheckInterval: cfg.ContractCheckInterval(),
		BalanceConcurrency:    cfg.Synchronizer.BalanceConcurrency,
		IcoAddress:            cfg.Contracts.Ico.Address,
		ExpectedIcoVersion:    cfg.IcoContractVersion(),
		ExpectedTokenVersion:  cfg.TokenContractVersion(),
	}, notifier, m, l)

	queue := NewConfirmationQueue(node, synchronizer.ChainStatus().LastChecksSuccessful, ConfirmationQueueConfig{
		Timeout:      cfg.ConfirmationTimeout(),
		Retention:    cfg.Retention(),
		MinerThreads: cfg.Confirmation.MinerThreads,
	}, notifier, m, l)

	purchases := NewPurchaseOrchestrator(node, synchronizer, queue, PurchaseConfig{
		IcoAddress:       cfg.Contracts.Ico.Address,
		WeiPerToken:      cfg.WeiPerToken(),
		MaxGasMultiplier: cfg.Purchase.MaxGasMultiplier,
		UnlockDuration:   cfg.UnlockDuration(),
	}, m, l)

	l.Info("Ethereum manager initialised",
		"ico_contract", cfg.Contracts.Ico.Address,
		"token_contract", cfg.Contracts.Token.Address)

	return &Manager{
		synchronizer: synchronizer,
		queue:        queue,
		purchases:    purchases,
		notifier:     notifier,
		logger:       l,
	}, nil
}

// ChainState returns the synchronized account table and chain status.
func (m *Manager) ChainState() port.ChainState {
	return m.synchronizer
}

// Transactions returns the confirmation queue.
func (m *Manager) Transactions() port.TransactionQueue {
	return m.queue
}

// Purchases returns the purchase orchestrator.
func (m *Manager) Purchases() port.PurchaseService {
	return m.purchases
}

// Notifier returns the change feed shared by all observable state.
func (m *Manager) Notifier() *notify.Notifier {
	return m.notifier
}

// Run runs the synchronizer and the confirmation queue until ctx is
// cancelled and returns once both loops have exited.
func (m *Manager) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m.synchronizer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		m.queue.Run(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("manager stopped: %w", err)
	}
	m.logger.Info("Ethereum manager stopped")
	return nil
}
