package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"sift_client/internal/app/port"
	"sift_client/internal/domain/entity"
	"sift_client/internal/pkg/metrics"
	"sift_client/internal/pkg/notify"
	"sift_client/internal/pkg/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrContractMismatch is reported when a deployed contract version differs from the expected one.
var ErrContractMismatch = errors.New("contract version mismatch")

// Address used as the sender when estimating the reference gas cost.
const referenceGasSender = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// referenceGasValue is the 1 ETH transfer priced for the default gas info.
var referenceGasValue = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// SynchronizerConfig holds the poll loop settings.
type SynchronizerConfig struct {
	PollInterval          time.Duration
	ContractCheckInterval time.Duration
	BalanceConcurrency    int
	IcoAddress            string
	ExpectedIcoVersion    *big.Int
	ExpectedTokenVersion  *big.Int
}

// Synchronizer keeps the account table and chain status in line with the node.
type Synchronizer struct {
	node      port.Node
	contracts port.ContractReader
	gas       *GasEstimator
	cfg       SynchronizerConfig
	status    *entity.ChainStatus
	accounts  *accountTable
	notifier  *notify.Notifier
	metrics   *metrics.Metrics
	logger    port.Logger
	now       func() time.Time

	// pollMu serializes PollOnce; the fields below it belong to the poll goroutine.
	pollMu            sync.Mutex
	nextContractCheck time.Time
	connectedOnce     bool
}

var _ port.ChainState = (*Synchronizer)(nil)

// NewSynchronizer creates a Synchronizer. Observable changes are published on notifier.
func NewSynchronizer(
	node port.Node,
	contracts port.ContractReader,
	cfg SynchronizerConfig,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	l port.Logger,
) *Synchronizer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.ContractCheckInterval <= 0 {
		cfg.ContractCheckInterval = 10 * time.Second
	}
	if cfg.BalanceConcurrency <= 0 {
		cfg.BalanceConcurrency = 1
	}
	return &Synchronizer{
		node:      node,
		contracts: contracts,
		gas:       NewGasEstimator(node),
		cfg:       cfg,
		status:    entity.NewChainStatus(notifier),
		accounts:  newAccountTable(notifier),
		notifier:  notifier,
		metrics:   m,
		logger:    l,
		now:       time.Now,
	}
}

// ChainStatus returns the live status object.
func (s *Synchronizer) ChainStatus() *entity.ChainStatus {
	return s.status
}

// Status implements port.ChainState.
func (s *Synchronizer) Status() entity.ChainStatusSnapshot {
	return s.status.Snapshot()
}

// Accounts implements port.ChainState.
func (s *Synchronizer) Accounts() []entity.AccountSnapshot {
	list := s.accounts.list()
	out := make([]entity.AccountSnapshot, len(list))
	for i, a := range list {
		out[i] = a.Snapshot()
	}
	return out
}

// Account implements port.ChainState.
func (s *Synchronizer) Account(address string) (entity.AccountSnapshot, bool) {
	a, ok := s.accounts.get(address)
	if !ok {
		return entity.AccountSnapshot{}, false
	}
	return a.Snapshot(), true
}

// Run polls until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) {
	s.logger.Info("Chain state synchronizer started", "interval", s.cfg.PollInterval)
	for {
		if ctx.Err() != nil {
			break
		}
		if err := s.PollOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("There was an unexpected error updating Ethereum network information", "error", err)
		}
		if !sleepContext(ctx, s.cfg.PollInterval) {
			break
		}
	}
	s.logger.Info("Chain state synchronizer stopped")
}

type addressBalances struct {
	address string
	wei     *big.Int
	tokens  *big.Int
}

// PollOnce runs one synchronization cycle. The last-checks-successful flag is
// true afterwards only if every step completed.
func (s *Synchronizer) PollOnce(ctx context.Context) (err error) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	start := s.now()
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		if s.metrics != nil {
			s.metrics.PollCycles.WithLabelValues(result).Inc()
			s.metrics.PollDuration.Observe(s.now().Sub(start).Seconds())
		}
		s.status.SetLastChecksSuccessful(err == nil)
	}()

	addresses, err := s.node.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	balances, err := s.fetchBalances(ctx, addresses)
	if err != nil {
		return err
	}
	s.reconcile(addresses, balances)

	blockNumber, err := s.node.BlockNumber(ctx)
	if err != nil {
		return err
	}
	s.status.SetBlockNumber(blockNumber)
	syncing, err := s.node.Syncing(ctx)
	if err != nil {
		return err
	}
	s.status.SetSyncing(syncing)

	if !s.now().Before(s.nextContractCheck) {
		if err := s.checkContracts(ctx); err != nil {
			return err
		}
		s.nextContractCheck = s.now().Add(s.cfg.ContractCheckInterval)
	}

	if s.status.Phase() != entity.ContractPhaseUnknown {
		if err := s.updateShareholding(ctx); err != nil {
			return err
		}
	}

	if s.metrics != nil {
		s.metrics.AccountsTracked.Set(float64(s.accounts.len()))
		s.metrics.BlockNumber.Set(float64(blockNumber))
		s.metrics.LastSuccessfulRun.Set(float64(s.now().Unix()))
	}
	if !s.connectedOnce {
		s.connectedOnce = true
		s.logger.Info("Completed first successful network check", "block", blockNumber, "accounts", len(addresses))
	}
	return nil
}

// fetchBalances reads native and token balances for every address with
// bounded concurrency. The table is not touched here.
func (s *Synchronizer) fetchBalances(ctx context.Context, addresses []string) ([]addressBalances, error) {
	out := make([]addressBalances, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BalanceConcurrency)

	for i, address := range addresses {
		i, address := i, address
		g.Go(func() error {
			wei, err := s.node.NativeBalance(gctx, address)
			if err != nil {
				return err
			}
			tokens, err := s.contracts.TokenBalance(gctx, address)
			if err != nil {
				return fmt.Errorf("token balance for %s: %w", address, err)
			}
			out[i] = addressBalances{address: address, wei: wei, tokens: tokens}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// reconcile removes accounts absent from addresses, adds new ones and
// updates changed balances of existing ones.
func (s *Synchronizer) reconcile(addresses []string, balances []addressBalances) {
	for _, removed := range s.accounts.retain(addresses) {
		s.logger.Info("Account removed", "address", removed)
	}

	for _, b := range balances {
		wei := decimal.NewFromBigInt(b.wei, 0)
		existing, ok := s.accounts.get(b.address)
		if !ok {
			account := entity.NewAccount(b.address, wei, b.tokens, s.notifier)
			if s.accounts.add(account) {
				s.logger.Info("Found new account", "address", b.address, "balance", account.Balance().String(), "sift", b.tokens.String())
			}
			continue
		}
		if existing.SetBalanceWei(wei) {
			s.logger.Info("Account balance changed", "address", b.address, "balance", utils.FormatWei(b.wei))
		}
		if existing.SetTokenBalance(b.tokens) {
			s.logger.Info("Account token balance changed", "address", b.address, "sift", b.tokens.String())
		}
	}
}

// checkContracts verifies both contract versions and, for a matching ICO
// contract, refreshes phase, abandonment, dates and the reference gas cost.
func (s *Synchronizer) checkContracts(ctx context.Context) error {
	s.logger.Debug("Checking ICO contract version")
	icoVersion, err := s.contracts.IcoContractVersion(ctx)
	if err != nil {
		return err
	}

	phase := entity.ContractPhaseUnknown
	var mismatch error
	if icoVersion.Cmp(s.cfg.ExpectedIcoVersion) == 0 {
		if phase, err = s.readIcoState(ctx); err != nil {
			return err
		}
	} else {
		mismatch = fmt.Errorf("%w: ICO contract at %s expected %s but got %s",
			ErrContractMismatch, s.cfg.IcoAddress, s.cfg.ExpectedIcoVersion, icoVersion)
	}

	s.logger.Debug("Checking SIFT contract version")
	tokenVersion, err := s.contracts.TokenContractVersion(ctx)
	if err != nil {
		return err
	}
	if tokenVersion.Cmp(s.cfg.ExpectedTokenVersion) != 0 {
		mismatch = errors.Join(mismatch, fmt.Errorf("%w: SIFT contract expected %s but got %s",
			ErrContractMismatch, s.cfg.ExpectedTokenVersion, tokenVersion))
	}

	if mismatch != nil {
		phase = entity.ContractPhaseUnknown
		s.logger.Error("Contract mismatch, chain state cannot be trusted", "error", mismatch)
	}
	s.status.SetPhase(phase)
	s.status.SetContractError(mismatch)

	if s.metrics != nil {
		if mismatch != nil {
			s.metrics.ContractMismatch.Set(1)
		} else {
			s.metrics.ContractMismatch.Set(0)
		}
		s.metrics.ContractPhase.Set(float64(phase))
	}
	return nil
}

// readIcoState refreshes abandonment, dates and the default gas info and
// returns the phase the ICO contract reports.
func (s *Synchronizer) readIcoState(ctx context.Context) (entity.ContractPhase, error) {
	isIco, err := s.contracts.IcoPhase(ctx)
	if err != nil {
		return entity.ContractPhaseUnknown, err
	}
	abandoned, err := s.contracts.IcoAbandoned(ctx)
	if err != nil {
		return entity.ContractPhaseUnknown, err
	}
	startTime, err := s.contracts.IcoStartTime(ctx)
	if err != nil {
		return entity.ContractPhaseUnknown, err
	}
	endTime, err := s.contracts.IcoEndTime(ctx)
	if err != nil {
		return entity.ContractPhaseUnknown, err
	}

	s.status.SetIcoAbandoned(abandoned)
	s.status.SetIcoStartDate(utils.UnixToTime(startTime))
	s.status.SetIcoEndDate(utils.UnixToTime(endTime))

	estimate, err := s.gas.EstimateGasCost(ctx, referenceGasSender, s.cfg.IcoAddress, referenceGasValue)
	if err != nil {
		s.logger.Warn("Failed to refresh default gas info", "error", err)
	} else if s.status.SetDefaultGas(estimate) {
		s.logger.Debug("Default gas for sending updated", "gas", estimate.Gas, "gas_price", estimate.GasPrice.String(), "gas_cost", estimate.GasCost.String())
	}

	if isIco {
		return entity.ContractPhaseIco, nil
	}
	return entity.ContractPhaseTrading, nil
}

// updateShareholding refreshes total supply and every account's share of it.
func (s *Synchronizer) updateShareholding(ctx context.Context) error {
	s.logger.Debug("Checking total supply and shareholding")
	totalSupply, err := s.contracts.TotalSupply(ctx)
	if err != nil {
		return err
	}
	s.status.SetTotalSupply(totalSupply)
	if s.metrics != nil {
		f, _ := new(big.Float).SetInt(totalSupply).Float64()
		s.metrics.TotalSupply.Set(f)
	}

	for _, account := range s.accounts.list() {
		account.SetShareholdingPercentage(entity.Shareholding(account.TokenBalance(), totalSupply))
	}
	return nil
}

// sleepContext waits for d and reports false if ctx was cancelled first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
