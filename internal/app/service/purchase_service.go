package service

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"sift_client/internal/app/port"
	"sift_client/internal/domain/entity"
	"sift_client/internal/pkg/metrics"
	"sift_client/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
)

// JSON-RPC "method not found".
const rpcMethodNotFound = -32601

// Failure reasons shown to the user.
const (
	reasonUnknownAccount     = "The specified account address is not known."
	reasonInsufficientFunds  = "The specified account does not have sufficient funds."
	reasonInsufficientGas    = "You do not have enough gas for this transaction."
	reasonUserCancelled      = "User cancelled transaction on confirmation screen."
	reasonUnlockError        = "Unable to unlock account with the supplied password."
	reasonMissingRPCPersonal = "Your geth installation doesn't have the personal RPC enabled, please enable it to continue."
	reasonPasswordInvalid    = "The password you supplied was incorrect"
	reasonInvalidQuantity    = "The quantity to purchase must be at least one."
)

// PurchaseConfig holds the purchase settings.
type PurchaseConfig struct {
	IcoAddress       string
	WeiPerToken      *big.Int
	MaxGasMultiplier uint8
	UnlockDuration   time.Duration
}

// PurchaseOrchestrator validates, confirms, signs and submits token purchases.
type PurchaseOrchestrator struct {
	node    port.Node
	state   port.ChainState
	queue   port.TransactionQueue
	gas     *GasEstimator
	cfg     PurchaseConfig
	metrics *metrics.Metrics
	logger  port.Logger
}

var _ port.PurchaseService = (*PurchaseOrchestrator)(nil)

// NewPurchaseOrchestrator creates a PurchaseOrchestrator. Accounts and the
// default gas estimate are read from state; submitted hashes go to queue.
func NewPurchaseOrchestrator(
	node port.Node,
	state port.ChainState,
	queue port.TransactionQueue,
	cfg PurchaseConfig,
	m *metrics.Metrics,
	l port.Logger,
) *PurchaseOrchestrator {
	if cfg.MaxGasMultiplier == 0 {
		cfg.MaxGasMultiplier = 25
	}
	if cfg.UnlockDuration <= 0 {
		cfg.UnlockDuration = 120 * time.Second
	}
	return &PurchaseOrchestrator{
		node:    node,
		state:   state,
		queue:   queue,
		gas:     NewGasEstimator(node),
		cfg:     cfg,
		metrics: m,
		logger:  l,
	}
}

// EstimateGasCost implements port.PurchaseService.
func (p *PurchaseOrchestrator) EstimateGasCost(ctx context.Context, from, to string, amount *big.Int) (entity.GasEstimate, error) {
	return p.gas.EstimateGasCost(ctx, from, to, amount)
}

// Purchase implements port.PurchaseService.
func (p *PurchaseOrchestrator) Purchase(ctx context.Context, req entity.PurchaseRequest, confirmer port.Confirmer) entity.PurchaseResult {
	result := p.purchase(ctx, req, confirmer)

	outcome := "success"
	if !result.WasSuccessful {
		outcome = result.FailureType.String()
		if result.IsCancellation() {
			p.logger.Info("Purchase cancelled by user", "address", req.Address)
		} else {
			p.logger.Warn("Purchase failed", "address", req.Address, "failure", outcome, "reason", result.FailureReason)
		}
	}
	if p.metrics != nil {
		p.metrics.Purchases.WithLabelValues(outcome).Inc()
	}
	return result
}

func (p *PurchaseOrchestrator) purchase(ctx context.Context, req entity.PurchaseRequest, confirmer port.Confirmer) entity.PurchaseResult {
	if req.Quantity == 0 {
		return entity.PurchaseFailed(entity.FailureUnknown, reasonInvalidQuantity)
	}
	cost := new(big.Int).Mul(new(big.Int).SetUint64(req.Quantity), p.cfg.WeiPerToken)

	account, ok := p.state.Account(req.Address)
	if !ok {
		return entity.PurchaseFailed(entity.FailureUnknownAccount, reasonUnknownAccount)
	}
	balance := account.BalanceWei.BigInt()
	if balance.Cmp(cost) < 0 {
		return entity.PurchaseFailed(entity.FailureInsufficientFunds, reasonInsufficientFunds)
	}

	estimate, err := p.gas.EstimateGasCost(ctx, account.Address, p.cfg.IcoAddress, cost)
	if err != nil {
		return classifyError(err)
	}
	remaining := new(big.Int).Sub(balance, cost)
	if remaining.Cmp(estimate.GasCost) < 0 {
		return entity.PurchaseFailed(entity.FailureInsufficientGas, reasonInsufficientGas)
	}
	maxMultiplier := maximumGasMultiplier(estimate.GasCost, remaining, p.cfg.MaxGasMultiplier)

	p.logger.Debug("Asking user confirmation", "from", account.Address, "to", p.cfg.IcoAddress, "value", utils.FormatWei(cost))
	confirmation, err := confirmer.Confirm(ctx, entity.ConfirmationRequest{
		From:                 account.Address,
		To:                   p.cfg.IcoAddress,
		Amount:               entity.NewAmount(decimal.NewFromBigInt(cost, 0)),
		AmountWei:            new(big.Int).Set(cost),
		Gas:                  estimate.Gas,
		BaseGasPrice:         new(big.Int).Set(estimate.GasPrice),
		MaximumGasMultiplier: maxMultiplier,
		DefaultGasMultiplier: defaultGasMultiplier(maxMultiplier),
	})
	if err != nil || confirmation.Cancelled {
		return entity.PurchaseFailed(entity.FailureUserCancelled, reasonUserCancelled)
	}
	multiplier := confirmation.GasMultiplier
	switch {
	case multiplier == 0:
		multiplier = defaultGasMultiplier(maxMultiplier)
	case multiplier > maxMultiplier:
		multiplier = maxMultiplier
	}

	p.logger.Debug("Attempting to unlock account", "address", account.Address)
	unlocked, err := p.node.UnlockAccount(ctx, account.Address, confirmation.Password, p.cfg.UnlockDuration)
	if err != nil {
		return classifyUnlockError(err)
	}
	if !unlocked {
		return entity.PurchaseFailed(entity.FailureUnlockError, reasonUnlockError)
	}

	gasPrice := new(big.Int).Mul(estimate.GasPrice, big.NewInt(int64(multiplier)))
	p.logger.Info("Sending purchase transaction", "from", account.Address, "to", p.cfg.IcoAddress,
		"value", utils.FormatWei(cost), "gas", estimate.Gas, "gas_price", gasPrice.String(), "multiplier", multiplier)
	hash, err := p.node.SendTransaction(ctx, entity.TransactionRequest{
		From:     account.Address,
		To:       p.cfg.IcoAddress,
		Value:    cost,
		Gas:      estimate.Gas,
		GasPrice: gasPrice,
	})
	if err != nil {
		return classifyError(err)
	}

	return entity.PurchaseSucceeded(p.queue.Enqueue(hash))
}

// MaximumPurchase implements port.PurchaseService.
func (p *PurchaseOrchestrator) MaximumPurchase(address string) (uint64, bool) {
	account, ok := p.state.Account(address)
	if !ok {
		return 0, false
	}
	var defaultGas entity.GasEstimate
	if g := p.state.Status().DefaultGas; g != nil {
		defaultGas = *g
	}
	return MaximumPurchase(account.BalanceWei.BigInt(), p.cfg.WeiPerToken, defaultGas), true
}

// MaximumPurchase returns how many whole tokens balance buys at weiPerToken,
// one fewer when the default gas cost does not fit next to the spend.
func MaximumPurchase(balance, weiPerToken *big.Int, defaultGas entity.GasEstimate) uint64 {
	if balance == nil || weiPerToken == nil || weiPerToken.Sign() <= 0 || balance.Sign() <= 0 {
		return 0
	}
	tokens := new(big.Int).Quo(balance, weiPerToken)
	if tokens.Sign() == 0 {
		return 0
	}

	spend := new(big.Int).Mul(tokens, weiPerToken)
	if defaultGas.GasCost != nil {
		spend.Add(spend, defaultGas.GasCost)
	}
	if spend.Cmp(balance) > 0 {
		if tokens.Cmp(big.NewInt(1)) <= 0 {
			return 0
		}
		tokens.Sub(tokens, big.NewInt(1))
	}
	if !tokens.IsUint64() {
		return ^uint64(0)
	}
	return tokens.Uint64()
}

// maximumGasMultiplier searches down from limit for the largest m with
// m * gasCost <= remaining. Callers guarantee remaining >= gasCost.
func maximumGasMultiplier(gasCost, remaining *big.Int, limit uint8) uint8 {
	m := limit
	total := new(big.Int)
	for m > 1 && total.Mul(gasCost, big.NewInt(int64(m))).Cmp(remaining) > 0 {
		m--
	}
	return m
}

func defaultGasMultiplier(maxMultiplier uint8) uint8 {
	return max(maxMultiplier/4, 1)
}

// classifyUnlockError prefers the structured method-not-found code over the
// node's error text.
func classifyUnlockError(err error) entity.PurchaseResult {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == rpcMethodNotFound {
		return entity.PurchaseFailed(entity.FailureMissingRPCPersonal, reasonMissingRPCPersonal)
	}
	return classifyError(err)
}

// classifyError maps known node error text to purchase failures. Anything
// else is Unknown with the raw text.
func classifyError(err error) entity.PurchaseResult {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "personal_unlockAccount method not implemented"),
		strings.Contains(msg, "personal_unlockAccount does not exist"):
		return entity.PurchaseFailed(entity.FailureMissingRPCPersonal, reasonMissingRPCPersonal)
	case strings.Contains(msg, "could not decrypt key with given passphrase"):
		return entity.PurchaseFailed(entity.FailurePasswordInvalid, reasonPasswordInvalid)
	}
	return entity.PurchaseFailed(entity.FailureUnknown, msg)
}
