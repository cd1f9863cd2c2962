package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"sift_client/internal/app/port"
	"sift_client/internal/domain/entity"
	"sift_client/internal/infrastructure/configloader"
	"sift_client/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// EVMClient implements port.Node and port.ContractCaller against a geth-compatible node.
// Wallet, personal and miner calls go through the raw RPC client; the rest use ethclient.
type EVMClient struct {
	ethClient      *ethclient.Client
	rpcClient      *rpc.Client
	endpoint       string
	rpcCallTimeout time.Duration
	limiter        *rate.Limiter
	metrics        *metrics.Metrics
	logger         port.Logger
}

var (
	_ port.Node           = (*EVMClient)(nil)
	_ port.ContractCaller = (*EVMClient)(nil)
)

// NewEVMClient dials the primary RPC URL, then each fallback in order, and
// returns a client for the first endpoint that answers.
func NewEVMClient(cfg configloader.NodeConfig, m *metrics.Metrics, l port.Logger) (*EVMClient, error) {
	rpcURLs := append([]string{cfg.RPCURL}, cfg.FallbackRPCURLs...)
	connectionTimeout := time.Duration(cfg.ConnectionTimeoutSeconds) * time.Second
	var lastErr error

	for _, rpcURL := range rpcURLs {
		if rpcURL == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		rc, err := rpc.DialContext(ctx, rpcURL)
		cancel()

		if err == nil {
			c := NewEVMClientFromRPC(rc, cfg, m, l)
			c.endpoint = rpcURL
			l.Info("Connected to node", "rpc_url", rpcURL)
			return c, nil
		}
		l.Warn("Failed to connect to node, trying next endpoint", "rpc_url", rpcURL, "error", err)
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}

	if lastErr == nil {
		lastErr = errors.New("no RPC URL configured")
	}
	return nil, fmt.Errorf("all RPC connection attempts failed: %w", lastErr)
}

// NewEVMClientFromRPC wraps an already connected RPC client.
func NewEVMClientFromRPC(rc *rpc.Client, cfg configloader.NodeConfig, m *metrics.Metrics, l port.Logger) *EVMClient {
	timeout := time.Duration(cfg.RPCCallTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.BurstLimit
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &EVMClient{
		ethClient:      ethclient.NewClient(rc),
		rpcClient:      rc,
		rpcCallTimeout: timeout,
		limiter:        limiter,
		metrics:        m,
		logger:         l,
	}
}

// Endpoint returns the URL the client is connected to.
func (c *EVMClient) Endpoint() string {
	return c.endpoint
}

// Close closes the underlying connection.
func (c *EVMClient) Close() {
	c.rpcClient.Close()
}

// call runs fn with rate limiting, a per-call timeout and latency metrics.
func (c *EVMClient) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limiter: %w", method, err)
		}
	}

	rpcCallCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	start := time.Now()
	err := fn(rpcCallCtx)
	if c.metrics != nil {
		c.metrics.RPCCallLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			c.metrics.RPCCallErrors.WithLabelValues(method).Inc()
		}
	}
	if err != nil && !errors.Is(err, ethereum.NotFound) {
		c.logger.Debug("RPC call failed", "method", method, "error", err)
	}
	return err
}

// Accounts implements port.Node.
func (c *EVMClient) Accounts(ctx context.Context) ([]string, error) {
	var accounts []common.Address
	err := c.call(ctx, "eth_accounts", func(ctx context.Context) error {
		return c.rpcClient.CallContext(ctx, &accounts, "eth_accounts")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = a.Hex()
	}
	return out, nil
}

// NativeBalance implements port.Node.
func (c *EVMClient) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	var balance *big.Int
	err := c.call(ctx, "eth_getBalance", func(ctx context.Context) error {
		var err error
		balance, err = c.ethClient.BalanceAt(ctx, common.HexToAddress(address), nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance for %s: %w", address, err)
	}
	return balance, nil
}

// BlockNumber implements port.Node.
func (c *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.call(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		n, err = c.ethClient.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch block number: %w", err)
	}
	return n, nil
}

// Syncing implements port.Node.
func (c *EVMClient) Syncing(ctx context.Context) (bool, error) {
	var progress *ethereum.SyncProgress
	err := c.call(ctx, "eth_syncing", func(ctx context.Context) error {
		var err error
		progress, err = c.ethClient.SyncProgress(ctx)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to fetch sync state: %w", err)
	}
	return progress != nil, nil
}

// EstimateGas implements port.Node.
func (c *EVMClient) EstimateGas(ctx context.Context, from, to string, value *big.Int) (uint64, error) {
	toAddr := common.HexToAddress(to)
	msg := ethereum.CallMsg{From: common.HexToAddress(from), To: &toAddr, Value: value}
	var gas uint64
	err := c.call(ctx, "eth_estimateGas", func(ctx context.Context) error {
		var err error
		gas, err = c.ethClient.EstimateGas(ctx, msg)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas, nil
}

// GasPrice implements port.Node.
func (c *EVMClient) GasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.call(ctx, "eth_gasPrice", func(ctx context.Context) error {
		var err error
		price, err = c.ethClient.SuggestGasPrice(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %w", err)
	}
	return price, nil
}

// SendTransaction implements port.Node. The node signs with the unlocked from account.
func (c *EVMClient) SendTransaction(ctx context.Context, tx entity.TransactionRequest) (string, error) {
	args := map[string]any{
		"from": common.HexToAddress(tx.From),
		"to":   common.HexToAddress(tx.To),
		"gas":  hexutil.Uint64(tx.Gas),
	}
	if tx.Value != nil {
		args["value"] = (*hexutil.Big)(tx.Value)
	}
	if tx.GasPrice != nil {
		args["gasPrice"] = (*hexutil.Big)(tx.GasPrice)
	}

	var hash common.Hash
	err := c.call(ctx, "eth_sendTransaction", func(ctx context.Context) error {
		return c.rpcClient.CallContext(ctx, &hash, "eth_sendTransaction", args)
	})
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

// TransactionReceipt implements port.Node.
func (c *EVMClient) TransactionReceipt(ctx context.Context, hash string) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.call(ctx, "eth_getTransactionReceipt", func(ctx context.Context) error {
		var err error
		receipt, err = c.ethClient.TransactionReceipt(ctx, common.HexToHash(hash))
		return err
	})
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt for %s: %w", hash, err)
	}
	return receipt, nil
}

// UnlockAccount implements port.Node. Errors are returned unwrapped so callers
// can inspect the JSON-RPC error code.
func (c *EVMClient) UnlockAccount(ctx context.Context, address, password string, duration time.Duration) (bool, error) {
	var unlocked bool
	err := c.call(ctx, "personal_unlockAccount", func(ctx context.Context) error {
		return c.rpcClient.CallContext(ctx, &unlocked, "personal_unlockAccount",
			common.HexToAddress(address), password, uint64(duration/time.Second))
	})
	return unlocked, err
}

// Mining implements port.Node.
func (c *EVMClient) Mining(ctx context.Context) (bool, error) {
	var mining bool
	err := c.call(ctx, "eth_mining", func(ctx context.Context) error {
		return c.rpcClient.CallContext(ctx, &mining, "eth_mining")
	})
	if err != nil {
		return false, fmt.Errorf("failed to query mining state: %w", err)
	}
	return mining, nil
}

// StartMiner implements port.Node.
func (c *EVMClient) StartMiner(ctx context.Context, threads int) error {
	err := c.call(ctx, "miner_start", func(ctx context.Context) error {
		return c.rpcClient.CallContext(ctx, nil, "miner_start", threads)
	})
	if err != nil {
		return fmt.Errorf("failed to start miner: %w", err)
	}
	return nil
}

// StopMiner implements port.Node.
func (c *EVMClient) StopMiner(ctx context.Context) error {
	err := c.call(ctx, "miner_stop", func(ctx context.Context) error {
		return c.rpcClient.CallContext(ctx, nil, "miner_stop")
	})
	if err != nil {
		return fmt.Errorf("failed to stop miner: %w", err)
	}
	return nil
}

// CallContract implements port.ContractCaller against the latest block.
func (c *EVMClient) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	toAddr := common.HexToAddress(to)
	var out []byte
	err := c.call(ctx, "eth_call", func(ctx context.Context) error {
		var err error
		out, err = c.ethClient.CallContract(ctx, ethereum.CallMsg{To: &toAddr, Data: data}, nil)
		return err
	})
	return out, err
}
