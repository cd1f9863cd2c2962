package service

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"sift_client/internal/app/port"
	"sift_client/internal/domain/entity"
	"sift_client/internal/pkg/logger"
	"sift_client/internal/pkg/notify"

	"github.com/ethereum/go-ethereum/core/types"
)

var testLogger = logger.NewSlogAdapter(nil)

// fakeNode is an in-memory port.Node that records the calls it receives.
type fakeNode struct {
	mu sync.Mutex

	accounts    []string
	accountsErr error
	balances    map[string]*big.Int
	blockNumber uint64
	syncing     bool

	gas           uint64
	gasPrice      *big.Int
	estimateErr   error
	estimateCalls int

	receipts     map[string]*types.Receipt
	receiptErr   error
	receiptCalls int

	unlockResult bool
	unlockErr    error
	unlockCalls  int
	unlockedFor  time.Duration

	sendHash string
	sendErr  error
	sent     []entity.TransactionRequest

	mining    bool
	miningErr error
	startErr  error
	starts    int
	stops     int
	threads   int
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		balances:     make(map[string]*big.Int),
		receipts:     make(map[string]*types.Receipt),
		gas:          21000,
		gasPrice:     big.NewInt(1_000_000_000),
		unlockResult: true,
		sendHash:     "0xfeed",
	}
}

func (f *fakeNode) Accounts(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accountsErr != nil {
		return nil, f.accountsErr
	}
	return append([]string(nil), f.accounts...), nil
}

func (f *fakeNode) NativeBalance(_ context.Context, address string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[strings.ToLower(address)]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *fakeNode) setBalance(address string, wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[strings.ToLower(address)] = wei
}

func (f *fakeNode) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockNumber, nil
}

func (f *fakeNode) Syncing(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncing, nil
}

func (f *fakeNode) EstimateGas(context.Context, string, string, *big.Int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimateCalls++
	return f.gas, f.estimateErr
}

func (f *fakeNode) GasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeNode) SendTransaction(_ context.Context, tx entity.TransactionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, tx)
	return f.sendHash, nil
}

func (f *fakeNode) TransactionReceipt(_ context.Context, hash string) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptCalls++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return f.receipts[hash], nil
}

func (f *fakeNode) setReceipt(hash string, r *types.Receipt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[hash] = r
}

func (f *fakeNode) UnlockAccount(_ context.Context, _, _ string, d time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlockCalls++
	f.unlockedFor = d
	return f.unlockResult, f.unlockErr
}

func (f *fakeNode) Mining(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mining, f.miningErr
}

func (f *fakeNode) StartMiner(_ context.Context, threads int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.threads = threads
	f.mining = true
	return nil
}

func (f *fakeNode) StopMiner(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.mining = false
	return nil
}

func (f *fakeNode) CallContract(context.Context, string, []byte) ([]byte, error) {
	return nil, errors.New("contract calls not supported by fake node")
}

var _ NodeClient = (*fakeNode)(nil)

// fakeContracts is an in-memory port.ContractReader.
type fakeContracts struct {
	mu sync.Mutex

	icoVersion   *big.Int
	tokenVersion *big.Int
	isIco        bool
	abandoned    bool
	startTime    uint64
	endTime      uint64
	totalSupply  *big.Int
	tokens       map[string]*big.Int
	versionCalls int
}

func newFakeContracts() *fakeContracts {
	return &fakeContracts{
		icoVersion:   big.NewInt(300),
		tokenVersion: big.NewInt(500),
		isIco:        true,
		startTime:    1500000000,
		endTime:      1502000000,
		totalSupply:  new(big.Int),
		tokens:       make(map[string]*big.Int),
	}
}

func (f *fakeContracts) IcoContractVersion(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versionCalls++
	return f.icoVersion, nil
}

func (f *fakeContracts) IcoPhase(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isIco, nil
}

func (f *fakeContracts) IcoAbandoned(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.abandoned, nil
}

func (f *fakeContracts) IcoStartTime(context.Context) (uint64, error) {
	return f.startTime, nil
}

func (f *fakeContracts) IcoEndTime(context.Context) (uint64, error) {
	return f.endTime, nil
}

func (f *fakeContracts) TokenContractVersion(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenVersion, nil
}

func (f *fakeContracts) TotalSupply(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.totalSupply), nil
}

func (f *fakeContracts) TokenBalance(_ context.Context, address string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.tokens[strings.ToLower(address)]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *fakeContracts) setTokens(address string, n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[strings.ToLower(address)] = big.NewInt(n)
}

var _ port.ContractReader = (*fakeContracts)(nil)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2017, 7, 20, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// changeRecorder collects notifications from a notifier.
type changeRecorder struct {
	ch chan notify.Change
}

func recordChanges(n *notify.Notifier) *changeRecorder {
	r := &changeRecorder{ch: make(chan notify.Change, 1024)}
	n.Subscribe(r.ch)
	return r
}

// drain returns every change received so far.
func (r *changeRecorder) drain() []notify.Change {
	var out []notify.Change
	for {
		select {
		case c := <-r.ch:
			out = append(out, c)
		default:
			return out
		}
	}
}

// rpcError mimics a JSON-RPC error returned by the node.
type rpcError struct {
	code int
	msg  string
}

func (e rpcError) Error() string  { return e.msg }
func (e rpcError) ErrorCode() int { return e.code }

// fakeChainState is a static port.ChainState.
type fakeChainState struct {
	accounts map[string]entity.AccountSnapshot
	status   entity.ChainStatusSnapshot
}

func (f *fakeChainState) Status() entity.ChainStatusSnapshot {
	return f.status
}

func (f *fakeChainState) Accounts() []entity.AccountSnapshot {
	out := make([]entity.AccountSnapshot, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out
}

func (f *fakeChainState) Account(address string) (entity.AccountSnapshot, bool) {
	a, ok := f.accounts[strings.ToLower(address)]
	return a, ok
}
