package port

import (
	"context"
	"math/big"
	"time"

	"sift_client/internal/domain/entity"

	"github.com/ethereum/go-ethereum/core/types"
)

// Node is the JSON-RPC surface of the Ethereum node the client talks to.
// Every method is a remote call and may fail transiently.
type Node interface {
	// Accounts lists the addresses managed by the node's wallet.
	Accounts(ctx context.Context) ([]string, error)
	// NativeBalance returns the balance of address in wei.
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Syncing(ctx context.Context) (bool, error)

	EstimateGas(ctx context.Context, from, to string, value *big.Int) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)

	// SendTransaction asks the node to sign and broadcast tx from an unlocked account.
	SendTransaction(ctx context.Context, tx entity.TransactionRequest) (string, error)
	// TransactionReceipt returns nil, nil while the transaction is not mined.
	TransactionReceipt(ctx context.Context, hash string) (*types.Receipt, error)
	UnlockAccount(ctx context.Context, address, password string, duration time.Duration) (bool, error)

	Mining(ctx context.Context) (bool, error)
	StartMiner(ctx context.Context, threads int) error
	StopMiner(ctx context.Context) error
}

// ContractCaller executes read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)
}

// ContractReader reads the ICO and token contracts by function name.
type ContractReader interface {
	IcoContractVersion(ctx context.Context) (*big.Int, error)
	IcoPhase(ctx context.Context) (bool, error)
	IcoAbandoned(ctx context.Context) (bool, error)
	IcoStartTime(ctx context.Context) (uint64, error)
	IcoEndTime(ctx context.Context) (uint64, error)

	TokenContractVersion(ctx context.Context) (*big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
	TokenBalance(ctx context.Context, address string) (*big.Int, error)
}
