package entity

import (
	"math/big"
)

// PurchaseFailureType classifies why a purchase did not go through.
type PurchaseFailureType int

const (
	FailureUnknown PurchaseFailureType = iota
	FailureInsufficientGas
	FailureInsufficientFunds
	FailureRPCError
	FailureUnknownAccount
	FailureUserCancelled
	FailureUnlockError
	FailureMissingRPCPersonal
	FailurePasswordInvalid
	FailureNoReceipt
)

var failureNames = map[PurchaseFailureType]string{
	FailureUnknown:            "Unknown",
	FailureInsufficientGas:    "InsufficientGas",
	FailureInsufficientFunds:  "InsufficientFunds",
	FailureRPCError:           "RpcError",
	FailureUnknownAccount:     "UnknownAccount",
	FailureUserCancelled:      "UserCancelled",
	FailureUnlockError:        "UnlockError",
	FailureMissingRPCPersonal: "MissingRpcPersonal",
	FailurePasswordInvalid:    "PasswordInvalid",
	FailureNoReceipt:          "NoReceipt",
}

func (f PurchaseFailureType) String() string {
	if name, ok := failureNames[f]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (f PurchaseFailureType) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// PurchaseRequest asks to buy Quantity tokens from Address.
type PurchaseRequest struct {
	Address  string
	Quantity uint64
}

// PurchaseResult is the outcome of a purchase. Exactly one of the success or
// failure fields is meaningful, as indicated by WasSuccessful.
type PurchaseResult struct {
	WasSuccessful   bool                 `json:"wasSuccessful"`
	TransactionHash string               `json:"transactionHash,omitempty"`
	Transaction     *EnqueuedTransaction `json:"-"`
	FailureType     PurchaseFailureType  `json:"failureType"`
	FailureReason   string               `json:"failureReason,omitempty"`
}

// PurchaseSucceeded builds a successful result.
func PurchaseSucceeded(tx *EnqueuedTransaction) PurchaseResult {
	return PurchaseResult{WasSuccessful: true, TransactionHash: tx.TransactionHash(), Transaction: tx}
}

// PurchaseFailed builds a failed result.
func PurchaseFailed(failure PurchaseFailureType, reason string) PurchaseResult {
	return PurchaseResult{FailureType: failure, FailureReason: reason}
}

// IsCancellation reports whether the result is a user cancellation rather than an error.
func (r PurchaseResult) IsCancellation() bool {
	return !r.WasSuccessful && r.FailureType == FailureUserCancelled
}

// TransactionRequest is a value transfer to be signed and sent by the node.
type TransactionRequest struct {
	From     string
	To       string
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
}

// ConfirmationRequest describes a transaction awaiting user approval.
type ConfirmationRequest struct {
	From                 string
	To                   string
	Amount               Amount
	AmountWei            *big.Int
	Gas                  uint64
	BaseGasPrice         *big.Int
	MaximumGasMultiplier uint8
	DefaultGasMultiplier uint8
}

// Confirmation is the user's answer to a ConfirmationRequest.
type Confirmation struct {
	Cancelled     bool
	Password      string
	GasMultiplier uint8
}
