package entity

import "math/big"

// GasEstimate is the cost of sending a transaction at the node's current gas price.
type GasEstimate struct {
	GasPrice *big.Int `json:"gasPrice"`
	Gas      uint64   `json:"gas"`
	GasCost  *big.Int `json:"gasCost"`
}

// NewGasEstimate computes GasCost = gas * gasPrice.
func NewGasEstimate(gasPrice *big.Int, gas uint64) GasEstimate {
	price := new(big.Int).Set(gasPrice)
	cost := new(big.Int).Mul(price, new(big.Int).SetUint64(gas))
	return GasEstimate{GasPrice: price, Gas: gas, GasCost: cost}
}

// IsZero reports whether the estimate was never populated.
func (g GasEstimate) IsZero() bool {
	return g.GasPrice == nil && g.GasCost == nil && g.Gas == 0
}
