package service

import (
	"context"
	"fmt"
	"math/big"

	"sift_client/internal/app/port"
	"sift_client/internal/domain/entity"
)

// GasEstimator prices a value transfer at the node's current gas price.
type GasEstimator struct {
	node port.Node
}

// NewGasEstimator creates a GasEstimator.
func NewGasEstimator(node port.Node) *GasEstimator {
	return &GasEstimator{node: node}
}

// EstimateGasCost returns gas units, gas price and their product for sending
// amount from one address to another. Node errors are returned as is.
func (g *GasEstimator) EstimateGasCost(ctx context.Context, from, to string, amount *big.Int) (entity.GasEstimate, error) {
	gas, err := g.node.EstimateGas(ctx, from, to, amount)
	if err != nil {
		return entity.GasEstimate{}, fmt.Errorf("estimate gas: %w", err)
	}
	price, err := g.node.GasPrice(ctx)
	if err != nil {
		return entity.GasEstimate{}, fmt.Errorf("gas price: %w", err)
	}
	return entity.NewGasEstimate(price, gas), nil
}
