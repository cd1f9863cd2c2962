package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Denominations of wei, largest first.
var amountTiers = []struct {
	unit  string
	scale decimal.Decimal
}{
	{"ETH", decimal.New(1, 18)},
	{"finney", decimal.New(1, 15)},
	{"szabo", decimal.New(1, 12)},
	{"Gwei", decimal.New(1, 9)},
	{"Mwei", decimal.New(1, 6)},
	{"Kwei", decimal.New(1, 3)},
}

// Amount is a wei value with its friendly representation.
type Amount struct {
	Wei            decimal.Decimal `json:"wei"`
	FriendlyAmount decimal.Decimal `json:"amount"`
	FriendlyUnit   string          `json:"unit"`
}

// NewAmount picks the largest unit in which wei is at least one and rounds to
// two decimals. Values below one Kwei are shown in wei unchanged.
func NewAmount(wei decimal.Decimal) Amount {
	for _, tier := range amountTiers {
		scaled := wei.Div(tier.scale)
		if scaled.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return Amount{Wei: wei, FriendlyAmount: scaled.RoundBank(2), FriendlyUnit: tier.unit}
		}
	}
	return Amount{Wei: wei, FriendlyAmount: wei, FriendlyUnit: "wei"}
}

func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.FriendlyAmount.String(), a.FriendlyUnit)
}
