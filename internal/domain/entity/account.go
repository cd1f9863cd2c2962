package entity

import (
	"math/big"
	"sync"

	"sift_client/internal/pkg/notify"

	"github.com/shopspring/decimal"
)

const accountSource = "account"

// Account is one address known to the connected wallet.
// Setters report whether the value changed and only notify on change.
type Account struct {
	mu           sync.RWMutex
	address      string
	balanceWei   decimal.Decimal
	balance      Amount
	tokenBalance *big.Int
	shareholding decimal.Decimal
	notifier     *notify.Notifier
}

// AccountSnapshot is a read-only copy of an Account.
type AccountSnapshot struct {
	Address                       string          `json:"address"`
	BalanceWei                    decimal.Decimal `json:"balanceWei"`
	Balance                       decimal.Decimal `json:"balance"`
	BalanceUnit                   string          `json:"balanceUnit"`
	TokenBalance                  *big.Int        `json:"tokenBalance"`
	ShareholdingPercentage        decimal.Decimal `json:"shareholdingPercentage"`
	DisplayShareholdingPercentage string          `json:"displayShareholdingPercentage"`
}

// NewAccount creates an account with the given balances.
func NewAccount(address string, balanceWei decimal.Decimal, tokenBalance *big.Int, notifier *notify.Notifier) *Account {
	if tokenBalance == nil {
		tokenBalance = new(big.Int)
	}
	return &Account{
		address:      address,
		balanceWei:   balanceWei,
		balance:      NewAmount(balanceWei),
		tokenBalance: new(big.Int).Set(tokenBalance),
		notifier:     notifier,
	}
}

// Address returns the account address.
func (a *Account) Address() string {
	return a.address
}

// BalanceWei returns the raw native balance.
func (a *Account) BalanceWei() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balanceWei
}

// Balance returns the display amount and unit for the raw balance.
func (a *Account) Balance() Amount {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balance
}

// TokenBalance returns a copy of the token balance.
func (a *Account) TokenBalance() *big.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return new(big.Int).Set(a.tokenBalance)
}

// ShareholdingPercentage returns the share of total supply held, 0..100.
func (a *Account) ShareholdingPercentage() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.shareholding
}

// DisplayShareholdingPercentage formats the shareholding for display.
func (a *Account) DisplayShareholdingPercentage() string {
	return FormatShareholding(a.ShareholdingPercentage())
}

// SetBalanceWei updates the raw balance and the derived display amount.
func (a *Account) SetBalanceWei(v decimal.Decimal) bool {
	a.mu.Lock()
	if a.balanceWei.Equal(v) {
		a.mu.Unlock()
		return false
	}
	a.balanceWei = v
	a.balance = NewAmount(v)
	a.mu.Unlock()

	a.notifier.Notify(accountSource, a.address, "BalanceWei", "Balance", "BalanceUnit")
	return true
}

// SetTokenBalance updates the token balance.
func (a *Account) SetTokenBalance(v *big.Int) bool {
	a.mu.Lock()
	if a.tokenBalance.Cmp(v) == 0 {
		a.mu.Unlock()
		return false
	}
	a.tokenBalance = new(big.Int).Set(v)
	a.mu.Unlock()

	a.notifier.Notify(accountSource, a.address, "TokenBalance")
	return true
}

// SetShareholdingPercentage updates the shareholding.
func (a *Account) SetShareholdingPercentage(v decimal.Decimal) bool {
	a.mu.Lock()
	if a.shareholding.Equal(v) {
		a.mu.Unlock()
		return false
	}
	a.shareholding = v
	a.mu.Unlock()

	a.notifier.Notify(accountSource, a.address, "ShareholdingPercentage", "DisplayShareholdingPercentage")
	return true
}

// Snapshot returns a consistent copy of the account.
func (a *Account) Snapshot() AccountSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return AccountSnapshot{
		Address:                       a.address,
		BalanceWei:                    a.balanceWei,
		Balance:                       a.balance.FriendlyAmount,
		BalanceUnit:                   a.balance.FriendlyUnit,
		TokenBalance:                  new(big.Int).Set(a.tokenBalance),
		ShareholdingPercentage:        a.shareholding,
		DisplayShareholdingPercentage: FormatShareholding(a.shareholding),
	}
}

// Shareholding returns tokens / totalSupply * 100, or zero when totalSupply is zero.
func Shareholding(tokens, totalSupply *big.Int) decimal.Decimal {
	if totalSupply == nil || totalSupply.Sign() == 0 || tokens == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(tokens, 0).
		Div(decimal.NewFromBigInt(totalSupply, 0)).
		Mul(decimal.NewFromInt(100))
}

// FormatShareholding renders a percentage: "0%", "<0.01%", two decimals below
// one percent and one decimal otherwise.
func FormatShareholding(p decimal.Decimal) string {
	switch {
	case p.Sign() <= 0:
		return "0%"
	case p.LessThanOrEqual(decimal.RequireFromString("0.01")):
		return "<0.01%"
	case p.LessThan(decimal.NewFromInt(1)):
		return p.RoundBank(2).String() + "%"
	default:
		return p.RoundBank(1).String() + "%"
	}
}
