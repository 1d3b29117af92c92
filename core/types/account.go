package types

import "math/big"

// Account tracks the fund balances the settlement engine may move. The native
// coin balance lives alongside per-symbol fungible token balances; Allowances
// records how much of each token the holder has pre-authorized the
// marketplace to pull at settlement time.
type Account struct {
	Nonce         uint64              `json:"nonce"`
	BalanceNative *big.Int            `json:"balanceNative"`
	TokenBalances map[string]*big.Int `json:"tokenBalances,omitempty"`
	Allowances    map[string]*big.Int `json:"allowances,omitempty"`
}

// NewAccount returns an account with zeroed, non-nil balance fields.
func NewAccount() *Account {
	return &Account{
		BalanceNative: big.NewInt(0),
		TokenBalances: make(map[string]*big.Int),
		Allowances:    make(map[string]*big.Int),
	}
}

// Normalize fills in nil fields so callers can mutate balances without nil
// checks at every site.
func (a *Account) Normalize() *Account {
	if a == nil {
		return NewAccount()
	}
	if a.BalanceNative == nil {
		a.BalanceNative = big.NewInt(0)
	}
	if a.TokenBalances == nil {
		a.TokenBalances = make(map[string]*big.Int)
	}
	if a.Allowances == nil {
		a.Allowances = make(map[string]*big.Int)
	}
	return a
}

// TokenBalance returns the balance held for symbol, zero when absent.
func (a *Account) TokenBalance(symbol string) *big.Int {
	if a == nil || a.TokenBalances == nil {
		return big.NewInt(0)
	}
	if bal, ok := a.TokenBalances[symbol]; ok && bal != nil {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// Allowance returns the marketplace allowance for symbol, zero when absent.
func (a *Account) Allowance(symbol string) *big.Int {
	if a == nil || a.Allowances == nil {
		return big.NewInt(0)
	}
	if amt, ok := a.Allowances[symbol]; ok && amt != nil {
		return new(big.Int).Set(amt)
	}
	return big.NewInt(0)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := NewAccount()
	clone.Nonce = a.Nonce
	if a.BalanceNative != nil {
		clone.BalanceNative = new(big.Int).Set(a.BalanceNative)
	}
	for sym, bal := range a.TokenBalances {
		if bal != nil {
			clone.TokenBalances[sym] = new(big.Int).Set(bal)
		}
	}
	for sym, amt := range a.Allowances {
		if amt != nil {
			clone.Allowances[sym] = new(big.Int).Set(amt)
		}
	}
	return clone
}
