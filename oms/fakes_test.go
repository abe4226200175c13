package oms

import (
	"context"
	"time"

	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/money"
)

// fakeAccounts is an in-memory externals.AccountManager for tests.
type fakeAccounts struct {
	balances map[string]money.Amount // accountID -> available
	accounts map[string]string       // userID|currency -> accountID
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{balances: make(map[string]money.Amount), accounts: make(map[string]string)}
}

func (f *fakeAccounts) seed(userID, currency string, balance money.Amount) {
	accountID := userID + ":" + currency
	f.accounts[userID+"|"+currency] = accountID
	f.balances[accountID] = balance
}

func (f *fakeAccounts) Reserve(ctx context.Context, accountID, currency string, amount money.Amount, ref string) (externals.AccountResult, error) {
	bal, ok := f.balances[accountID]
	if !ok {
		return externals.AccountResult{Success: false, Failure: externals.AccountFailureUnknown}, nil
	}
	if money.GreaterThan(amount, bal) {
		return externals.AccountResult{Success: false, AvailableBalance: bal, Failure: externals.AccountFailureInsufficient}, nil
	}
	f.balances[accountID], _ = money.Sub(bal, amount)
	return externals.AccountResult{Success: true, AvailableBalance: f.balances[accountID]}, nil
}

func (f *fakeAccounts) Release(ctx context.Context, accountID, currency string, amount money.Amount, ref string) (externals.AccountResult, error) {
	f.balances[accountID], _ = money.Add(f.balances[accountID], amount)
	return externals.AccountResult{Success: true, AvailableBalance: f.balances[accountID]}, nil
}

func (f *fakeAccounts) Debit(ctx context.Context, accountID, currency string, amount money.Amount, meta map[string]string) (externals.AccountResult, error) {
	f.balances[accountID], _ = money.Sub(f.balances[accountID], amount)
	return externals.AccountResult{Success: true}, nil
}

func (f *fakeAccounts) Credit(ctx context.Context, accountID, currency string, amount money.Amount, meta map[string]string) (externals.AccountResult, error) {
	f.balances[accountID], _ = money.Add(f.balances[accountID], amount)
	return externals.AccountResult{Success: true}, nil
}

func (f *fakeAccounts) GetUserAccount(ctx context.Context, userID, currency string) (string, error) {
	return f.accounts[userID+"|"+currency], nil
}

func (f *fakeAccounts) GetBalance(ctx context.Context, accountID string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true, AvailableBalance: f.balances[accountID]}, nil
}

// fakeRates is an externals.RateProvider returning a fixed quote.
type fakeRates struct {
	ask money.Amount
	bid money.Amount
}

func (f *fakeRates) GetRate(ctx context.Context, from, to string) (externals.Rate, error) {
	return externals.Rate{Pair: from + "/" + to, Ask: f.ask, Bid: f.bid, Timestamp: time.Now()}, nil
}

func (f *fakeRates) Subscribe(ctx context.Context, pair string) (<-chan externals.Rate, error) {
	return nil, nil
}
