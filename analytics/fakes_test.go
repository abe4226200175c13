package analytics

import (
	"context"
	"errors"

	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/money"
)

type fakeRates struct {
	rate externals.Rate
	err  error
}

func (f *fakeRates) GetRate(ctx context.Context, from, to string) (externals.Rate, error) {
	if f.err != nil {
		return externals.Rate{}, f.err
	}
	return f.rate, nil
}

func (f *fakeRates) Subscribe(ctx context.Context, pair string) (<-chan externals.Rate, error) {
	return nil, nil
}

var errRateNotFound = errors.New("rate not found")

type fakeAccounts struct{}

func (fakeAccounts) Reserve(ctx context.Context, accountID, currency string, amount money.Amount, ref string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true, AvailableBalance: money.MustParse("1000000000")}, nil
}
func (fakeAccounts) Release(ctx context.Context, accountID, currency string, amount money.Amount, ref string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true}, nil
}
func (fakeAccounts) Debit(ctx context.Context, accountID, currency string, amount money.Amount, meta map[string]string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true}, nil
}
func (fakeAccounts) Credit(ctx context.Context, accountID, currency string, amount money.Amount, meta map[string]string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true}, nil
}
func (fakeAccounts) GetUserAccount(ctx context.Context, userID, currency string) (string, error) {
	return userID + ":" + currency, nil
}
func (fakeAccounts) GetBalance(ctx context.Context, accountID string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true, AvailableBalance: money.MustParse("1000000000")}, nil
}
