package execution

import (
	"context"
	"time"

	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/money"
)

// fakeProvider is a scriptable externals.LiquidityProvider for tests.
type fakeProvider struct {
	id        string
	cfg       externals.ProviderConfig
	stats     externals.ProviderStats
	price     money.Amount
	spread    money.Amount
	quoteErr  error
	execErr   error
	execCalls int
}

func (f *fakeProvider) ID() string                         { return f.id }
func (f *fakeProvider) Config() externals.ProviderConfig    { return f.cfg }
func (f *fakeProvider) Stats() externals.ProviderStats      { return f.stats }

func (f *fakeProvider) Quote(ctx context.Context, pair string, qty money.Amount, side externals.Side) (externals.Quote, error) {
	if f.quoteErr != nil {
		return externals.Quote{}, f.quoteErr
	}
	return externals.Quote{Price: f.price, Spread: f.spread, ValidUntil: time.Now().Add(time.Second)}, nil
}

func (f *fakeProvider) Execute(ctx context.Context, req externals.ExecutionRequest) (externals.ExecutionResult, error) {
	f.execCalls++
	if f.execErr != nil {
		return externals.ExecutionResult{}, f.execErr
	}
	return externals.ExecutionResult{FilledQuantity: req.Quantity, ExecutionPrice: req.Price, Commission: money.Zero}, nil
}

// fakeRateProvider returns a fixed bid/ask for every pair.
type fakeRateProvider struct {
	bid, ask money.Amount
}

func (f *fakeRateProvider) GetRate(ctx context.Context, from, to string) (externals.Rate, error) {
	return externals.Rate{Pair: from + "/" + to, Bid: f.bid, Ask: f.ask, Mid: f.bid, Timestamp: time.Now()}, nil
}

func (f *fakeRateProvider) Subscribe(ctx context.Context, pair string) (<-chan externals.Rate, error) {
	return nil, nil
}

// fakeUnlimitedAccounts is an externals.AccountManager with bottomless
// balances, for exercising the dispatcher without OM reservation failures.
type fakeUnlimitedAccounts struct{}

func (fakeUnlimitedAccounts) Reserve(ctx context.Context, accountID, currency string, amount money.Amount, ref string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true, AvailableBalance: money.MustParse("1000000000")}, nil
}

func (fakeUnlimitedAccounts) Release(ctx context.Context, accountID, currency string, amount money.Amount, ref string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true}, nil
}

func (fakeUnlimitedAccounts) Debit(ctx context.Context, accountID, currency string, amount money.Amount, meta map[string]string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true}, nil
}

func (fakeUnlimitedAccounts) Credit(ctx context.Context, accountID, currency string, amount money.Amount, meta map[string]string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true}, nil
}

func (fakeUnlimitedAccounts) GetUserAccount(ctx context.Context, userID, currency string) (string, error) {
	return userID + ":" + currency, nil
}

func (fakeUnlimitedAccounts) GetBalance(ctx context.Context, accountID string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true, AvailableBalance: money.MustParse("1000000000")}, nil
}
