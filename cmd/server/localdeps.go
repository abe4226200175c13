package main

import (
	"context"
	"errors"
	"time"

	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/money"
)

// The Account Manager, Rate Provider, Liquidity Providers, Payment System,
// Nostro, and Compliance collaborators are explicitly out of core scope
// (spec §1 Non-goals) — a real deployment wires in its own treasury ledger,
// market-data oracle, LP adapters, and payment-rail clients behind these
// interfaces. The stand-ins below let this entrypoint start and exercise
// the full order lifecycle locally, the same way the teacher's own
// `cmd/server/main.go` ships a demo account and a default balance for
// running without a production backend attached.

type localAccounts struct{}

func (localAccounts) Reserve(ctx context.Context, accountID, currency string, amount money.Amount, ref string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true, AvailableBalance: money.MustParse("1000000000")}, nil
}

func (localAccounts) Release(ctx context.Context, accountID, currency string, amount money.Amount, ref string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true}, nil
}

func (localAccounts) Debit(ctx context.Context, accountID, currency string, amount money.Amount, meta map[string]string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true}, nil
}

func (localAccounts) Credit(ctx context.Context, accountID, currency string, amount money.Amount, meta map[string]string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true}, nil
}

func (localAccounts) GetUserAccount(ctx context.Context, userID, currency string) (string, error) {
	return userID + ":" + currency, nil
}

func (localAccounts) GetBalance(ctx context.Context, accountID string) (externals.AccountResult, error) {
	return externals.AccountResult{Success: true, AvailableBalance: money.MustParse("1000000000")}, nil
}

// localRates is a flat-rate oracle: every pair quotes the same fixed 1.1000
// mid with a tight fixed spread. It exists so the core has something to execute
// against out of the box; it is not a market-data feed.
type localRates struct{}

func (localRates) GetRate(ctx context.Context, from, to string) (externals.Rate, error) {
	mid := money.MustParse("1.1000")
	spread := money.MustParse("0.0002")
	bid, _ := money.Sub(mid, money.MustParse("0.0001"))
	ask, _ := money.Add(mid, money.MustParse("0.0001"))
	return externals.Rate{Pair: from + "/" + to, Mid: mid, Bid: bid, Ask: ask, Spread: spread, Timestamp: time.Now(), QualityScore: 1.0}, nil
}

func (localRates) Subscribe(ctx context.Context, pair string) (<-chan externals.Rate, error) {
	return nil, errSubscribeUnsupported
}

var errSubscribeUnsupported = errors.New("localRates: streaming subscriptions are not supported")

// localProvider is a single always-on liquidity provider that fills the
// full requested quantity at the rate oracle's ask (buys) or bid (sells)
// with no rejections, for local exercising of the
// execution engine's slicing and scoring logic.
type localProvider struct {
	id   string
	cfg  externals.ProviderConfig
	rate localRates
}

func newLocalProvider(id string) *localProvider {
	return &localProvider{
		id: id,
		cfg: externals.ProviderConfig{
			ID: id, Priority: 1, MaxOrderSize: money.MustParse("10000000"),
			AvgLatencyMs: 20, Reliability: 0.99, CostBps: 1.0,
		},
	}
}

func (p *localProvider) ID() string                      { return p.id }
func (p *localProvider) Config() externals.ProviderConfig { return p.cfg }
func (p *localProvider) Stats() externals.ProviderStats {
	return externals.ProviderStats{SuccessRate: 99.0, AvgLatencyMs: 20, RejectRate: 0.01}
}

func (p *localProvider) Quote(ctx context.Context, pair string, quantity money.Amount, side externals.Side) (externals.Quote, error) {
	base, quote := money.Split(pair)
	rate, err := p.rate.GetRate(ctx, base, quote)
	if err != nil {
		return externals.Quote{}, err
	}
	price := rate.Bid
	if side == externals.SideBuy {
		price = rate.Ask
	}
	return externals.Quote{Price: price, Spread: rate.Spread, ValidUntil: time.Now().Add(time.Second)}, nil
}

func (p *localProvider) Execute(ctx context.Context, req externals.ExecutionRequest) (externals.ExecutionResult, error) {
	quote, err := p.Quote(ctx, req.Pair, req.Quantity, req.Side)
	if err != nil {
		return externals.ExecutionResult{}, err
	}
	commission, _ := money.Mul(req.Quantity, money.MustParse("0.00005"))
	return externals.ExecutionResult{FilledQuantity: req.Quantity, ExecutionPrice: quote.Price, Commission: commission}, nil
}

// localPayments always confirms instantly; it exists to exercise the
// settlement processor's payment/nostro plumbing locally.
type localPayments struct{}

func (localPayments) SendPayment(ctx context.Context, instr externals.PaymentInstruction) (externals.PaymentResult, error) {
	return externals.PaymentResult{Success: true, PaymentID: "local-pay", Reference: "local"}, nil
}

func (localPayments) CheckIncomingPayment(ctx context.Context, query externals.IncomingPaymentQuery) (externals.IncomingPaymentResult, error) {
	return externals.IncomingPaymentResult{Received: true, PaymentID: "local-recv", Reference: "local"}, nil
}

// localNostro is a bottomless nostro account; a real deployment backs this
// with actual correspondent-bank balances.
type localNostro struct{}

func (localNostro) Debit(ctx context.Context, currency string, amount money.Amount) error  { return nil }
func (localNostro) Credit(ctx context.Context, currency string, amount money.Amount) error { return nil }
func (localNostro) Balance(ctx context.Context, currency string) (money.Amount, error) {
	return money.MustParse("1000000000"), nil
}
