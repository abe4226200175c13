package settlement

import (
	"context"

	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/money"
)

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

type fakeRates struct{}

func (fakeRates) GetRate(ctx context.Context, from, to string) (externals.Rate, error) {
	return externals.Rate{Pair: from + "/" + to, Mid: money.MustParse("1.1000"), Bid: money.MustParse("1.0998"), Ask: money.MustParse("1.1002")}, nil
}
func (fakeRates) Subscribe(ctx context.Context, pair string) (<-chan externals.Rate, error) {
	return nil, nil
}

// fakePayments succeeds unless a test sets sendFail or receiveFail to
// force a failure.
type fakePayments struct {
	sendFail    bool
	receiveFail bool
	sendCalls   int
	receiveCalls int
}

func (f *fakePayments) SendPayment(ctx context.Context, instr externals.PaymentInstruction) (externals.PaymentResult, error) {
	f.sendCalls++
	if f.sendFail {
		return externals.PaymentResult{Success: false}, nil
	}
	return externals.PaymentResult{Success: true, PaymentID: "pay-1", Reference: "ref-1"}, nil
}

func (f *fakePayments) CheckIncomingPayment(ctx context.Context, q externals.IncomingPaymentQuery) (externals.IncomingPaymentResult, error) {
	f.receiveCalls++
	if f.receiveFail {
		return externals.IncomingPaymentResult{Received: false}, nil
	}
	return externals.IncomingPaymentResult{Received: true, PaymentID: "recv-1"}, nil
}

type fakeNostro struct {
	debitFail  bool
	debits     map[string]money.Amount
	credits    map[string]money.Amount
}

func newFakeNostro() *fakeNostro {
	return &fakeNostro{debits: make(map[string]money.Amount), credits: make(map[string]money.Amount)}
}

func (n *fakeNostro) Debit(ctx context.Context, currency string, amount money.Amount) error {
	if n.debitFail {
		return errInsufficientNostro
	}
	n.debits[currency] = amount
	return nil
}

func (n *fakeNostro) Credit(ctx context.Context, currency string, amount money.Amount) error {
	n.credits[currency] = amount
	return nil
}

func (n *fakeNostro) Balance(ctx context.Context, currency string) (money.Amount, error) {
	return money.MustParse("1000000000"), nil
}

type fakeCompliance struct {
	vetoSettlements map[string]bool
}

func (c *fakeCompliance) AssessOrderRisk(ctx context.Context, params externals.OrderRiskParams) (externals.RiskAssessment, error) {
	return externals.RiskAssessment{Approved: true}, nil
}

func (c *fakeCompliance) CheckOrderCompliance(ctx context.Context, params externals.OrderRiskParams) (externals.RiskAssessment, error) {
	return externals.RiskAssessment{Approved: true}, nil
}

func (c *fakeCompliance) CheckSettlement(ctx context.Context, settlementID string, params externals.OrderRiskParams) (externals.RiskAssessment, error) {
	if c.vetoSettlements[settlementID] {
		return externals.RiskAssessment{Approved: false, Reason: "sanctioned counterparty"}, nil
	}
	return externals.RiskAssessment{Approved: true}, nil
}

type errNostroShortfall struct{}

func (errNostroShortfall) Error() string { return "insufficient nostro balance" }

var errInsufficientNostro error = errNostroShortfall{}
