// Package externals declares the collaborators explicitly out of scope for
// this core (spec §1): the Account Manager, Rate Provider, Liquidity
// Providers, Payment System, and Compliance/Risk. The core only depends on
// these narrow interfaces so it can be exercised against fakes in tests.
package externals

import (
	"context"
	"time"

	"github.com/epic1st/fxcore/money"
)

// AccountFailureKind distinguishes the typed failures Reserve/Debit/Credit
// can return (spec §6 "failures are typed").
type AccountFailureKind string

const (
	AccountFailureNone            AccountFailureKind = ""
	AccountFailureInsufficient    AccountFailureKind = "insufficient_funds"
	AccountFailureInactive        AccountFailureKind = "account_inactive"
	AccountFailureUnknown         AccountFailureKind = "unknown"
)

// AccountResult is the common response shape for Account Manager calls.
type AccountResult struct {
	Success          bool
	AvailableBalance money.Amount
	Failure          AccountFailureKind
}

// AccountManager is the external treasury/ledger collaborator that owns
// user balances. The core never mutates balances directly.
type AccountManager interface {
	Reserve(ctx context.Context, accountID, currency string, amount money.Amount, ref string) (AccountResult, error)
	Release(ctx context.Context, accountID, currency string, amount money.Amount, ref string) (AccountResult, error)
	Debit(ctx context.Context, accountID, currency string, amount money.Amount, meta map[string]string) (AccountResult, error)
	Credit(ctx context.Context, accountID, currency string, amount money.Amount, meta map[string]string) (AccountResult, error)
	GetUserAccount(ctx context.Context, userID, currency string) (accountID string, err error)
	GetBalance(ctx context.Context, accountID string) (AccountResult, error)
}

// Rate is a mid/bid/ask quote from the Rate Provider oracle.
type Rate struct {
	Pair         string
	Mid          money.Amount
	Bid          money.Amount
	Ask          money.Amount
	Spread       money.Amount
	Timestamp    time.Time
	QualityScore float64
}

// RateProvider is the external market-data oracle. The core treats price
// discovery as solved upstream (spec Non-goals).
type RateProvider interface {
	GetRate(ctx context.Context, from, to string) (Rate, error)
	// Subscribe is optional; implementations that don't stream can return
	// a nil channel and a non-nil error.
	Subscribe(ctx context.Context, pair string) (<-chan Rate, error)
}

// Side mirrors oms.Side without importing the oms package, keeping
// externals dependency-free of the domain packages that depend on it.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Quote is a liquidity provider's two-way price for a requested clip.
type Quote struct {
	Price      money.Amount
	Spread     money.Amount
	ValidUntil time.Time
}

// ExecutionRequest is sent to a liquidity provider to work a slice.
type ExecutionRequest struct {
	ExecutionID string
	Pair        string
	Side        Side
	Quantity    money.Amount
	Price       money.Amount
	Urgency     string
}

// ExecutionResult is the liquidity provider's fill report.
type ExecutionResult struct {
	FilledQuantity  money.Amount
	ExecutionPrice  money.Amount
	Commission      money.Amount
}

// ProviderConfig is the static configuration the EE scores a provider with
// (spec §4.2 "Provider selection").
type ProviderConfig struct {
	ID            string
	Priority      int
	MaxOrderSize  money.Amount
	AvgLatencyMs  float64
	Reliability   float64 // 0..1 configured baseline
	CostBps       float64
}

// ProviderStats is the rolling-observed counterpart to ProviderConfig,
// generalized from the teacher's abook/sor.go LPHealth record.
type ProviderStats struct {
	SuccessRate   float64 // 0..100
	AvgLatencyMs  float64
	RejectRate    float64 // 0..1
}

// LiquidityProvider is an external FX liquidity venue.
type LiquidityProvider interface {
	ID() string
	Config() ProviderConfig
	Stats() ProviderStats
	Quote(ctx context.Context, pair string, qty money.Amount, side Side) (Quote, error)
	Execute(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}

// PaymentMethod mirrors spec §4.3's "Payment method selection" outcomes.
type PaymentMethod string

const (
	MethodSWIFTWire          PaymentMethod = "SWIFT_WIRE"
	MethodRTGS               PaymentMethod = "RTGS"
	MethodCorrespondentBank  PaymentMethod = "CORRESPONDENT_BANK"
)

// Priority mirrors spec §4.3's priority buckets.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

// PaymentInstruction is submitted to the external Payment System for a pay
// leg of a netting batch.
type PaymentInstruction struct {
	Currency       string
	Amount         money.Amount
	CounterpartyID string
	Method         PaymentMethod
	Priority       Priority
	ValueDate      time.Time
}

// PaymentResult is the Payment System's response to SendPayment.
type PaymentResult struct {
	Success   bool
	PaymentID string
	Reference string
}

// IncomingPaymentQuery asks the Payment System to confirm a receive leg.
type IncomingPaymentQuery struct {
	Currency       string
	Amount         money.Amount
	CounterpartyID string
	ExpectedDate   time.Time
}

// IncomingPaymentResult reports whether the expected credit has arrived.
type IncomingPaymentResult struct {
	Received  bool
	PaymentID string
	Reference string
}

// PaymentSystem is the external wire/RTGS backend.
type PaymentSystem interface {
	SendPayment(ctx context.Context, instr PaymentInstruction) (PaymentResult, error)
	CheckIncomingPayment(ctx context.Context, q IncomingPaymentQuery) (IncomingPaymentResult, error)
}

// Nostro is the core's own cash account at a correspondent bank, per
// currency. It is an external system but the core must keep a local view
// of debits/credits it has issued so SE can reconcile (spec §4.3 "Pay
// leg: debit nostro(currency)").
type Nostro interface {
	Debit(ctx context.Context, currency string, amount money.Amount) error
	Credit(ctx context.Context, currency string, amount money.Amount) error
	Balance(ctx context.Context, currency string) (money.Amount, error)
}

// OrderRiskParams is the subset of an order the Compliance/Risk collaborator
// evaluates before OM accepts it.
type OrderRiskParams struct {
	UserID       string
	Pair         string
	Side         Side
	Quantity     money.Amount
	Price        money.Amount
}

// RiskAssessment is the Compliance/Risk collaborator's verdict.
type RiskAssessment struct {
	Approved bool
	Reason   string
	Warnings []string
}

// ComplianceChecker is the optional external compliance/risk veto engine.
// A nil ComplianceChecker means "no veto configured" — OM/SE must treat
// that as always-approved, not as an error.
type ComplianceChecker interface {
	AssessOrderRisk(ctx context.Context, params OrderRiskParams) (RiskAssessment, error)
	CheckOrderCompliance(ctx context.Context, params OrderRiskParams) (RiskAssessment, error)
	CheckSettlement(ctx context.Context, settlementID string, params OrderRiskParams) (RiskAssessment, error)
}
