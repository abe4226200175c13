package execution

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/epic1st/fxcore/config"
	"github.com/epic1st/fxcore/coreerr"
	"github.com/epic1st/fxcore/events"
	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/logging"
	"github.com/epic1st/fxcore/metrics"
	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
)

// Engine is the Execution Engine. It owns transient execution Contexts and
// references OM orders only by id (spec §3 "Ownership"); it never touches
// an oms.Order directly, only through Service.RecordFill.
type Engine struct {
	cfg       config.ExecutionConfig
	orders    *oms.Service
	providers []externals.LiquidityProvider
	rates     externals.RateProvider
	bus       *events.Bus

	mu       sync.RWMutex
	contexts map[string]*Context
}

// NewEngine constructs an Execution Engine against a fixed provider set.
func NewEngine(cfg config.ExecutionConfig, orders *oms.Service, providers []externals.LiquidityProvider, rates externals.RateProvider, bus *events.Bus) *Engine {
	return &Engine{
		cfg:       cfg,
		orders:    orders,
		providers: providers,
		rates:     rates,
		bus:       bus,
		contexts:  make(map[string]*Context),
	}
}

// Execute begins working an accepted order under opts (spec §4.2 "Public
// contract"). It returns immediately; RunDispatcher drives the context to
// completion on its own goroutine.
func (e *Engine) Execute(ctx context.Context, order *oms.Order, opts Options) (string, error) {
	algo := selectAlgorithm(order, opts.Algorithm)

	c := &Context{
		ExecutionID:     uuid.NewString(),
		OrderID:         order.ID,
		UserID:          order.UserID,
		Pair:            order.CurrencyPair,
		Side:            order.Side,
		Algorithm:       algo,
		Options:         opts,
		Remaining:       order.RemainingQuantity,
		AveragePrice:    money.Zero,
		StartTime:       time.Now(),
		Status:          ContextRunning,
		MaxPartialFills: e.cfg.MaxPartialFills,
	}

	e.mu.Lock()
	e.contexts[c.ExecutionID] = c
	e.mu.Unlock()

	e.bus.Publish(events.Event{
		Kind: events.KindExecutionStarted, CorrelationID: c.ExecutionID,
		Payload: events.ExecutionStartedPayload{OrderID: order.ID, ExecutionID: c.ExecutionID, Algorithm: string(algo)},
	})
	logging.Info("execution started",
		logging.ExecutionID(c.ExecutionID), logging.OrderID(order.ID), logging.Pair(order.CurrencyPair),
		logging.String("algorithm", string(algo)))

	return c.ExecutionID, nil
}

// RunDispatcher drives every active context forward on a fixed tick, until
// ctx is cancelled. One engine instance owns exactly one dispatcher.
func (e *Engine) RunDispatcher(ctx context.Context) error {
	interval := e.cfg.TickInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			e.tick(ctx, now)
		}
	}
}

func (e *Engine) tick(ctx context.Context, now time.Time) {
	e.mu.RLock()
	active := make([]*Context, 0, len(e.contexts))
	for _, c := range e.contexts {
		if c.Status == ContextRunning {
			active = append(active, c)
		}
	}
	e.mu.RUnlock()

	for _, c := range active {
		e.advance(ctx, c, now)
	}
}

// advance runs one dispatcher step for a single context: timeout check,
// completion check, then (if neither) fetch a market snapshot, ask the
// algorithm for the next slice, and work it against the provider pool.
func (e *Engine) advance(ctx context.Context, c *Context, now time.Time) {
	c.mu.Lock()
	timedOut := c.elapsed(now) > c.timeLimit()
	done := money.LessThanOrEqual(c.Remaining, money.Zero)
	c.mu.Unlock()

	if timedOut {
		e.finishTimeout(c)
		return
	}
	if done {
		e.finishCompleted(c)
		return
	}

	mkt, err := e.marketSnapshot(ctx, c.Pair)
	if err != nil {
		e.recordFailure(c, err)
		return
	}

	c.mu.Lock()
	slice := nextSlice(c, now, mkt)
	c.mu.Unlock()
	if slice == nil || money.IsZero(slice.Quantity) {
		return
	}

	e.workSlice(ctx, c, slice, mkt)
}

// workSlice fans out a quote request to every candidate provider
// concurrently (errgroup), scores the responses, and executes against the
// winner.
func (e *Engine) workSlice(ctx context.Context, c *Context, slice *Slice, mkt MarketSnapshot) {
	candidates := e.candidateProviders(c.Options.PreferredProviders)
	if len(candidates) == 0 {
		e.recordFailure(c, coreerr.Provider(c.ExecutionID, false, "no liquidity providers configured"))
		return
	}

	side := externals.Side(c.Side)

	type quoted struct {
		provider externals.LiquidityProvider
		quote    externals.Quote
		score    float64
	}
	results := make([]*quoted, len(candidates))

	if e.cfg.EnableSmartRouting {
		g, gctx := errgroup.WithContext(ctx)
		for i, p := range candidates {
			i, p := i, p
			g.Go(func() error {
				q, err := p.Quote(gctx, c.Pair, slice.Quantity, side)
				if err != nil {
					return nil // a quote failure just drops that candidate
				}
				score := scoreProvider(p.Config(), p.Stats(), q, slice.Quantity)
				metrics.SetProviderScore(p.ID(), score)
				results[i] = &quoted{provider: p, quote: q, score: score}
				return nil
			})
		}
		_ = g.Wait()
	} else {
		q, err := candidates[0].Quote(ctx, c.Pair, slice.Quantity, side)
		if err == nil {
			results[0] = &quoted{provider: candidates[0], quote: q, score: 0}
		}
	}

	var best *quoted
	for _, r := range results {
		if r == nil {
			continue
		}
		if best == nil || r.score > best.score {
			best = r
		}
	}
	if best == nil {
		e.recordFailure(c, coreerr.Provider(c.ExecutionID, true, "no provider returned a usable quote"))
		return
	}

	target := slice.TargetPrice
	if money.IsZero(target) {
		if c.Side == oms.SideBuy {
			target = mkt.Ask
		} else {
			target = mkt.Bid
		}
	}

	slippage := slippageFraction(c.Side, target, best.quote.Price)
	if slippage > c.maxSlippage() {
		metrics.RecordSliceFill(best.provider.ID(), "rejected_slippage")
		e.recordFailure(c, coreerr.Provider(c.ExecutionID, true, "quote slippage %.4f exceeds limit %.4f", slippage, c.maxSlippage()))
		return
	}

	req := externals.ExecutionRequest{
		ExecutionID: c.ExecutionID,
		Pair:        c.Pair,
		Side:        side,
		Quantity:    slice.Quantity,
		Price:       best.quote.Price,
		Urgency:     string(slice.Urgency),
	}
	result, err := best.provider.Execute(ctx, req)
	if err != nil {
		metrics.RecordSliceFill(best.provider.ID(), "error")
		e.recordFailure(c, coreerr.Provider(c.ExecutionID, true, "provider %s execute failed: %v", best.provider.ID(), err))
		return
	}

	c.mu.Lock()
	c.ConsecutiveFailures = 0
	c.recordFill(result.FilledQuantity, result.ExecutionPrice)
	c.mu.Unlock()
	metrics.RecordSliceFill(best.provider.ID(), "filled")

	improvement := priceImprovement(c.Side, target, result.ExecutionPrice)
	bps := money.ToFloat64(improvement) * 10000
	metrics.ObservePriceImprovement(c.Pair, bps)

	fill := oms.Fill{
		ExecutionID:      c.ExecutionID + ":" + uuid.NewString(),
		OrderID:          c.OrderID,
		ProviderID:       best.provider.ID(),
		Quantity:         result.FilledQuantity,
		Price:            result.ExecutionPrice,
		Timestamp:        time.Now(),
		Commission:       result.Commission,
		PriceImprovement: improvement,
	}
	if err := e.orders.RecordFill(ctx, c.OrderID, fill); err != nil && !coreerr.Is(err, coreerr.KindStateConflict) {
		logging.Error("failed to record fill against order", err, logging.OrderID(c.OrderID), logging.ExecutionID(c.ExecutionID))
	}

	e.bus.Publish(events.Event{
		Kind: events.KindSliceExecuted, CorrelationID: c.ExecutionID,
		Payload: events.SliceExecutedPayload{
			OrderID: c.OrderID, ExecutionID: c.ExecutionID, ProviderID: best.provider.ID(),
			Quantity: result.FilledQuantity.String(), Price: result.ExecutionPrice.String(), Commission: result.Commission.String(),
		},
	})
}

// slippageFraction is |executed - target| / target, always non-negative.
func slippageFraction(side oms.Side, target, executed money.Amount) float64 {
	if money.IsZero(target) {
		return 0
	}
	diff, _ := money.Sub(executed, target)
	frac, err := money.Quo(money.Abs(diff), target)
	if err != nil {
		return 0
	}
	return money.ToFloat64(frac)
}

// priceImprovement is positive when the fill beat the target price: lower
// for a buy, higher for a sell.
func priceImprovement(side oms.Side, target, executed money.Amount) money.Amount {
	if side == oms.SideBuy {
		d, _ := money.Sub(target, executed)
		return d
	}
	d, _ := money.Sub(executed, target)
	return d
}

func (e *Engine) candidateProviders(preferred []string) []externals.LiquidityProvider {
	if len(preferred) == 0 {
		return e.providers
	}
	want := make(map[string]bool, len(preferred))
	for _, id := range preferred {
		want[id] = true
	}
	var out []externals.LiquidityProvider
	for _, p := range e.providers {
		if want[p.ID()] {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return e.providers
	}
	return out
}

func (e *Engine) marketSnapshot(ctx context.Context, pair string) (MarketSnapshot, error) {
	base, quote := money.Split(pair)
	rate, err := e.rates.GetRate(ctx, base, quote)
	if err != nil {
		return MarketSnapshot{}, coreerr.DataStale(pair, "rate unavailable for %s: %v", pair, err)
	}
	spread, _ := money.Sub(rate.Ask, rate.Bid)
	return MarketSnapshot{Bid: rate.Bid, Ask: rate.Ask, Spread: spread}, nil
}

// recordFailure bumps ConsecutiveFailures and, once it exceeds
// maxPartialFills, fails the whole execution (spec §4.2 "Failure semantics").
func (e *Engine) recordFailure(c *Context, cause error) {
	c.mu.Lock()
	c.ConsecutiveFailures++
	exceeded := c.ConsecutiveFailures > c.MaxPartialFills
	c.mu.Unlock()

	logging.Warn("execution slice failed", logging.ExecutionID(c.ExecutionID), logging.OrderID(c.OrderID), logging.String("reason", cause.Error()))

	if !exceeded {
		return
	}

	c.mu.Lock()
	c.Status = ContextError
	c.EndTime = time.Now()
	c.mu.Unlock()

	metrics.ObserveExecutionLatency(string(c.Algorithm), float64(c.EndTime.Sub(c.StartTime).Milliseconds()))
	e.bus.Publish(events.Event{
		Kind: events.KindExecutionError, CorrelationID: c.ExecutionID,
		Payload: events.ExecutionErrorPayload{OrderID: c.OrderID, ExecutionID: c.ExecutionID, Reason: cause.Error()},
	})
}

func (e *Engine) finishCompleted(c *Context) {
	c.mu.Lock()
	if c.Status != ContextRunning {
		c.mu.Unlock()
		return
	}
	c.Status = ContextCompleted
	c.EndTime = time.Now()
	avg, filled := c.AveragePrice, c.FilledQuantity
	c.mu.Unlock()

	metrics.ObserveExecutionLatency(string(c.Algorithm), float64(c.EndTime.Sub(c.StartTime).Milliseconds()))
	logging.Info("execution completed", logging.ExecutionID(c.ExecutionID), logging.OrderID(c.OrderID))
	e.bus.Publish(events.Event{
		Kind: events.KindExecutionCompleted, CorrelationID: c.ExecutionID,
		Payload: events.ExecutionCompletedPayload{
			OrderID: c.OrderID, ExecutionID: c.ExecutionID, AveragePrice: avg.String(),
			SlippageBps: c.SlippageBps, FilledQuantity: filled.String(),
		},
	})
}

func (e *Engine) finishTimeout(c *Context) {
	c.mu.Lock()
	if c.Status != ContextRunning {
		c.mu.Unlock()
		return
	}
	c.Status = ContextTimeout
	c.EndTime = time.Now()
	filled, remaining := c.FilledQuantity, c.Remaining
	c.mu.Unlock()

	metrics.ObserveExecutionLatency(string(c.Algorithm), float64(c.EndTime.Sub(c.StartTime).Milliseconds()))
	logging.Warn("execution timed out", logging.ExecutionID(c.ExecutionID), logging.OrderID(c.OrderID),
		logging.String("filled", filled.String()), logging.String("remaining", remaining.String()))
	e.bus.Publish(events.Event{
		Kind: events.KindExecutionTimeout, CorrelationID: c.ExecutionID,
		Payload: events.ExecutionTimeoutPayload{
			OrderID: c.OrderID, ExecutionID: c.ExecutionID, FilledQuantity: filled.String(), RemainingQty: remaining.String(),
		},
	})
}

// Inspect returns a snapshot of an execution context's public state, or
// false if unknown.
func (e *Engine) Inspect(executionID string) (status ContextStatus, filled, remaining money.Amount, ok bool) {
	e.mu.RLock()
	c, exists := e.contexts[executionID]
	e.mu.RUnlock()
	if !exists {
		return "", money.Zero, money.Zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Status, c.FilledQuantity, c.Remaining, true
}
