package oms

import (
	"sort"
	"sync"

	"github.com/epic1st/fxcore/money"
)

// OrderBookSide holds one currency pair's resting buy and sell orders,
// in price-time priority (spec §3 "OrderBookSide", §4.1 "Book sort &
// tie-breaks"). Only orders in {pending,submitted,partial_filled} belong
// here; OM removes an order the instant it becomes terminal.
type OrderBookSide struct {
	mu   sync.RWMutex
	pair string
	buy  []*Order
	sell []*Order
}

func newOrderBookSide(pair string) *OrderBookSide {
	return &OrderBookSide{pair: pair}
}

// Insert adds o to the appropriate side and re-sorts it into place.
func (b *OrderBookSide) Insert(o *Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o.Side == SideBuy {
		b.buy = append(b.buy, o)
		sortBuySide(b.buy)
	} else {
		b.sell = append(b.sell, o)
		sortSellSide(b.sell)
	}
}

// Remove takes orderID off whichever side it sits on. A no-op if absent.
func (b *OrderBookSide) Remove(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buy = removeByID(b.buy, orderID)
	b.sell = removeByID(b.sell, orderID)
}

// Resort re-applies sort order after an in-place price/tif mutation
// (ModifyOrder's "Price/stop/tif changes update book ordering").
func (b *OrderBookSide) Resort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	sortBuySide(b.buy)
	sortSellSide(b.sell)
}

// Snapshot returns up to depth entries per side, in priority order.
func (b *OrderBookSide) Snapshot(depth int) (buy, sell []BookEntry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	buy = snapshotSide(b.buy, depth)
	sell = snapshotSide(b.sell, depth)
	return buy, sell
}

func snapshotSide(orders []*Order, depth int) []BookEntry {
	n := len(orders)
	if depth > 0 && depth < n {
		n = depth
	}
	out := make([]BookEntry, 0, n)
	for i := 0; i < n; i++ {
		o := orders[i]
		out = append(out, BookEntry{
			OrderID:   o.ID,
			Side:      o.Side,
			OrderType: o.OrderType,
			Price:     o.Price,
			Quantity:  o.RemainingQuantity,
			CreatedAt: o.CreatedAt,
		})
	}
	return out
}

func removeByID(orders []*Order, id string) []*Order {
	for i, o := range orders {
		if o.ID == id {
			return append(orders[:i], orders[i+1:]...)
		}
	}
	return orders
}

// sortBuySide orders market-first, then price descending, then createdAt
// ascending (FIFO), then id lexicographic as a stable final tiebreak.
func sortBuySide(orders []*Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return less(orders[i], orders[j], true)
	})
}

// sortSellSide orders market-first, then price ascending, then createdAt
// ascending, then id lexicographic.
func sortSellSide(orders []*Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return less(orders[i], orders[j], false)
	})
}

func less(a, b *Order, buySide bool) bool {
	aMkt := a.OrderType == TypeMarket
	bMkt := b.OrderType == TypeMarket
	if aMkt != bMkt {
		return aMkt // market orders sort first
	}
	if !aMkt && !bMkt {
		cmp := money.Cmp(a.Price, b.Price)
		if cmp != 0 {
			if buySide {
				return cmp > 0 // descending
			}
			return cmp < 0 // ascending
		}
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
