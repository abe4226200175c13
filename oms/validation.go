package oms

import (
	"strings"

	"github.com/epic1st/fxcore/config"
	"github.com/epic1st/fxcore/coreerr"
	"github.com/epic1st/fxcore/money"
)

// validateCreate applies every rule in spec §4.1 "Validation rules". It
// never mutates balances — a failed validation is always a pure function
// of its inputs.
func validateCreate(cid string, cfg config.OrderManagerConfig, p CreateOrderParams, openOrderCount int) error {
	switch p.OrderType {
	case TypeMarket, TypeLimit, TypeStop, TypeStopLimit, TypeTrailingStop:
	default:
		return coreerr.Validation(cid, "unsupported order type %q", p.OrderType)
	}

	if !strings.Contains(p.CurrencyPair, "/") {
		return coreerr.Validation(cid, "currencyPair %q must contain '/'", p.CurrencyPair)
	}

	minSize, err := money.Parse(cfg.MinOrderSize)
	if err != nil {
		return coreerr.Fatal(cid, err, "invalid configured min order size")
	}
	maxSize, err := money.Parse(cfg.MaxOrderSize)
	if err != nil {
		return coreerr.Fatal(cid, err, "invalid configured max order size")
	}
	if money.LessThan(p.Quantity, minSize) {
		return coreerr.Validation(cid, "quantity below minOrderSize")
	}
	if money.GreaterThan(p.Quantity, maxSize) {
		return coreerr.Validation(cid, "quantity above maxOrderSize")
	}

	switch p.OrderType {
	case TypeStop, TypeStopLimit, TypeTrailingStop:
		if money.IsZero(p.StopPrice) {
			return coreerr.Validation(cid, "stopPrice required for order type %q", p.OrderType)
		}
	}

	if p.OrderType == TypeStopLimit {
		if money.IsZero(p.Price) {
			return coreerr.Validation(cid, "price required for stop_limit orders")
		}
		if p.Side == SideBuy && !money.GreaterThan(p.StopPrice, p.Price) {
			return coreerr.Validation(cid, "buy stop_limit requires stopPrice > price")
		}
		if p.Side == SideSell && !money.LessThan(p.StopPrice, p.Price) {
			return coreerr.Validation(cid, "sell stop_limit requires stopPrice < price")
		}
	}

	if openOrderCount >= cfg.MaxOrdersPerUser {
		return coreerr.Validation(cid, "maxOrdersPerUser (%d) reached", cfg.MaxOrdersPerUser)
	}

	switch p.TimeInForce {
	case TIFGTC, TIFIOC, TIFFOK, TIFDAY:
	default:
		return coreerr.Validation(cid, "unsupported timeInForce %q", p.TimeInForce)
	}

	return nil
}
