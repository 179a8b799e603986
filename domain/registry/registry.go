// Package registry maps (base, quote) asset pairs to market ids and holds
// each market's book parameters. A pair can be registered once.
package registry

import (
	"sync"

	"econia/domain/errs"
	"econia/domain/identity"
	"econia/domain/orderbook"
)

// Market is a registered market.
type Market struct {
	ID     uint64           `json:"id"`
	Base   Asset            `json:"base"`
	Quote  Asset            `json:"quote"`
	Params orderbook.Params `json:"params"`
}

type pair struct {
	base  Asset
	quote Asset
}

// Registry is safe for concurrent use. Market ids are assigned sequentially
// from 1.
type Registry struct {
	mtx     sync.RWMutex
	auth    *identity.Authority
	markets []Market
	byPair  map[pair]uint64
}

// New creates an empty registry validating underwriters against auth.
func New(auth *identity.Authority) *Registry {
	return &Registry{auth: auth, byPair: make(map[pair]uint64)}
}

// RegisterMarket registers a market for base and quote. Markets with a
// generic base must be underwritten: underwriter is validated and its id
// recorded in the market's params. For coin-only markets underwriter is
// ignored and may be the zero value.
func (r *Registry) RegisterMarket(base, quote Asset, params orderbook.Params, underwriter identity.UnderwriterCapability) (Market, error) {
	if err := base.Validate(); err != nil {
		return Market{}, err
	}
	if err := quote.Validate(); err != nil {
		return Market{}, err
	}
	if quote.Kind != CoinAsset {
		return Market{}, errs.New(errs.ErrInvalidAsset, "quote must be a coin, got %s", quote)
	}
	if base == quote {
		return Market{}, errs.New(errs.ErrInvalidAsset, "base and quote are both %s", base)
	}
	params.UnderwriterID = 0
	if base.Kind == GenericAsset {
		if err := r.auth.ValidateUnderwriter(underwriter); err != nil {
			return Market{}, err
		}
		params.UnderwriterID = underwriter.ID()
	}
	if err := params.Validate(); err != nil {
		return Market{}, err
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()
	k := pair{base: base, quote: quote}
	if id, dup := r.byPair[k]; dup {
		return Market{}, errs.New(errs.ErrMarketExists, "%s/%s is market %d", base, quote, id)
	}
	m := Market{ID: uint64(len(r.markets)) + 1, Base: base, Quote: quote, Params: params}
	r.markets = append(r.markets, m)
	r.byPair[k] = m.ID
	return m, nil
}

// ResolveMarket returns the id of the market for base and quote.
func (r *Registry) ResolveMarket(base, quote Asset) (uint64, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	id, ok := r.byPair[pair{base: base, quote: quote}]
	if !ok {
		return 0, errs.New(errs.ErrMarketNotFound, "%s/%s", base, quote)
	}
	return id, nil
}

// MarketExists reports whether id is registered.
func (r *Registry) MarketExists(id uint64) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return id >= 1 && id <= uint64(len(r.markets))
}

// Market returns the market with the given id.
func (r *Registry) Market(id uint64) (Market, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if id < 1 || id > uint64(len(r.markets)) {
		return Market{}, errs.New(errs.ErrMarketNotFound, "market %d", id)
	}
	return r.markets[id-1], nil
}

// MarketParams returns the book parameters of market id.
func (r *Registry) MarketParams(id uint64) (orderbook.Params, error) {
	m, err := r.Market(id)
	if err != nil {
		return orderbook.Params{}, err
	}
	return m.Params, nil
}

// Markets lists every market by id.
func (r *Registry) Markets() []Market {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return append([]Market(nil), r.markets...)
}
