package service

import (
	"econia/domain/custody"
	"econia/domain/errs"
	"econia/domain/orderbook"
	"econia/domain/registry"
)

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//
// Queries take the market lock, so they only ever observe state between
// commands.

// PriceLevels returns up to depth levels per side, best first. A depth of
// zero returns every level.
func (s *ExchangeService) PriceLevels(marketID uint64, depth int) (asks, bids []orderbook.LevelView, err error) {
	m, err := s.market(marketID)
	if err != nil {
		return nil, nil, err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	book := m.engine.Book()
	return book.Depth(orderbook.Ask, depth), book.Depth(orderbook.Bid, depth), nil
}

// Order returns a resting order.
func (s *ExchangeService) Order(marketID uint64, id orderbook.OrderID) (orderbook.Order, error) {
	m, err := s.market(marketID)
	if err != nil {
		return orderbook.Order{}, err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	o, ok := m.engine.Book().Lookup(id)
	if !ok {
		return orderbook.Order{}, errs.New(errs.ErrOrderNotFound, "order %s in market %d", id, marketID)
	}
	return o, nil
}

// TopOfBook is the best price on each side. A side is absent when it has no orders.
type TopOfBook struct {
	Bid    uint64
	HasBid bool
	Ask    uint64
	HasAsk bool
}

func (s *ExchangeService) BestBidAsk(marketID uint64) (TopOfBook, error) {
	m, err := s.market(marketID)
	if err != nil {
		return TopOfBook{}, err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	book := m.engine.Book()
	var q TopOfBook
	q.Bid, q.HasBid = book.BestPrice(orderbook.Bid)
	q.Ask, q.HasAsk = book.BestPrice(orderbook.Ask)
	return q, nil
}

// Position returns the caller's position in a market. A caller that never
// deposited gets an empty position.
func (s *ExchangeService) Position(c Caller, marketID uint64) (custody.PositionView, error) {
	actor, err := s.actor(c)
	if err != nil {
		return custody.PositionView{}, err
	}
	m, err := s.market(marketID)
	if err != nil {
		return custody.PositionView{}, err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	pos, _ := s.ledger.Position(custody.KeyFor(marketID, actor))
	return pos, nil
}

// OpenOrders returns the caller's resting orders in ascending id order.
func (s *ExchangeService) OpenOrders(c Caller, marketID uint64) ([]orderbook.Order, error) {
	actor, err := s.actor(c)
	if err != nil {
		return nil, err
	}
	m, err := s.market(marketID)
	if err != nil {
		return nil, err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	pos, ok := s.ledger.Position(custody.KeyFor(marketID, actor))
	if !ok {
		return nil, nil
	}
	book := m.engine.Book()
	out := make([]orderbook.Order, 0, len(pos.OpenOrders))
	for _, id := range pos.OpenOrders {
		o, ok := book.Lookup(id)
		if !ok {
			return nil, errs.New(errs.ErrInvariant, "open order %s not resting", id)
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *ExchangeService) Market(id uint64) (registry.Market, error) {
	return s.registry.Market(id)
}

func (s *ExchangeService) ResolveMarket(base, quote registry.Asset) (uint64, error) {
	return s.registry.ResolveMarket(base, quote)
}

func (s *ExchangeService) Markets() []registry.Market {
	return s.registry.Markets()
}
