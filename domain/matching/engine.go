// Package matching runs taker orders against a market's book and settles
// each fill in the custody ledger.
//
// A placement runs in two passes. The planning pass walks the opposing side
// and records the fills and self match cancels the order would cause,
// without touching anything; every policy rejection happens there. The
// execution pass stages the collateral changes in a ledger transaction and,
// only once every transfer has staged cleanly, mutates the book and commits
// the transaction. A rejected call therefore leaves both untouched.
package matching

import (
	"econia/domain/custody"
	"econia/domain/errs"
	"econia/domain/events"
	"econia/domain/orderbook"
)

// Engine matches orders for one market. Like the book it wraps, it is
// single-writer.
type Engine struct {
	book   *orderbook.Book
	ledger *custody.Ledger
}

// New returns an engine for book that settles into ledger.
func New(book *orderbook.Book, ledger *custody.Ledger) *Engine {
	return &Engine{book: book, ledger: ledger}
}

// Book returns the engine's book.
func (e *Engine) Book() *orderbook.Book { return e.book }

type step struct {
	order  orderbook.Order
	cancel bool
	fill   Fill
}

type plan struct {
	req            Request
	steps          []step
	filled         uint64
	remaining      uint64
	takerCancelled bool
	post           uint64
	orderID        orderbook.OrderID
	evict          *orderbook.Order
	state          State
}

// PlaceLimit matches a limit order and posts whatever its restriction
// allows to rest.
func (e *Engine) PlaceLimit(req Request) (Result, error) {
	req.Market = false
	return e.place(req)
}

// PlaceMarket matches an order with no limit price. Nothing is ever posted.
func (e *Engine) PlaceMarket(req Request) (Result, error) {
	req.Market = true
	req.Price = 0
	return e.place(req)
}

func (e *Engine) place(req Request) (Result, error) {
	if err := e.validate(req); err != nil {
		return Result{State: Aborted}, err
	}
	pl, err := e.match(req)
	if err != nil {
		return Result{State: Aborted}, err
	}
	res, err := e.execute(pl)
	if err != nil {
		return Result{State: Aborted}, err
	}
	return res, nil
}

func (e *Engine) validate(req Request) error {
	params := e.book.Params()
	if !req.Side.Valid() {
		return errs.New(errs.ErrInvalidSide, "side %d", req.Side)
	}
	if req.Size == 0 {
		return errs.New(errs.ErrInvalidSize, "zero size")
	}
	if !req.Restriction.Valid() {
		return errs.New(errs.ErrInvalidRestriction, "%s", req.Restriction)
	}
	if !req.SelfMatch.Valid() {
		return errs.New(errs.ErrInvalidSelfMatch, "%s", req.SelfMatch)
	}
	if _, err := params.BaseAmount(req.Size); err != nil {
		return err
	}
	if req.Market {
		if req.Restriction == PostOrAbort {
			return errs.New(errs.ErrInvalidRestriction, "market orders cannot post")
		}
		return nil
	}
	if req.Size < params.MinSize {
		return errs.New(errs.ErrInvalidSize, "size %d below minimum %d", req.Size, params.MinSize)
	}
	if req.Price == 0 || req.Price > orderbook.MaxPrice {
		return errs.New(errs.ErrInvalidPrice, "price %d", req.Price)
	}
	if _, err := params.QuoteAmount(req.Size, req.Price); err != nil {
		return err
	}
	return nil
}

// crosses reports whether a taker on side with limit price limit may trade
// with a resting order at price.
func crosses(side orderbook.Side, limit, price uint64) bool {
	if side == orderbook.Bid {
		return price <= limit
	}
	return price >= limit
}

func (e *Engine) match(req Request) (*plan, error) {
	params := e.book.Params()
	pl := &plan{req: req, remaining: req.Size, state: Matching}
	makerSide := req.Side.Opposite()
	c := e.book.Cursor(makerSide)

match:
	for pl.remaining > 0 {
		o, ok := c.Next()
		if !ok {
			break
		}
		if !req.Market && !crosses(req.Side, req.Price, o.Price) {
			break
		}
		if req.Restriction == PostOrAbort {
			return nil, errs.New(errs.ErrPostOrAbortCrossed, "%s at %d meets %s at %d", req.Side, req.Price, makerSide, o.Price)
		}
		if o.Actor() == req.Actor {
			switch req.SelfMatch {
			case SelfMatchAbort:
				return nil, errs.New(errs.ErrSelfMatch, "taker meets own order %s", o.ID)
			case CancelMaker:
				pl.steps = append(pl.steps, step{order: o, cancel: true})
				continue
			case CancelTaker:
				pl.takerCancelled = true
			case CancelBoth:
				pl.steps = append(pl.steps, step{order: o, cancel: true})
				pl.takerCancelled = true
			}
			break match
		}

		size := min(pl.remaining, o.Size)
		base, err := params.BaseAmount(size)
		if err != nil {
			return nil, err
		}
		quote, err := params.QuoteAmount(size, o.Price)
		if err != nil {
			return nil, err
		}
		pl.steps = append(pl.steps, step{order: o, fill: Fill{
			MakerOrderID: o.ID,
			Maker:        o.Actor(),
			MakerSide:    makerSide,
			Price:        o.Price,
			Size:         size,
			BaseAmount:   base,
			QuoteAmount:  quote,
		}})
		pl.filled += size
		pl.remaining -= size
	}

	switch {
	case pl.remaining == 0:
		pl.state = FullyFilled
	case pl.takerCancelled:
		pl.state = Aborted
	default:
		pl.state = Exhausted
	}
	if req.Restriction == FillOrAbort && pl.remaining > 0 {
		return nil, errs.New(errs.ErrFillOrAbortUnderfilled, "filled %d of %d", pl.filled, req.Size)
	}
	if pl.remaining > 0 && pl.remaining >= params.MinSize && !pl.takerCancelled && !req.Market &&
		(req.Restriction == NoRestriction || req.Restriction == PostOrAbort) {
		if err := e.planPost(pl); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

// planPost reserves the id the remainder will rest under and, on a full
// side, picks the order it evicts.
func (e *Engine) planPost(pl *plan) error {
	if e.book.Counter() == orderbook.MaxCounter {
		return errs.New(errs.ErrOverflow, "order counter exhausted in market %d", e.book.MarketID())
	}
	side := pl.req.Side
	pl.post = pl.remaining
	pl.orderID = orderbook.NewOrderID(side, pl.req.Price, e.book.Counter()+1)

	limit := e.book.Params().MaxOrdersPerSide
	if limit == 0 || e.book.Len(side) < limit {
		return nil
	}
	worst, ok := e.book.Worst(side)
	if !ok {
		return errs.New(errs.ErrInvariant, "%s side holds %d orders but has no worst", side, e.book.Len(side))
	}
	// Ids order asks best first and bids worst first.
	better := pl.orderID.Less(worst.ID)
	if side == orderbook.Bid {
		better = worst.ID.Less(pl.orderID)
	}
	if !better {
		return errs.New(errs.ErrPriorityTooLow, "%s side full, worst order %s at %d", side, worst.ID, worst.Price)
	}
	pl.evict = &worst
	return nil
}

func (e *Engine) execute(pl *plan) (Result, error) {
	req := pl.req
	params := e.book.Params()
	marketID := e.book.MarketID()
	takerKey := custody.KeyFor(marketID, req.Actor)
	tx := e.ledger.Begin()

	// Releases stage before the taker's lock: collateral freed from the
	// taker's own cancelled orders may fund the new one.
	for _, s := range pl.steps {
		if s.cancel {
			if err := e.release(tx, s.order); err != nil {
				return Result{}, err
			}
		}
	}
	if pl.evict != nil {
		if err := e.release(tx, *pl.evict); err != nil {
			return Result{}, err
		}
	}

	var lock uint64
	var err error
	for _, s := range pl.steps {
		if s.cancel {
			continue
		}
		amount := s.fill.BaseAmount
		if req.Side == orderbook.Bid {
			amount = s.fill.QuoteAmount
		}
		if lock, err = orderbook.Add(lock, amount); err != nil {
			return Result{}, err
		}
	}
	if pl.post > 0 {
		held, err := params.Collateral(req.Side, pl.post, req.Price)
		if err != nil {
			return Result{}, err
		}
		if lock, err = orderbook.Add(lock, held); err != nil {
			return Result{}, err
		}
	}
	if lock > 0 {
		if err := tx.Lock(takerKey, custody.CollateralAsset(req.Side), lock); err != nil {
			return Result{}, err
		}
	}

	fills := make([]Fill, 0, len(pl.steps))
	for _, s := range pl.steps {
		if s.cancel {
			continue
		}
		f := s.fill
		if err := tx.SettleFill(marketID, f.Maker, req.Actor, f.MakerSide, f.BaseAmount, f.QuoteAmount); err != nil {
			return Result{}, err
		}
		if f.Size == s.order.Size {
			if err := tx.RemoveOpenOrder(custody.KeyFor(marketID, f.Maker), f.MakerOrderID); err != nil {
				return Result{}, err
			}
		}
		fills = append(fills, f)
	}
	if pl.post > 0 {
		if err := tx.AddOpenOrder(takerKey, pl.orderID); err != nil {
			return Result{}, err
		}
	}

	// Collateral staged. From here on a failure is a defect, not a rejection.
	var evs []events.Event
	for _, s := range pl.steps {
		if s.cancel {
			if _, err := e.book.Remove(s.order.ID); err != nil {
				return Result{}, err
			}
			evs = append(evs, makerEvent(marketID, s.order, events.Cancel, s.order.Size))
			continue
		}
		if _, err := e.book.Reduce(s.order.ID, s.fill.Size); err != nil {
			return Result{}, err
		}
		evs = append(evs, takerEvent(marketID, s.fill, req))
	}
	if pl.evict != nil {
		if _, err := e.book.Remove(pl.evict.ID); err != nil {
			return Result{}, err
		}
		evs = append(evs, makerEvent(marketID, *pl.evict, events.Evict, pl.evict.Size))
	}
	var id orderbook.OrderID
	if pl.post > 0 {
		if id, err = e.book.NextOrderID(req.Side, req.Price); err != nil {
			return Result{}, err
		}
		if id != pl.orderID {
			return Result{}, errs.New(errs.ErrInvariant, "issued order id %s, planned %s", id, pl.orderID)
		}
		if _, err := e.book.Insert(id, pl.post, req.Actor.Account, req.Actor.CustodianID); err != nil {
			return Result{}, errs.New(errs.ErrInvariant, "post %s: %v", id, err)
		}
		o, _ := e.book.Lookup(id)
		evs = append(evs, makerEvent(marketID, o, events.Place, pl.post))
	}
	tx.Commit()

	return Result{
		OrderID:       id,
		State:         pl.state,
		FilledAsTaker: pl.filled,
		PostedAsMaker: pl.post,
		CancelledSize: req.Size - pl.filled - pl.post,
		Fills:         fills,
		Events:        evs,
	}, nil
}

// release stages the unlock of a resting order's collateral and drops it
// from its owner's open orders.
func (e *Engine) release(tx *custody.Tx, o orderbook.Order) error {
	amount, err := e.book.Params().Collateral(o.Side, o.Size, o.Price)
	if err != nil {
		return errs.New(errs.ErrInvariant, "collateral of resting order %s: %v", o.ID, err)
	}
	k := custody.KeyFor(e.book.MarketID(), o.Actor())
	if err := tx.Unlock(k, custody.CollateralAsset(o.Side), amount); err != nil {
		return err
	}
	return tx.RemoveOpenOrder(k, o.ID)
}

func makerEvent(marketID uint64, o orderbook.Order, typ events.MakerEventType, size uint64) events.Event {
	return events.FromMaker(events.MakerEvent{
		MarketID:    marketID,
		Side:        o.Side,
		OrderID:     o.ID,
		User:        o.Owner,
		CustodianID: o.CustodianID,
		Type:        typ,
		Size:        size,
		Price:       o.Price,
	})
}

func takerEvent(marketID uint64, f Fill, req Request) events.Event {
	return events.FromTaker(events.TakerEvent{
		MarketID:         marketID,
		Side:             f.MakerSide,
		MakerOrderID:     f.MakerOrderID,
		Maker:            f.Maker.Account,
		MakerCustodianID: f.Maker.CustodianID,
		Taker:            req.Actor.Account,
		TakerCustodianID: req.Actor.CustodianID,
		Size:             f.Size,
		Price:            f.Price,
	})
}
