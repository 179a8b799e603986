package matching

import (
	"econia/domain/custody"
	"econia/domain/errs"
	"econia/domain/events"
	"econia/domain/identity"
	"econia/domain/orderbook"
)

// owned returns the resting order id if actor owns it.
func (e *Engine) owned(actor identity.Actor, id orderbook.OrderID) (orderbook.Order, error) {
	o, ok := e.book.Lookup(id)
	if !ok {
		return orderbook.Order{}, errs.New(errs.ErrOrderNotFound, "order %s in market %d", id, e.book.MarketID())
	}
	if o.Actor() != actor {
		return orderbook.Order{}, errs.New(errs.ErrNotOrderOwner, "order %s", id)
	}
	return o, nil
}

// Cancel removes actor's order id and unlocks its collateral.
func (e *Engine) Cancel(actor identity.Actor, id orderbook.OrderID) (Outcome, error) {
	o, err := e.owned(actor, id)
	if err != nil {
		return Outcome{}, err
	}
	tx := e.ledger.Begin()
	if err := e.release(tx, o); err != nil {
		return Outcome{}, err
	}
	removed, err := e.book.Remove(id)
	if err != nil {
		return Outcome{}, err
	}
	tx.Commit()
	return Outcome{
		OrderID: id,
		Removed: []orderbook.Order{removed},
		Events:  []events.Event{makerEvent(e.book.MarketID(), o, events.Cancel, o.Size)},
	}, nil
}

// CancelAll cancels every order actor has resting on side, in ascending id
// order.
func (e *Engine) CancelAll(actor identity.Actor, side orderbook.Side) (Outcome, error) {
	if !side.Valid() {
		return Outcome{}, errs.New(errs.ErrInvalidSide, "side %d", side)
	}
	marketID := e.book.MarketID()
	pos, ok := e.ledger.Position(custody.KeyFor(marketID, actor))
	if !ok {
		return Outcome{}, nil
	}
	var orders []orderbook.Order
	tx := e.ledger.Begin()
	for _, id := range pos.OpenOrders {
		if id.Side() != side {
			continue
		}
		o, ok := e.book.Lookup(id)
		if !ok {
			return Outcome{}, errs.New(errs.ErrInvariant, "open order %s not resting", id)
		}
		if err := e.release(tx, o); err != nil {
			return Outcome{}, err
		}
		orders = append(orders, o)
	}

	out := Outcome{Removed: make([]orderbook.Order, 0, len(orders))}
	for _, o := range orders {
		removed, err := e.book.Remove(o.ID)
		if err != nil {
			return Outcome{}, err
		}
		out.Removed = append(out.Removed, removed)
		out.Events = append(out.Events, makerEvent(marketID, o, events.Cancel, o.Size))
	}
	tx.Commit()
	return out, nil
}

// ChangeSize resizes actor's order id. Shrinking keeps the order's id and
// place in its level. Growing re-queues it at the tail of the same price
// under a new id, since it must not jump orders that arrived after it.
func (e *Engine) ChangeSize(actor identity.Actor, id orderbook.OrderID, newSize uint64) (Outcome, error) {
	o, err := e.owned(actor, id)
	if err != nil {
		return Outcome{}, err
	}
	params := e.book.Params()
	switch {
	case newSize == 0 || newSize < params.MinSize:
		return Outcome{}, errs.New(errs.ErrInvalidSize, "size %d below minimum %d", newSize, params.MinSize)
	case newSize == o.Size:
		return Outcome{}, errs.New(errs.ErrUnchangedSize, "order %s already size %d", id, newSize)
	}

	marketID := e.book.MarketID()
	k := custody.KeyFor(marketID, actor)
	asset := custody.CollateralAsset(o.Side)
	tx := e.ledger.Begin()

	if newSize < o.Size {
		amount, err := params.Collateral(o.Side, o.Size-newSize, o.Price)
		if err != nil {
			return Outcome{}, errs.New(errs.ErrInvariant, "collateral of resting order %s: %v", id, err)
		}
		if err := tx.Unlock(k, asset, amount); err != nil {
			return Outcome{}, err
		}
		updated, err := e.book.Reduce(id, o.Size-newSize)
		if err != nil {
			return Outcome{}, err
		}
		tx.Commit()
		return Outcome{
			OrderID: id,
			Events:  []events.Event{makerEvent(marketID, updated, events.Change, updated.Size)},
		}, nil
	}

	if _, err := params.BaseAmount(newSize); err != nil {
		return Outcome{}, err
	}
	if _, err := params.Collateral(o.Side, newSize, o.Price); err != nil {
		return Outcome{}, err
	}
	amount, err := params.Collateral(o.Side, newSize-o.Size, o.Price)
	if err != nil {
		return Outcome{}, err
	}
	if e.book.Counter() == orderbook.MaxCounter {
		return Outcome{}, errs.New(errs.ErrOverflow, "order counter exhausted in market %d", marketID)
	}
	newID := orderbook.NewOrderID(o.Side, o.Price, e.book.Counter()+1)
	if err := tx.Lock(k, asset, amount); err != nil {
		return Outcome{}, err
	}
	if err := tx.RemoveOpenOrder(k, id); err != nil {
		return Outcome{}, err
	}
	if err := tx.AddOpenOrder(k, newID); err != nil {
		return Outcome{}, err
	}

	removed, err := e.book.Remove(id)
	if err != nil {
		return Outcome{}, err
	}
	issued, err := e.book.NextOrderID(o.Side, o.Price)
	if err != nil {
		return Outcome{}, err
	}
	if issued != newID {
		return Outcome{}, errs.New(errs.ErrInvariant, "issued order id %s, planned %s", issued, newID)
	}
	if _, err := e.book.Insert(newID, newSize, o.Owner, o.CustodianID); err != nil {
		return Outcome{}, errs.New(errs.ErrInvariant, "re-post %s: %v", newID, err)
	}
	tx.Commit()

	placed, _ := e.book.Lookup(newID)
	return Outcome{
		OrderID: newID,
		Removed: []orderbook.Order{removed},
		Events: []events.Event{
			makerEvent(marketID, o, events.Cancel, o.Size),
			makerEvent(marketID, placed, events.Place, newSize),
		},
	}, nil
}
